package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/recloned/adcloner/internal/models"
	"github.com/recloned/adcloner/internal/services"
)

// The pipeline package owns the generation flow: analysis, per-scene image
// and video stages, optional music, and the orchestrator that sequences
// them. Stages depend on narrow interfaces so tests can run against fakes.

// ErrTaskTimeout is returned by task awaiting when a provider job does not
// reach a terminal state within the configured deadline. The scene is left
// in generating; the client-facing poll endpoints can still finish it later.
var ErrTaskTimeout = errors.New("task did not complete before deadline")

// Store is the subset of the database layer the pipeline writes through.
type Store interface {
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetProjectScenes(ctx context.Context, projectID uuid.UUID) ([]models.Scene, error)
	UpdateProjectStatus(ctx context.Context, id uuid.UUID, status models.ProjectStatus) error
	SetProjectError(ctx context.Context, id uuid.UUID, errorMessage string) error
	SetProjectMusicURL(ctx context.Context, id uuid.UUID, musicURL string) error
	SaveAnalysis(ctx context.Context, projectID uuid.UUID, musicPrompt, script string, scenes []models.Scene) error
	UpdateSceneImageStatus(ctx context.Context, id uuid.UUID, status models.StageStatus) error
	UpdateSceneVideoStatus(ctx context.Context, id uuid.UUID, status models.StageStatus) error
	SetSceneImage(ctx context.Context, id uuid.UUID, imageURL string) error
	SetSceneVideo(ctx context.Context, id uuid.UUID, videoURL string) error
}

// AnalysisProvider breaks a source video (or, as a fallback, just the brief)
// into a storyboard.
type AnalysisProvider interface {
	AnalyzeVideo(ctx context.Context, videoURL, prompt string) (string, error)
	AnalyzeText(ctx context.Context, prompt string) (string, error)
}

// ImageProvider generates scene start frames.
type ImageProvider interface {
	GenerateImage(ctx context.Context, req services.ImageRequest) (*services.SubmitResult, error)
	QueryTask(ctx context.Context, taskID string) (*services.TaskStatus, error)
}

// VideoProvider animates a start frame into a clip.
type VideoProvider interface {
	GenerateVideo(ctx context.Context, req services.VideoRequest) (*services.SubmitResult, error)
	QueryTask(ctx context.Context, taskID string) (*services.TaskStatus, error)
}

// MusicProvider generates background music for a project.
type MusicProvider interface {
	GenerateMusic(ctx context.Context, req services.MusicRequest) (*services.SubmitResult, error)
	QueryTask(ctx context.Context, taskID string) (*services.TaskStatus, error)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
