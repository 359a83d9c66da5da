package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/recloned/adcloner/internal/models"
	"github.com/recloned/adcloner/internal/services"
)

// MusicStage generates a project's background track. Results land on the
// project row rather than on a scene.
type MusicStage struct {
	store    Store
	provider MusicProvider
}

func NewMusicStage(store Store, provider MusicProvider) *MusicStage {
	return &MusicStage{store: store, provider: provider}
}

// Generate submits the music job. Same dual-shape contract as the scene
// stages: direct URL completes immediately, task id means poll.
func (s *MusicStage) Generate(ctx context.Context, projectID uuid.UUID, req services.MusicRequest) (*models.StageRunResponse, error) {
	result, err := s.provider.GenerateMusic(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("music generation failed: %w", err)
	}

	if result.OutputURL != "" {
		if err := s.store.SetProjectMusicURL(ctx, projectID, result.OutputURL); err != nil {
			return nil, fmt.Errorf("failed to save music URL: %w", err)
		}
		return &models.StageRunResponse{Status: "completed", URL: result.OutputURL}, nil
	}

	return &models.StageRunResponse{TaskID: result.TaskID, Status: "processing"}, nil
}

// Poll checks an async music task, persisting the audio URL on completion.
func (s *MusicStage) Poll(ctx context.Context, taskID string, projectID uuid.UUID) (*models.StageRunResponse, error) {
	status, err := s.provider.QueryTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if status.Status == "completed" {
		if err := s.store.SetProjectMusicURL(ctx, projectID, status.OutputURL); err != nil {
			return nil, fmt.Errorf("failed to save music URL: %w", err)
		}
		return &models.StageRunResponse{Status: "completed", URL: status.OutputURL}, nil
	}

	return &models.StageRunResponse{TaskID: taskID, Status: status.Status}, nil
}
