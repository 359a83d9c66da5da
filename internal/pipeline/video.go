package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/recloned/adcloner/internal/models"
	"github.com/recloned/adcloner/internal/services"
)

// VideoStage animates a scene's start frame into a clip. The start-image
// precondition is enforced by the orchestrator (scenes without a frame are
// skipped); this stage assumes the URL is present.
type VideoStage struct {
	store    Store
	provider VideoProvider
}

func NewVideoStage(store Store, provider VideoProvider) *VideoStage {
	return &VideoStage{store: store, provider: provider}
}

// Generate submits the scene's clip job. Mirrors ImageStage.Generate,
// including marking the scene errored on a submit failure.
func (s *VideoStage) Generate(ctx context.Context, scene *models.Scene, aspect models.AspectRatio) (*models.StageRunResponse, error) {
	if err := s.store.UpdateSceneVideoStatus(ctx, scene.ID, models.StageStatusGenerating); err != nil {
		return nil, fmt.Errorf("failed to mark scene generating: %w", err)
	}

	result, err := s.provider.GenerateVideo(ctx, services.VideoRequest{
		ImageURL:    deref(scene.StartImageURL),
		Prompt:      deref(scene.VideoPrompt),
		AspectRatio: aspect,
	})
	if err != nil {
		if markErr := s.store.UpdateSceneVideoStatus(ctx, scene.ID, models.StageStatusError); markErr != nil {
			log.Printf("[Video] Failed to mark scene %s errored: %v", scene.ID, markErr)
		}
		return nil, fmt.Errorf("video generation failed for scene %d: %w", scene.SceneNumber, err)
	}

	if result.OutputURL != "" {
		if err := s.store.SetSceneVideo(ctx, scene.ID, result.OutputURL); err != nil {
			return nil, fmt.Errorf("failed to save scene video: %w", err)
		}
		return &models.StageRunResponse{Status: "completed", URL: result.OutputURL}, nil
	}

	return &models.StageRunResponse{TaskID: result.TaskID, Status: "processing"}, nil
}

// Poll checks an async video task. Same contract as ImageStage.Poll.
func (s *VideoStage) Poll(ctx context.Context, taskID string, sceneID uuid.UUID) (*models.StageRunResponse, error) {
	status, err := s.provider.QueryTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if status.Status == "completed" {
		if err := s.store.SetSceneVideo(ctx, sceneID, status.OutputURL); err != nil {
			return nil, fmt.Errorf("failed to save scene video: %w", err)
		}
		return &models.StageRunResponse{Status: "completed", URL: status.OutputURL}, nil
	}

	return &models.StageRunResponse{TaskID: taskID, Status: status.Status}, nil
}
