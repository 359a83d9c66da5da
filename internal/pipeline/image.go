package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/recloned/adcloner/internal/models"
	"github.com/recloned/adcloner/internal/services"
)

// ImageStage generates the start frame for a single scene.
type ImageStage struct {
	store    Store
	provider ImageProvider
}

func NewImageStage(store Store, provider ImageProvider) *ImageStage {
	return &ImageStage{store: store, provider: provider}
}

// Generate submits the scene's start-frame job. A direct URL from the
// provider completes the stage immediately; a task id is handed back for
// polling with the scene left in generating. A submit failure marks the
// scene's image stage errored before propagating.
func (s *ImageStage) Generate(ctx context.Context, scene *models.Scene, refImages []string, aspect models.AspectRatio) (*models.StageRunResponse, error) {
	if err := s.store.UpdateSceneImageStatus(ctx, scene.ID, models.StageStatusGenerating); err != nil {
		return nil, fmt.Errorf("failed to mark scene generating: %w", err)
	}

	result, err := s.provider.GenerateImage(ctx, services.ImageRequest{
		Prompt:          deref(scene.StartImagePrompt),
		AspectRatio:     aspect,
		ReferenceImages: refImages,
	})
	if err != nil {
		if markErr := s.store.UpdateSceneImageStatus(ctx, scene.ID, models.StageStatusError); markErr != nil {
			log.Printf("[Image] Failed to mark scene %s errored: %v", scene.ID, markErr)
		}
		return nil, fmt.Errorf("image generation failed for scene %d: %w", scene.SceneNumber, err)
	}

	if result.OutputURL != "" {
		if err := s.store.SetSceneImage(ctx, scene.ID, result.OutputURL); err != nil {
			return nil, fmt.Errorf("failed to save scene image: %w", err)
		}
		return &models.StageRunResponse{Status: "completed", URL: result.OutputURL}, nil
	}

	return &models.StageRunResponse{TaskID: result.TaskID, Status: "processing"}, nil
}

// Poll checks an async image task. Only a completed task mutates the scene;
// every other status is passed through unchanged so callers can keep polling.
func (s *ImageStage) Poll(ctx context.Context, taskID string, sceneID uuid.UUID) (*models.StageRunResponse, error) {
	status, err := s.provider.QueryTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if status.Status == "completed" {
		if err := s.store.SetSceneImage(ctx, sceneID, status.OutputURL); err != nil {
			return nil, fmt.Errorf("failed to save scene image: %w", err)
		}
		return &models.StageRunResponse{Status: "completed", URL: status.OutputURL}, nil
	}

	return &models.StageRunResponse{TaskID: taskID, Status: status.Status}, nil
}
