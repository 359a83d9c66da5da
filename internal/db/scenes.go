package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/recloned/adcloner/internal/models"
)

const sceneColumns = `
	id, project_id, scene_number, scene_title, start_image_prompt, video_prompt,
	status_image, status_video, start_image_url, scene_video_url, created_at, updated_at
`

func scanScene(row interface{ Scan(...interface{}) error }) (*models.Scene, error) {
	s := &models.Scene{}
	err := row.Scan(
		&s.ID, &s.ProjectID, &s.SceneNumber, &s.SceneTitle,
		&s.StartImagePrompt, &s.VideoPrompt,
		&s.StatusImage, &s.StatusVideo,
		&s.StartImageURL, &s.SceneVideoURL,
		&s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

func (db *DB) GetScene(ctx context.Context, id uuid.UUID) (*models.Scene, error) {
	query := `SELECT ` + sceneColumns + ` FROM scenes WHERE id = $1`

	scene, err := scanScene(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("scene not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scene: %w", err)
	}

	return scene, nil
}

// GetProjectScenes returns a project's scenes in ascending scene_number
// order. Both generation phases rely on this ordering for determinism.
func (db *DB) GetProjectScenes(ctx context.Context, projectID uuid.UUID) ([]models.Scene, error) {
	query := `SELECT ` + sceneColumns + ` FROM scenes WHERE project_id = $1 ORDER BY scene_number ASC`

	rows, err := db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get scenes: %w", err)
	}
	defer rows.Close()

	var scenes []models.Scene
	for rows.Next() {
		s, err := scanScene(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scene: %w", err)
		}
		scenes = append(scenes, *s)
	}

	return scenes, rows.Err()
}

func (db *DB) UpdateSceneImageStatus(ctx context.Context, id uuid.UUID, status models.StageStatus) error {
	query := `UPDATE scenes SET status_image = $1, updated_at = NOW() WHERE id = $2`
	_, err := db.ExecContext(ctx, query, status, id)
	return err
}

func (db *DB) UpdateSceneVideoStatus(ctx context.Context, id uuid.UUID, status models.StageStatus) error {
	query := `UPDATE scenes SET status_video = $1, updated_at = NOW() WHERE id = $2`
	_, err := db.ExecContext(ctx, query, status, id)
	return err
}

// SetSceneImage stores the generated still and completes the image stage in
// one write.
func (db *DB) SetSceneImage(ctx context.Context, id uuid.UUID, imageURL string) error {
	query := `
		UPDATE scenes
		SET status_image = $1, start_image_url = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := db.ExecContext(ctx, query, models.StageStatusCompleted, imageURL, id)
	return err
}

// SetSceneVideo stores the generated clip and completes the video stage in
// one write.
func (db *DB) SetSceneVideo(ctx context.Context, id uuid.UUID, videoURL string) error {
	query := `
		UPDATE scenes
		SET status_video = $1, scene_video_url = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := db.ExecContext(ctx, query, models.StageStatusCompleted, videoURL, id)
	return err
}
