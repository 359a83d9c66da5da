package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/recloned/adcloner/internal/models"
)

const projectColumns = `
	id, project_name, input_video_url, input_image_1_url, input_image_2_url,
	input_request, source_brand, target_brand, product_description,
	creative_direction, aspect_ratio, music_prompt, music_url, script,
	generate_music, status, error_message, created_at, updated_at
`

func scanProject(row interface{ Scan(...interface{}) error }) (*models.Project, error) {
	p := &models.Project{}
	err := row.Scan(
		&p.ID, &p.ProjectName, &p.InputVideoURL, &p.InputImage1URL, &p.InputImage2URL,
		&p.InputRequest, &p.SourceBrand, &p.TargetBrand, &p.ProductDescription,
		&p.CreativeDirection, &p.AspectRatio, &p.MusicPrompt, &p.MusicURL, &p.Script,
		&p.GenerateMusic, &p.Status, &p.ErrorMessage, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (db *DB) CreateProject(ctx context.Context, project *models.Project) error {
	query := `
		INSERT INTO projects (
			id, project_name, input_video_url, input_image_1_url, input_image_2_url,
			input_request, source_brand, target_brand, product_description,
			creative_direction, aspect_ratio, generate_music, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		project.ID, project.ProjectName, project.InputVideoURL,
		project.InputImage1URL, project.InputImage2URL, project.InputRequest,
		project.SourceBrand, project.TargetBrand, project.ProductDescription,
		project.CreativeDirection, project.AspectRatio, project.GenerateMusic,
		project.Status,
	).Scan(&project.CreatedAt, &project.UpdatedAt)
}

func (db *DB) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	project, err := scanProject(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return project, nil
}

// ListProjects returns all projects ordered by creation date (newest first).
func (db *DB) ListProjects(ctx context.Context) ([]models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}

	return projects, rows.Err()
}

// UpdateProjectStatus advances a project's status. The update only applies
// when the current status is a valid predecessor of the target; an illegal
// move is returned (and logged) as models.ErrInvalidTransition instead of
// silently overwriting whatever state the row was in.
func (db *DB) UpdateProjectStatus(ctx context.Context, id uuid.UUID, status models.ProjectStatus) error {
	preds := models.ValidPredecessors(status)
	if len(preds) == 0 {
		return fmt.Errorf("%w: unknown target status %q", models.ErrInvalidTransition, status)
	}

	states := make([]string, len(preds))
	for i, s := range preds {
		states[i] = string(s)
	}

	query := `UPDATE projects SET status = $1, updated_at = NOW() WHERE id = $2 AND status = ANY($3)`
	res, err := db.ExecContext(ctx, query, status, id, pq.Array(states))
	if err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check status update: %w", err)
	}
	if affected == 0 {
		current, getErr := db.GetProject(ctx, id)
		if getErr != nil {
			return getErr
		}
		log.Printf("[DB] Rejected status transition %s -> %s for project %s", current.Status, status, id)
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, current.Status, status)
	}

	return nil
}

// SetProjectError marks a project failed and records the error text. Unlike
// UpdateProjectStatus this is unconditional: any stage may fail at any time,
// and re-marking an already-errored project is harmless.
func (db *DB) SetProjectError(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE projects
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := db.ExecContext(ctx, query, models.ProjectStatusError, errorMessage, id)
	return err
}

func (db *DB) SetProjectMusicURL(ctx context.Context, id uuid.UUID, musicURL string) error {
	query := `UPDATE projects SET music_url = $1, updated_at = NOW() WHERE id = $2`
	_, err := db.ExecContext(ctx, query, musicURL, id)
	return err
}

// SetProjectInputVideo stores the uploaded source video URL.
func (db *DB) SetProjectInputVideo(ctx context.Context, id uuid.UUID, url string) error {
	query := `UPDATE projects SET input_video_url = $1, updated_at = NOW() WHERE id = $2`
	_, err := db.ExecContext(ctx, query, url, id)
	return err
}

// SetProjectReferenceImage stores a reference image URL in slot 1 or 2.
func (db *DB) SetProjectReferenceImage(ctx context.Context, id uuid.UUID, slot int, url string) error {
	var query string
	switch slot {
	case 1:
		query = `UPDATE projects SET input_image_1_url = $1, updated_at = NOW() WHERE id = $2`
	case 2:
		query = `UPDATE projects SET input_image_2_url = $1, updated_at = NOW() WHERE id = $2`
	default:
		return fmt.Errorf("invalid reference image slot %d", slot)
	}
	_, err := db.ExecContext(ctx, query, url, id)
	return err
}

// DeleteProject removes a project; its scenes go with it via the FK cascade.
func (db *DB) DeleteProject(ctx context.Context, id uuid.UUID) error {
	res, err := db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("project not found")
	}
	return nil
}

// SaveAnalysis persists everything a successful analysis produces in one
// transaction: the project's music prompt and script, the full scene batch,
// and the status advance analyzing -> generating_prompts -> generating_images.
// A crash can no longer strand a project in an intermediate status with no
// scenes. Scenes from a previous failed run are cleared first, so restarting
// an errored project replaces its storyboard instead of colliding with the
// (project_id, scene_number) uniqueness constraint.
func (db *DB) SaveAnalysis(ctx context.Context, projectID uuid.UUID, musicPrompt, script string, scenes []models.Scene) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE projects
		SET music_prompt = $1, script = $2, status = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5
	`, musicPrompt, script, models.ProjectStatusGeneratingPrompts, projectID, models.ProjectStatusAnalyzing)
	if err != nil {
		return fmt.Errorf("failed to save analysis result: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: project %s is not in %s", models.ErrInvalidTransition, projectID, models.ProjectStatusAnalyzing)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM scenes WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to clear previous scenes: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scenes (
			id, project_id, scene_number, scene_title,
			start_image_prompt, video_prompt, status_image, status_video
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare scene insert: %w", err)
	}
	defer stmt.Close()

	for i := range scenes {
		scene := &scenes[i]
		if scene.ID == uuid.Nil {
			scene.ID = uuid.New()
		}
		scene.ProjectID = projectID
		if _, err := stmt.ExecContext(
			ctx,
			scene.ID, scene.ProjectID, scene.SceneNumber, scene.SceneTitle,
			scene.StartImagePrompt, scene.VideoPrompt,
			models.StageStatusPending, models.StageStatusPending,
		); err != nil {
			return fmt.Errorf("failed to insert scene %d: %w", scene.SceneNumber, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE projects SET status = $1, updated_at = NOW() WHERE id = $2
	`, models.ProjectStatusGeneratingImages, projectID); err != nil {
		return fmt.Errorf("failed to advance project status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit analysis: %w", err)
	}

	return nil
}
