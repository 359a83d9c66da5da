package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/recloned/adcloner/internal/models"
	"github.com/recloned/adcloner/internal/services"
)

// Options tune the orchestrator's pacing and patience.
type Options struct {
	// ScenePacing is the minimum gap between provider submissions.
	ScenePacing time.Duration
	// PollInterval is how often an awaited task is re-queried.
	PollInterval time.Duration
	// SettleWait is the pause between the image and video phases, giving
	// provider CDNs time to make fresh image URLs fetchable.
	SettleWait time.Duration
	// TaskTimeout is the per-task await deadline. A timed-out scene task is
	// abandoned by the run but left in generating for the client poll
	// endpoints to finish.
	TaskTimeout time.Duration
}

// Orchestrator sequences a full pipeline run: analysis, then music alongside
// the image phase, then the video phase. Runs are not resumable; a failed
// project is re-run from the start.
type Orchestrator struct {
	store    Store
	analysis *AnalysisStage
	image    *ImageStage
	video    *VideoStage
	music    *MusicStage
	limiter  *rate.Limiter
	opts     Options
}

func NewOrchestrator(store Store, analysis *AnalysisStage, image *ImageStage, video *VideoStage, music *MusicStage, opts Options) *Orchestrator {
	if opts.ScenePacing <= 0 {
		opts.ScenePacing = 3 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 5 * time.Minute
	}

	return &Orchestrator{
		store:    store,
		analysis: analysis,
		image:    image,
		video:    video,
		music:    music,
		limiter:  rate.NewLimiter(rate.Every(opts.ScenePacing), 1),
		opts:     opts,
	}
}

// Run executes the whole pipeline for a project. Any stage error marks the
// project errored and aborts the run.
func (o *Orchestrator) Run(ctx context.Context, projectID uuid.UUID) error {
	log.Printf("[Pipeline] Starting run for project %s", projectID)

	project, err := o.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}

	analysis, err := o.analysis.Run(ctx, project)
	if err != nil {
		return o.fail(projectID, err)
	}

	// Music generation is independent of the scene pipeline, so it runs
	// alongside the image phase. A music failure still fails the run.
	g, gctx := errgroup.WithContext(ctx)

	if project.GenerateMusic {
		g.Go(func() error {
			err := o.runMusic(gctx, projectID, analysis.MusicPrompt)
			if errors.Is(err, ErrTaskTimeout) {
				log.Printf("[Pipeline] Music task for project %s timed out, leaving it to client polling", projectID)
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		return o.runImagePhase(gctx, project)
	})

	if err := g.Wait(); err != nil {
		return o.fail(projectID, err)
	}

	// Freshly generated image URLs can lag behind their task completing.
	if o.opts.SettleWait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.opts.SettleWait):
		}
	}

	if err := o.store.UpdateProjectStatus(ctx, projectID, models.ProjectStatusGeneratingVideos); err != nil {
		return o.fail(projectID, err)
	}

	if err := o.runVideoPhase(ctx, project); err != nil {
		return o.fail(projectID, err)
	}

	if err := o.store.UpdateProjectStatus(ctx, projectID, models.ProjectStatusCompleted); err != nil {
		return o.fail(projectID, err)
	}

	log.Printf("[Pipeline] Project %s completed", projectID)
	return nil
}

func (o *Orchestrator) runMusic(ctx context.Context, projectID uuid.UUID, prompt string) error {
	resp, err := o.music.Generate(ctx, projectID, services.MusicRequest{Prompt: prompt})
	if err != nil {
		return err
	}
	if resp.TaskID == "" {
		return nil
	}

	return o.await(ctx, fmt.Sprintf("music for project %s", projectID), func(ctx context.Context) (*models.StageRunResponse, error) {
		return o.music.Poll(ctx, resp.TaskID, projectID)
	})
}

// runImagePhase submits start-frame jobs in scene order with pacing between
// submissions, awaiting each async task before moving on.
func (o *Orchestrator) runImagePhase(ctx context.Context, project *models.Project) error {
	scenes, err := o.store.GetProjectScenes(ctx, project.ID)
	if err != nil {
		return err
	}
	refs := project.ReferenceImages()

	for i := range scenes {
		scene := &scenes[i]

		if err := o.limiter.Wait(ctx); err != nil {
			return err
		}

		resp, err := o.image.Generate(ctx, scene, refs, project.AspectRatio)
		if err != nil {
			return err
		}
		if resp.TaskID == "" {
			continue
		}

		err = o.await(ctx, fmt.Sprintf("image for scene %d", scene.SceneNumber), func(ctx context.Context) (*models.StageRunResponse, error) {
			return o.image.Poll(ctx, resp.TaskID, scene.ID)
		})
		if errors.Is(err, ErrTaskTimeout) {
			log.Printf("[Pipeline] Image task for scene %d timed out, leaving it to client polling", scene.SceneNumber)
			continue
		}
		if err != nil {
			return err
		}
	}

	return nil
}

// runVideoPhase animates every scene that has a start frame. Scenes whose
// image never materialized are skipped without touching the provider.
func (o *Orchestrator) runVideoPhase(ctx context.Context, project *models.Project) error {
	scenes, err := o.store.GetProjectScenes(ctx, project.ID)
	if err != nil {
		return err
	}

	for i := range scenes {
		scene := &scenes[i]

		if scene.StartImageURL == nil || *scene.StartImageURL == "" {
			log.Printf("[Pipeline] Scene %d has no start image, skipping video", scene.SceneNumber)
			continue
		}

		if err := o.limiter.Wait(ctx); err != nil {
			return err
		}

		resp, err := o.video.Generate(ctx, scene, project.AspectRatio)
		if err != nil {
			return err
		}
		if resp.TaskID == "" {
			continue
		}

		err = o.await(ctx, fmt.Sprintf("video for scene %d", scene.SceneNumber), func(ctx context.Context) (*models.StageRunResponse, error) {
			return o.video.Poll(ctx, resp.TaskID, scene.ID)
		})
		if errors.Is(err, ErrTaskTimeout) {
			log.Printf("[Pipeline] Video task for scene %d timed out, leaving it to client polling", scene.SceneNumber)
			continue
		}
		if err != nil {
			return err
		}
	}

	return nil
}

// await polls a task at a fixed interval until it completes, fails, times
// out, or the context is cancelled.
func (o *Orchestrator) await(ctx context.Context, what string, poll func(context.Context) (*models.StageRunResponse, error)) error {
	deadline := time.NewTimer(o.opts.TaskTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(o.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: %s", ErrTaskTimeout, what)
		case <-ticker.C:
			resp, err := poll(ctx)
			if err != nil {
				return fmt.Errorf("awaiting %s: %w", what, err)
			}
			switch resp.Status {
			case "completed":
				return nil
			case "failed", "error":
				return fmt.Errorf("%s failed at the provider", what)
			}
		}
	}
}

// fail marks the project errored and returns the original error. The write
// uses a fresh context so a cancelled run still records its failure.
func (o *Orchestrator) fail(projectID uuid.UUID, cause error) error {
	log.Printf("[Pipeline] Project %s failed: %v", projectID, cause)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.store.SetProjectError(ctx, projectID, cause.Error()); err != nil {
		log.Printf("[Pipeline] Failed to mark project %s errored: %v", projectID, err)
	}

	return cause
}
