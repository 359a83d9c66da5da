package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/recloned/adcloner/internal/models"
	"github.com/recloned/adcloner/internal/services"
)

// In-memory fakes for the stage and orchestrator tests. The store mimics the
// real layer's transition guard so illegal status moves fail here too.

type fakeStore struct {
	mu                sync.Mutex
	projects          map[uuid.UUID]*models.Project
	scenes            map[uuid.UUID]*models.Scene
	statusHistory     []models.ProjectStatus
	saveAnalysisCalls int
}

func newFakeStore(projects ...*models.Project) *fakeStore {
	s := &fakeStore{
		projects: make(map[uuid.UUID]*models.Project),
		scenes:   make(map[uuid.UUID]*models.Scene),
	}
	for _, p := range projects {
		s.projects[p.ID] = p
	}
	return s
}

func (s *fakeStore) addScene(scene *models.Scene) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenes[scene.ID] = scene
}

func (s *fakeStore) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project not found")
	}
	copied := *p
	return &copied, nil
}

func (s *fakeStore) GetProjectScenes(ctx context.Context, projectID uuid.UUID) ([]models.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Scene
	for _, sc := range s.scenes {
		if sc.ProjectID == projectID {
			out = append(out, *sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SceneNumber < out[j].SceneNumber })
	return out, nil
}

func (s *fakeStore) UpdateProjectStatus(ctx context.Context, id uuid.UUID, status models.ProjectStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return fmt.Errorf("project not found")
	}
	if !models.CanTransition(p.Status, status) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, p.Status, status)
	}
	p.Status = status
	s.statusHistory = append(s.statusHistory, status)
	return nil
}

func (s *fakeStore) SetProjectError(ctx context.Context, id uuid.UUID, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return fmt.Errorf("project not found")
	}
	p.Status = models.ProjectStatusError
	p.ErrorMessage = &errorMessage
	s.statusHistory = append(s.statusHistory, models.ProjectStatusError)
	return nil
}

func (s *fakeStore) SetProjectMusicURL(ctx context.Context, id uuid.UUID, musicURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return fmt.Errorf("project not found")
	}
	p.MusicURL = &musicURL
	return nil
}

func (s *fakeStore) SaveAnalysis(ctx context.Context, projectID uuid.UUID, musicPrompt, script string, scenes []models.Scene) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveAnalysisCalls++

	p, ok := s.projects[projectID]
	if !ok {
		return fmt.Errorf("project not found")
	}
	if p.Status != models.ProjectStatusAnalyzing {
		return fmt.Errorf("%w: project is %s", models.ErrInvalidTransition, p.Status)
	}
	p.MusicPrompt = &musicPrompt
	p.Script = &script

	// Replace any storyboard left over from a previous failed run, matching
	// the real layer's in-transaction delete.
	for id, sc := range s.scenes {
		if sc.ProjectID == projectID {
			delete(s.scenes, id)
		}
	}

	for i := range scenes {
		scene := scenes[i]
		if scene.ID == uuid.Nil {
			scene.ID = uuid.New()
		}
		scene.ProjectID = projectID
		scene.StatusImage = models.StageStatusPending
		scene.StatusVideo = models.StageStatusPending
		s.scenes[scene.ID] = &scene
	}

	p.Status = models.ProjectStatusGeneratingImages
	s.statusHistory = append(s.statusHistory, models.ProjectStatusGeneratingPrompts, models.ProjectStatusGeneratingImages)
	return nil
}

func (s *fakeStore) UpdateSceneImageStatus(ctx context.Context, id uuid.UUID, status models.StageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scenes[id]
	if !ok {
		return fmt.Errorf("scene not found")
	}
	sc.StatusImage = status
	return nil
}

func (s *fakeStore) UpdateSceneVideoStatus(ctx context.Context, id uuid.UUID, status models.StageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scenes[id]
	if !ok {
		return fmt.Errorf("scene not found")
	}
	sc.StatusVideo = status
	return nil
}

func (s *fakeStore) SetSceneImage(ctx context.Context, id uuid.UUID, imageURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scenes[id]
	if !ok {
		return fmt.Errorf("scene not found")
	}
	sc.StartImageURL = &imageURL
	sc.StatusImage = models.StageStatusCompleted
	return nil
}

func (s *fakeStore) SetSceneVideo(ctx context.Context, id uuid.UUID, videoURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scenes[id]
	if !ok {
		return fmt.Errorf("scene not found")
	}
	sc.SceneVideoURL = &videoURL
	sc.StatusVideo = models.StageStatusCompleted
	return nil
}

func (s *fakeStore) scene(id uuid.UUID) models.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.scenes[id]
}

func (s *fakeStore) project(id uuid.UUID) models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.projects[id]
}

// Providers

type fakeAnalysis struct {
	videoResp  string
	videoErr   error
	textResp   string
	textErr    error
	videoCalls int
	textCalls  int
}

func (f *fakeAnalysis) AnalyzeVideo(ctx context.Context, videoURL, prompt string) (string, error) {
	f.videoCalls++
	return f.videoResp, f.videoErr
}

func (f *fakeAnalysis) AnalyzeText(ctx context.Context, prompt string) (string, error) {
	f.textCalls++
	return f.textResp, f.textErr
}

type fakeImageProvider struct {
	mu       sync.Mutex
	submit   func(req services.ImageRequest) (*services.SubmitResult, error)
	query    func(taskID string) (*services.TaskStatus, error)
	requests []services.ImageRequest
}

func (f *fakeImageProvider) GenerateImage(ctx context.Context, req services.ImageRequest) (*services.SubmitResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.submit(req)
}

func (f *fakeImageProvider) QueryTask(ctx context.Context, taskID string) (*services.TaskStatus, error) {
	return f.query(taskID)
}

type fakeVideoProvider struct {
	mu       sync.Mutex
	submit   func(req services.VideoRequest) (*services.SubmitResult, error)
	query    func(taskID string) (*services.TaskStatus, error)
	requests []services.VideoRequest
}

func (f *fakeVideoProvider) GenerateVideo(ctx context.Context, req services.VideoRequest) (*services.SubmitResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.submit(req)
}

func (f *fakeVideoProvider) QueryTask(ctx context.Context, taskID string) (*services.TaskStatus, error) {
	return f.query(taskID)
}

type fakeMusicProvider struct {
	submit func(req services.MusicRequest) (*services.SubmitResult, error)
	query  func(taskID string) (*services.TaskStatus, error)
	calls  int
}

func (f *fakeMusicProvider) GenerateMusic(ctx context.Context, req services.MusicRequest) (*services.SubmitResult, error) {
	f.calls++
	return f.submit(req)
}

func (f *fakeMusicProvider) QueryTask(ctx context.Context, taskID string) (*services.TaskStatus, error) {
	return f.query(taskID)
}

// analysisJSON is a two-scene storyboard used across tests.
const analysisJSON = `{
	"music_prompt": "warm acoustic guitar",
	"script": "Crafted for every step.",
	"scenes": [
		{
			"scene_number": 1,
			"scene_title": "Scene 1 - Opening",
			"start_image_prompt": {"subject": "a leather boot", "camera": "close-up"},
			"video_prompt": {"subject": "a leather boot", "action": "laces tighten in slow motion"},
			"duration_seconds": 3
		},
		{
			"scene_number": 2,
			"scene_title": "Scene 2 - Outdoors",
			"start_image_prompt": {"subject": "hiker on a ridge", "environment": "misty mountains"},
			"video_prompt": {"subject": "hiker on a ridge", "action": "strides toward the summit"},
			"duration_seconds": 5
		}
	]
}`

func strPtr(s string) *string { return &s }
