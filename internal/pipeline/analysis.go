package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/recloned/adcloner/internal/models"
	"github.com/recloned/adcloner/internal/services"
)

// AnalysisStage turns a project's source video and brief into a persisted
// storyboard: music prompt, script, and one scene row per shot with
// flattened image and video prompts.
type AnalysisStage struct {
	store    Store
	provider AnalysisProvider
}

func NewAnalysisStage(store Store, provider AnalysisProvider) *AnalysisStage {
	return &AnalysisStage{store: store, provider: provider}
}

// Run executes the analysis for a project. The video-based request gets
// exactly one text-only fallback; a response that still fails to decode as a
// storyboard is terminal. On success everything is persisted in a single
// transaction via SaveAnalysis.
func (a *AnalysisStage) Run(ctx context.Context, project *models.Project) (*models.VideoAnalysis, error) {
	if err := a.store.UpdateProjectStatus(ctx, project.ID, models.ProjectStatusAnalyzing); err != nil {
		return nil, fmt.Errorf("failed to start analysis: %w", err)
	}

	brief := buildBrief(project)
	prompt := services.BuildAnalysisPrompt(brief, deref(project.SourceBrand), deref(project.TargetBrand))

	var raw string
	var err error
	if project.InputVideoURL != nil && *project.InputVideoURL != "" {
		log.Printf("[Analysis] Analyzing source video for project %s", project.ID)
		raw, err = a.provider.AnalyzeVideo(ctx, *project.InputVideoURL, prompt)
		if err != nil {
			log.Printf("[Analysis] Video analysis failed for project %s, falling back to text: %v", project.ID, err)
			raw, err = a.provider.AnalyzeText(ctx, services.BuildFallbackPrompt(brief, prompt))
		}
	} else {
		log.Printf("[Analysis] No source video for project %s, generating storyboard from brief", project.ID)
		raw, err = a.provider.AnalyzeText(ctx, services.BuildFallbackPrompt(brief, prompt))
	}
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	var analysis models.VideoAnalysis
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &analysis); err != nil {
		return nil, fmt.Errorf("failed to decode analysis response: %w", err)
	}
	if len(analysis.Scenes) == 0 {
		return nil, fmt.Errorf("analysis produced no scenes")
	}

	scenes := make([]models.Scene, 0, len(analysis.Scenes))
	for _, s := range analysis.Scenes {
		imagePrompt := s.StartImagePrompt.Flatten()
		videoPrompt := s.VideoPrompt.Flatten()
		scenes = append(scenes, models.Scene{
			ProjectID:        project.ID,
			SceneNumber:      s.SceneNumber,
			SceneTitle:       s.SceneTitle,
			StartImagePrompt: &imagePrompt,
			VideoPrompt:      &videoPrompt,
		})
	}

	if err := a.store.SaveAnalysis(ctx, project.ID, analysis.MusicPrompt, analysis.Script, scenes); err != nil {
		return nil, fmt.Errorf("failed to save analysis: %w", err)
	}

	log.Printf("[Analysis] Project %s analyzed into %d scenes", project.ID, len(scenes))
	return &analysis, nil
}

// buildBrief folds the optional product and creative direction fields into
// the user's request so the model sees everything in one place.
func buildBrief(project *models.Project) string {
	parts := []string{project.InputRequest}
	if d := deref(project.ProductDescription); d != "" {
		parts = append(parts, "Product: "+d)
	}
	if d := deref(project.CreativeDirection); d != "" {
		parts = append(parts, "Creative direction: "+d)
	}
	return strings.Join(parts, "\n")
}

// stripCodeFences removes a surrounding markdown code fence, with or without
// a language tag. Models wrap JSON in fences despite instructions not to.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 && !strings.ContainsAny(s[:idx], "{[") {
		// First fence line is a language tag like "json"
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
