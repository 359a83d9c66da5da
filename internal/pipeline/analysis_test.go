package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recloned/adcloner/internal/models"
)

func pendingProject() *models.Project {
	return &models.Project{
		ID:            uuid.New(),
		ProjectName:   "boots",
		InputRequest:  "remake this ad for our hiking boots",
		InputVideoURL: strPtr("https://cdn.example.com/source.mp4"),
		AspectRatio:   models.AspectRatio16x9,
		Status:        models.ProjectStatusPending,
	}
}

func TestAnalysisRunHappyPath(t *testing.T) {
	project := pendingProject()
	store := newFakeStore(project)
	provider := &fakeAnalysis{videoResp: analysisJSON}
	stage := NewAnalysisStage(store, provider)

	analysis, err := stage.Run(context.Background(), project)
	require.NoError(t, err)

	assert.Equal(t, 1, provider.videoCalls)
	assert.Equal(t, 0, provider.textCalls, "no fallback on success")
	assert.Equal(t, "warm acoustic guitar", analysis.MusicPrompt)
	assert.Equal(t, 1, store.saveAnalysisCalls)

	scenes, err := store.GetProjectScenes(context.Background(), project.ID)
	require.NoError(t, err)
	require.Len(t, scenes, 2)

	assert.Equal(t, "[Subject] a leather boot. [Camera] close-up", *scenes[0].StartImagePrompt)
	assert.Equal(t, "[Subject] a leather boot. [Action] laces tighten in slow motion", *scenes[0].VideoPrompt)
	assert.Equal(t, models.StageStatusPending, scenes[0].StatusImage)
	assert.Equal(t, models.StageStatusPending, scenes[0].StatusVideo)

	assert.Equal(t, models.ProjectStatusGeneratingImages, store.project(project.ID).Status)
}

func TestAnalysisStripsCodeFences(t *testing.T) {
	project := pendingProject()
	store := newFakeStore(project)
	provider := &fakeAnalysis{videoResp: "```json\n" + analysisJSON + "\n```"}
	stage := NewAnalysisStage(store, provider)

	analysis, err := stage.Run(context.Background(), project)
	require.NoError(t, err)
	assert.Len(t, analysis.Scenes, 2)
}

func TestAnalysisFallbackUsedExactlyOnce(t *testing.T) {
	project := pendingProject()
	store := newFakeStore(project)
	provider := &fakeAnalysis{
		videoErr: errors.New("video fetch failed"),
		textResp: analysisJSON,
	}
	stage := NewAnalysisStage(store, provider)

	_, err := stage.Run(context.Background(), project)
	require.NoError(t, err)

	assert.Equal(t, 1, provider.videoCalls)
	assert.Equal(t, 1, provider.textCalls)
}

func TestAnalysisWithoutVideoGoesStraightToText(t *testing.T) {
	project := pendingProject()
	project.InputVideoURL = nil
	store := newFakeStore(project)
	provider := &fakeAnalysis{textResp: analysisJSON}
	stage := NewAnalysisStage(store, provider)

	_, err := stage.Run(context.Background(), project)
	require.NoError(t, err)

	assert.Equal(t, 0, provider.videoCalls)
	assert.Equal(t, 1, provider.textCalls)
}

func TestAnalysisDecodeFailureIsTerminal(t *testing.T) {
	project := pendingProject()
	store := newFakeStore(project)
	provider := &fakeAnalysis{videoResp: "I could not analyze that video, sorry."}
	stage := NewAnalysisStage(store, provider)

	_, err := stage.Run(context.Background(), project)
	require.Error(t, err)

	// No fallback for decode failures: the provider answered, just badly
	assert.Equal(t, 1, provider.videoCalls)
	assert.Equal(t, 0, provider.textCalls)

	scenes, _ := store.GetProjectScenes(context.Background(), project.ID)
	assert.Empty(t, scenes, "no scenes persisted on decode failure")
}

func TestAnalysisEmptyStoryboardFails(t *testing.T) {
	project := pendingProject()
	store := newFakeStore(project)
	provider := &fakeAnalysis{videoResp: `{"music_prompt":"","script":"","scenes":[]}`}
	stage := NewAnalysisStage(store, provider)

	_, err := stage.Run(context.Background(), project)
	require.Error(t, err)
}

func TestStripCodeFences(t *testing.T) {
	cases := map[string]string{
		"{\"a\":1}":                     "{\"a\":1}",
		"```json\n{\"a\":1}\n```":       "{\"a\":1}",
		"```\n{\"a\":1}\n```":           "{\"a\":1}",
		"  ```json\n{\"a\":1}\n```  \n": "{\"a\":1}",
	}
	for in, want := range cases {
		if got := stripCodeFences(in); got != want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", in, got, want)
		}
	}
}
