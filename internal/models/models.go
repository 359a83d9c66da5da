package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Enums
type ProjectStatus string

const (
	ProjectStatusPending           ProjectStatus = "pending"
	ProjectStatusAnalyzing         ProjectStatus = "analyzing"
	ProjectStatusGeneratingPrompts ProjectStatus = "generating_prompts"
	ProjectStatusGeneratingImages  ProjectStatus = "generating_images"
	ProjectStatusGeneratingVideos  ProjectStatus = "generating_videos"
	ProjectStatusCompleted         ProjectStatus = "completed"
	ProjectStatusError             ProjectStatus = "error"
)

type StageStatus string

const (
	StageStatusPending    StageStatus = "pending"
	StageStatusGenerating StageStatus = "generating"
	StageStatusCompleted  StageStatus = "completed"
	StageStatusError      StageStatus = "error"
)

// AspectRatio is the output frame shape for every generated asset in a project.
type AspectRatio string

const (
	AspectRatio16x9 AspectRatio = "16:9"
	AspectRatio9x16 AspectRatio = "9:16"
	AspectRatio4x5  AspectRatio = "4:5"
	AspectRatio1x1  AspectRatio = "1:1"
)

// ValidAspectRatio reports whether r is one of the supported frame shapes.
func ValidAspectRatio(r AspectRatio) bool {
	switch r {
	case AspectRatio16x9, AspectRatio9x16, AspectRatio4x5, AspectRatio1x1:
		return true
	}
	return false
}

// ErrInvalidTransition is returned when a project status update names a
// target state that is not reachable from the project's current state.
var ErrInvalidTransition = errors.New("invalid project status transition")

// projectTransitions maps each target status to the set of states it may be
// entered from. The error state is reachable from everywhere (any stage can
// fail), and analyzing is re-enterable from error so a failed run can be
// restarted by the operator.
var projectTransitions = map[ProjectStatus][]ProjectStatus{
	ProjectStatusAnalyzing:         {ProjectStatusPending, ProjectStatusError},
	ProjectStatusGeneratingPrompts: {ProjectStatusAnalyzing},
	ProjectStatusGeneratingImages:  {ProjectStatusGeneratingPrompts},
	ProjectStatusGeneratingVideos:  {ProjectStatusGeneratingImages},
	ProjectStatusCompleted:         {ProjectStatusGeneratingVideos},
	ProjectStatusError: {
		ProjectStatusPending, ProjectStatusAnalyzing, ProjectStatusGeneratingPrompts,
		ProjectStatusGeneratingImages, ProjectStatusGeneratingVideos, ProjectStatusCompleted,
	},
}

// ValidPredecessors returns the states a project may be in immediately before
// moving to the given status. An unknown target has no valid predecessors.
func ValidPredecessors(to ProjectStatus) []ProjectStatus {
	return projectTransitions[to]
}

// CanTransition reports whether a project may move from one status to another.
func CanTransition(from, to ProjectStatus) bool {
	for _, s := range projectTransitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// Models

// Project is one ad-cloning job: a source video plus brand/product direction,
// the derived music prompt and script, and the pipeline's status label.
type Project struct {
	ID                 uuid.UUID     `json:"id"`
	ProjectName        string        `json:"project_name"`
	InputVideoURL      *string       `json:"input_video_url,omitempty"`
	InputImage1URL     *string       `json:"input_image_1_url,omitempty"`
	InputImage2URL     *string       `json:"input_image_2_url,omitempty"`
	InputRequest       string        `json:"input_request"`
	SourceBrand        *string       `json:"source_brand,omitempty"`
	TargetBrand        *string       `json:"target_brand,omitempty"`
	ProductDescription *string       `json:"product_description,omitempty"`
	CreativeDirection  *string       `json:"creative_direction,omitempty"`
	AspectRatio        AspectRatio   `json:"aspect_ratio"`
	MusicPrompt        *string       `json:"music_prompt,omitempty"`
	MusicURL           *string       `json:"music_url,omitempty"`
	Script             *string       `json:"script,omitempty"`
	GenerateMusic      bool          `json:"generate_music"`
	Status             ProjectStatus `json:"status"`
	ErrorMessage       *string       `json:"error_message,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// ReferenceImages returns the project's reference image URLs in slot order,
// skipping empty slots. At most two entries.
func (p *Project) ReferenceImages() []string {
	var refs []string
	if p.InputImage1URL != nil && *p.InputImage1URL != "" {
		refs = append(refs, *p.InputImage1URL)
	}
	if p.InputImage2URL != nil && *p.InputImage2URL != "" {
		refs = append(refs, *p.InputImage2URL)
	}
	return refs
}

// Scene is one shot within a project. Image and video generation carry
// independent status fields; the video stage depends on StartImageURL.
type Scene struct {
	ID               uuid.UUID   `json:"id"`
	ProjectID        uuid.UUID   `json:"project_id"`
	SceneNumber      int         `json:"scene_number"`
	SceneTitle       string      `json:"scene_title"`
	StartImagePrompt *string     `json:"start_image_prompt,omitempty"`
	VideoPrompt      *string     `json:"video_prompt,omitempty"`
	StatusImage      StageStatus `json:"status_image"`
	StatusVideo      StageStatus `json:"status_video"`
	StartImageURL    *string     `json:"start_image_url,omitempty"`
	SceneVideoURL    *string     `json:"scene_video_url,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// DTOs for API responses

type ProjectResponse struct {
	Project
	Scenes []Scene `json:"scenes,omitempty"`
}

type CreateProjectRequest struct {
	// ID is optional; callers may pre-generate it so file uploads can be
	// keyed by project id before the row exists.
	ID                 *uuid.UUID  `json:"id,omitempty"`
	ProjectName        string      `json:"project_name"`
	InputVideoURL      *string     `json:"input_video_url,omitempty"`
	InputRequest       *string     `json:"input_request,omitempty"`
	SourceBrand        *string     `json:"source_brand,omitempty"`
	TargetBrand        *string     `json:"target_brand,omitempty"`
	ProductDescription *string     `json:"product_description,omitempty"`
	CreativeDirection  *string     `json:"creative_direction,omitempty"`
	AspectRatio        AspectRatio `json:"aspect_ratio,omitempty"`
	GenerateMusic      *bool       `json:"generate_music,omitempty"`
}

type CreateProjectResponse struct {
	ProjectID uuid.UUID     `json:"project_id"`
	Status    ProjectStatus `json:"status"`
}

// StageRunResponse is the API shape for a stage submission or task poll:
// either a task id with a pass-through status, or a final output URL.
type StageRunResponse struct {
	TaskID string `json:"taskId,omitempty"`
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
}
