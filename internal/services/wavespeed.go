package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/recloned/adcloner/internal/models"
)

// ---------------------------------------------------------------------------
// WaveSpeed Generation Service
// Submits image (nano-banana-pro) and video (Kling v2.6) jobs and polls the
// shared predictions endpoint for results. Responses come in two shapes:
// a task id to poll, or a direct output URL when the job finished inline.
// Both are normalized here so callers never probe raw fields.
// ---------------------------------------------------------------------------

const (
	defaultWaveSpeedBaseURL = "https://api.wavespeed.ai/api/v3"

	imageModelPath = "/google/nano-banana-pro/edit"
	videoModelPath = "/kwaivgi/kling-v2.6-pro/image-to-video"

	// Kling clips are fixed-length regardless of the analyzed duration
	videoClipSeconds = 5

	wavespeedRequestTimeout = 60 * time.Second
)

// WaveSpeedService handles image and video generation via WaveSpeed AI.
type WaveSpeedService struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewWaveSpeedService(apiKey string) *WaveSpeedService {
	return NewWaveSpeedServiceWithBaseURL(apiKey, defaultWaveSpeedBaseURL)
}

// NewWaveSpeedServiceWithBaseURL allows overriding the API endpoint (tests).
func NewWaveSpeedServiceWithBaseURL(apiKey, baseURL string) *WaveSpeedService {
	return &WaveSpeedService{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: wavespeedRequestTimeout},
	}
}

// SubmitResult is the normalized response to a generation request. Exactly
// one of TaskID or OutputURL is set: a task id means the job is asynchronous
// and must be polled, a URL means the provider answered inline.
type SubmitResult struct {
	TaskID    string
	OutputURL string
}

// TaskStatus is the normalized response to a poll. OutputURL is only set
// when Status is "completed".
type TaskStatus struct {
	Status    string
	OutputURL string
}

// ImageRequest describes a start-frame generation job.
type ImageRequest struct {
	Prompt          string
	AspectRatio     models.AspectRatio
	ReferenceImages []string
}

// VideoRequest describes an image-to-video job.
type VideoRequest struct {
	ImageURL    string
	Prompt      string
	AspectRatio models.AspectRatio
}

// wire format for nano-banana-pro edit
type imageGenerationPayload struct {
	Prompt          string   `json:"prompt"`
	Size            string   `json:"size"`
	NumImages       int      `json:"num_images"`
	Image           string   `json:"image,omitempty"`
	ReferenceImages []string `json:"reference_images,omitempty"`
}

// wire format for kling i2v
type videoGenerationPayload struct {
	Image       string `json:"image"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
	Duration    int    `json:"duration"`
}

// waveSpeedEnvelope covers both response shapes the API produces: fields
// nested under "data" and the same fields at the top level.
type waveSpeedEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		ID       string   `json:"id"`
		Status   string   `json:"status"`
		Outputs  []string `json:"outputs"`
		ImageURL string   `json:"image_url"`
		VideoURL string   `json:"video_url"`
		AudioURL string   `json:"audio_url"`
		Error    string   `json:"error"`
	} `json:"data"`
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	Outputs  []string `json:"outputs"`
	AudioURL string   `json:"audio_url"`
}

func (e *waveSpeedEnvelope) taskID() string {
	if e.Data.ID != "" {
		return e.Data.ID
	}
	return e.ID
}

func (e *waveSpeedEnvelope) status() string {
	if e.Data.Status != "" {
		return e.Data.Status
	}
	return e.Status
}

func (e *waveSpeedEnvelope) outputURL() string {
	if len(e.Data.Outputs) > 0 {
		return e.Data.Outputs[0]
	}
	if e.Data.ImageURL != "" {
		return e.Data.ImageURL
	}
	if e.Data.VideoURL != "" {
		return e.Data.VideoURL
	}
	if e.Data.AudioURL != "" {
		return e.Data.AudioURL
	}
	if len(e.Outputs) > 0 {
		return e.Outputs[0]
	}
	return e.AudioURL
}

// SizeForAspect maps a project aspect ratio to the pixel size nano-banana
// expects.
func SizeForAspect(aspect models.AspectRatio) string {
	switch aspect {
	case models.AspectRatio16x9:
		return "1280x720"
	case models.AspectRatio9x16:
		return "720x1280"
	case models.AspectRatio4x5:
		return "864x1080"
	default:
		return "1024x1024"
	}
}

// GenerateImage submits a start-frame job. When reference images are
// provided the first doubles as the primary edit image; additional ones ride
// along as style references.
func (s *WaveSpeedService) GenerateImage(ctx context.Context, req ImageRequest) (*SubmitResult, error) {
	payload := imageGenerationPayload{
		Prompt:    req.Prompt,
		Size:      SizeForAspect(req.AspectRatio),
		NumImages: 1,
	}
	if len(req.ReferenceImages) > 0 {
		payload.Image = req.ReferenceImages[0]
		if len(req.ReferenceImages) > 1 {
			payload.ReferenceImages = req.ReferenceImages
		}
	}

	log.Printf("[WaveSpeed] Submitting image job (size=%s, refs=%d)", payload.Size, len(req.ReferenceImages))
	return s.submit(ctx, imageModelPath, payload)
}

// GenerateVideo submits an image-to-video job. The start image is required;
// callers must not submit scenes whose image stage did not complete.
func (s *WaveSpeedService) GenerateVideo(ctx context.Context, req VideoRequest) (*SubmitResult, error) {
	if req.ImageURL == "" {
		return nil, fmt.Errorf("video generation requires a start image")
	}

	aspect := req.AspectRatio
	if aspect == "" {
		aspect = models.AspectRatio16x9
	}

	payload := videoGenerationPayload{
		Image:       req.ImageURL,
		Prompt:      req.Prompt,
		AspectRatio: string(aspect),
		Duration:    videoClipSeconds,
	}

	log.Printf("[WaveSpeed] Submitting video job (duration=%ds)", videoClipSeconds)
	return s.submit(ctx, videoModelPath, payload)
}

// GenerateMusicFallback submits a music job to WaveSpeed's Suno endpoint.
// This is the secondary music path; KieService tries its own API first. The
// endpoint has no style or instrumental fields, so the style travels inside
// the prompt.
func (s *WaveSpeedService) GenerateMusicFallback(ctx context.Context, prompt string, durationSec int) (*SubmitResult, error) {
	payload := struct {
		Prompt   string `json:"prompt"`
		Duration int    `json:"duration"`
	}{Prompt: prompt, Duration: durationSec}

	log.Printf("[WaveSpeed] Submitting fallback music job")
	return s.submit(ctx, "/suno/generate", payload)
}

func (s *WaveSpeedService) submit(ctx context.Context, modelPath string, payload interface{}) (*SubmitResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+modelPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wavespeed request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("wavespeed returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var envelope waveSpeedEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode wavespeed response: %w", err)
	}

	result := &SubmitResult{}
	if url := envelope.outputURL(); url != "" {
		result.OutputURL = url
		return result, nil
	}
	if id := envelope.taskID(); id != "" {
		result.TaskID = id
		return result, nil
	}

	return nil, fmt.Errorf("wavespeed response contained neither task id nor output: %s", string(respBody))
}

// QueryTask polls a previously submitted job. It never mutates any state;
// task results are persisted by the pipeline or by the polling API handlers.
func (s *WaveSpeedService) QueryTask(ctx context.Context, taskID string) (*TaskStatus, error) {
	url := fmt.Sprintf("%s/predictions/%s/result", s.baseURL, taskID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wavespeed poll failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("wavespeed poll returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var envelope waveSpeedEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode wavespeed response: %w", err)
	}

	status := envelope.status()
	if status == "" {
		status = "processing"
	}

	ts := &TaskStatus{Status: status}
	if status == "completed" {
		ts.OutputURL = envelope.outputURL()
		if ts.OutputURL == "" {
			return nil, fmt.Errorf("task %s completed without output", taskID)
		}
	}
	if status == "failed" && envelope.Data.Error != "" {
		return ts, fmt.Errorf("task %s failed: %s", taskID, envelope.Data.Error)
	}

	return ts, nil
}
