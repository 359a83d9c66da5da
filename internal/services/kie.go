package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Kie Music Generation Service
// Primary music provider (Suno via kie.ai). When the primary submission
// fails, one fallback attempt goes to WaveSpeed's Suno endpoint with the
// style folded into the prompt; if that also fails, the fallback's error is
// what the caller sees.
// ---------------------------------------------------------------------------

const (
	defaultKieBaseURL = "https://api.kie.ai/api/v1"

	defaultMusicStyle    = "cinematic advertising music"
	defaultMusicDuration = 30

	kieRequestTimeout = 60 * time.Second
)

// KieService handles background music generation.
type KieService struct {
	apiKey   string
	baseURL  string
	client   *http.Client
	fallback *WaveSpeedService
}

func NewKieService(apiKey string, fallback *WaveSpeedService) *KieService {
	return NewKieServiceWithBaseURL(apiKey, defaultKieBaseURL, fallback)
}

// NewKieServiceWithBaseURL allows overriding the API endpoint (tests).
func NewKieServiceWithBaseURL(apiKey, baseURL string, fallback *WaveSpeedService) *KieService {
	return &KieService{
		apiKey:   apiKey,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: kieRequestTimeout},
		fallback: fallback,
	}
}

// MusicRequest describes a background music job. Zero values get provider
// defaults: cinematic advertising style, 30 seconds.
type MusicRequest struct {
	Prompt      string
	Style       string
	DurationSec int
}

type kieGeneratePayload struct {
	Prompt       string `json:"prompt"`
	Style        string `json:"style"`
	Duration     int    `json:"duration"`
	Instrumental bool   `json:"instrumental"`
}

// kieEnvelope tolerates the field spellings kie.ai uses across endpoints.
type kieEnvelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID    string `json:"taskId"`
		TaskID2   string `json:"task_id"`
		ID        string `json:"id"`
		Status    string `json:"status"`
		AudioURL  string `json:"audioUrl"`
		AudioURL2 string `json:"audio_url"`
		Response  struct {
			SunoData []struct {
				AudioURL string `json:"audioUrl"`
			} `json:"sunoData"`
		} `json:"response"`
	} `json:"data"`
}

func (e *kieEnvelope) taskID() string {
	if e.Data.TaskID != "" {
		return e.Data.TaskID
	}
	if e.Data.TaskID2 != "" {
		return e.Data.TaskID2
	}
	return e.Data.ID
}

func (e *kieEnvelope) audioURL() string {
	if e.Data.AudioURL != "" {
		return e.Data.AudioURL
	}
	if e.Data.AudioURL2 != "" {
		return e.Data.AudioURL2
	}
	if len(e.Data.Response.SunoData) > 0 {
		return e.Data.Response.SunoData[0].AudioURL
	}
	return ""
}

// normalizeKieStatus maps kie.ai task states onto the pipeline's
// completed/failed/processing vocabulary.
func normalizeKieStatus(status string) string {
	upper := strings.ToUpper(status)
	switch {
	case upper == "SUCCESS" || upper == "COMPLETED":
		return "completed"
	case strings.Contains(upper, "FAIL") || strings.Contains(upper, "ERROR"):
		return "failed"
	default:
		return "processing"
	}
}

// GenerateMusic submits an instrumental music job. The primary attempt goes
// to kie.ai; on any primary failure, exactly one fallback goes to WaveSpeed
// with the style prepended to the prompt (that endpoint has no style or
// instrumental fields). A fallback failure surfaces the fallback's error.
func (s *KieService) GenerateMusic(ctx context.Context, req MusicRequest) (*SubmitResult, error) {
	style := req.Style
	if style == "" {
		style = defaultMusicStyle
	}
	duration := req.DurationSec
	if duration <= 0 {
		duration = defaultMusicDuration
	}

	result, err := s.submitPrimary(ctx, kieGeneratePayload{
		Prompt:       req.Prompt,
		Style:        style,
		Duration:     duration,
		Instrumental: true,
	})
	if err == nil {
		return result, nil
	}

	log.Printf("[Kie] Primary music submission failed, trying WaveSpeed fallback: %v", err)
	if s.fallback == nil {
		return nil, err
	}
	return s.fallback.GenerateMusicFallback(ctx, style+" "+req.Prompt, duration)
}

func (s *KieService) submitPrimary(ctx context.Context, payload kieGeneratePayload) (*SubmitResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kie request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("kie returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var envelope kieEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode kie response: %w", err)
	}
	if envelope.Code != 0 && envelope.Code != 200 {
		return nil, fmt.Errorf("kie rejected request (code %d): %s", envelope.Code, envelope.Msg)
	}

	if url := envelope.audioURL(); url != "" {
		return &SubmitResult{OutputURL: url}, nil
	}
	if id := envelope.taskID(); id != "" {
		return &SubmitResult{TaskID: id}, nil
	}

	return nil, fmt.Errorf("kie response contained neither task id nor audio: %s", string(respBody))
}

// QueryTask polls a music job. Task ids from the primary and from the
// fallback live in different systems, so a failed kie.ai lookup falls
// through to WaveSpeed once.
func (s *KieService) QueryTask(ctx context.Context, taskID string) (*TaskStatus, error) {
	ts, err := s.queryPrimary(ctx, taskID)
	if err == nil {
		return ts, nil
	}
	if s.fallback == nil {
		return nil, err
	}

	fts, ferr := s.fallback.QueryTask(ctx, taskID)
	if ferr != nil {
		return nil, err
	}
	return fts, nil
}

func (s *KieService) queryPrimary(ctx context.Context, taskID string) (*TaskStatus, error) {
	url := fmt.Sprintf("%s/generate/record-info?taskId=%s", s.baseURL, taskID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kie poll failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("kie poll returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var envelope kieEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode kie response: %w", err)
	}
	if envelope.Code != 0 && envelope.Code != 200 {
		return nil, fmt.Errorf("kie task lookup failed (code %d): %s", envelope.Code, envelope.Msg)
	}

	status := normalizeKieStatus(envelope.Data.Status)
	ts := &TaskStatus{Status: status}
	if status == "completed" {
		ts.OutputURL = envelope.audioURL()
		if ts.OutputURL == "" {
			return nil, fmt.Errorf("music task %s completed without audio", taskID)
		}
	}

	return ts, nil
}
