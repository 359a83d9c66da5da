package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/recloned/adcloner/internal/models"
)

func TestSizeForAspect(t *testing.T) {
	cases := []struct {
		aspect models.AspectRatio
		want   string
	}{
		{models.AspectRatio16x9, "1280x720"},
		{models.AspectRatio9x16, "720x1280"},
		{models.AspectRatio4x5, "864x1080"},
		{models.AspectRatio1x1, "1024x1024"},
		{models.AspectRatio(""), "1024x1024"},
	}
	for _, c := range cases {
		if got := SizeForAspect(c.aspect); got != c.want {
			t.Errorf("SizeForAspect(%q) = %q, want %q", c.aspect, got, c.want)
		}
	}
}

func TestGenerateImageReturnsTaskID(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing auth header")
		}
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 200,
			"data": map[string]interface{}{"id": "task-abc123"},
		})
	}))
	defer server.Close()

	svc := NewWaveSpeedServiceWithBaseURL("test-key", server.URL)
	result, err := svc.GenerateImage(context.Background(), ImageRequest{
		Prompt:      "[Subject] a red shoe",
		AspectRatio: models.AspectRatio9x16,
	})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}

	if result.TaskID != "task-abc123" {
		t.Errorf("TaskID = %q, want task-abc123", result.TaskID)
	}
	if result.OutputURL != "" {
		t.Errorf("OutputURL should be empty when a task id is returned, got %q", result.OutputURL)
	}
	if captured["size"] != "720x1280" {
		t.Errorf("size = %v, want 720x1280", captured["size"])
	}
	if _, present := captured["image"]; present {
		t.Error("image field should be absent without reference images")
	}
}

func TestGenerateImageDirectURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 200,
			"data": map[string]interface{}{
				"status":  "completed",
				"outputs": []string{"https://cdn.example.com/frame.png"},
			},
		})
	}))
	defer server.Close()

	svc := NewWaveSpeedServiceWithBaseURL("test-key", server.URL)
	result, err := svc.GenerateImage(context.Background(), ImageRequest{Prompt: "p", AspectRatio: models.AspectRatio16x9})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}

	if result.OutputURL != "https://cdn.example.com/frame.png" {
		t.Errorf("OutputURL = %q", result.OutputURL)
	}
	if result.TaskID != "" {
		t.Errorf("TaskID should be empty for a direct result, got %q", result.TaskID)
	}
}

func TestGenerateImageReferenceImages(t *testing.T) {
	var captured struct {
		Image           string   `json:"image"`
		ReferenceImages []string `json:"reference_images"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{"id": "t1"}})
	}))
	defer server.Close()

	svc := NewWaveSpeedServiceWithBaseURL("k", server.URL)
	refs := []string{"https://cdn/ref1.png", "https://cdn/ref2.png"}
	if _, err := svc.GenerateImage(context.Background(), ImageRequest{Prompt: "p", ReferenceImages: refs}); err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}

	if captured.Image != refs[0] {
		t.Errorf("image = %q, want first reference", captured.Image)
	}
	if len(captured.ReferenceImages) != 2 {
		t.Errorf("reference_images = %v, want both", captured.ReferenceImages)
	}
}

func TestGenerateVideoRequiresImage(t *testing.T) {
	svc := NewWaveSpeedServiceWithBaseURL("k", "http://unused.invalid")
	if _, err := svc.GenerateVideo(context.Background(), VideoRequest{Prompt: "motion"}); err == nil {
		t.Error("expected error when image URL is missing")
	}
}

func TestGenerateVideoFixedDuration(t *testing.T) {
	var captured struct {
		Image    string `json:"image"`
		Duration int    `json:"duration"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{"id": "vid-task"}})
	}))
	defer server.Close()

	svc := NewWaveSpeedServiceWithBaseURL("k", server.URL)
	result, err := svc.GenerateVideo(context.Background(), VideoRequest{
		ImageURL: "https://cdn/frame.png",
		Prompt:   "[Action] slow pan",
	})
	if err != nil {
		t.Fatalf("GenerateVideo: %v", err)
	}

	if captured.Duration != 5 {
		t.Errorf("duration = %d, want 5", captured.Duration)
	}
	if captured.Image != "https://cdn/frame.png" {
		t.Errorf("image = %q", captured.Image)
	}
	if result.TaskID != "vid-task" {
		t.Errorf("TaskID = %q", result.TaskID)
	}
}

func TestQueryTaskCompleted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predictions/task-9/result" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"id":      "task-9",
				"status":  "completed",
				"outputs": []string{"https://cdn.example.com/clip.mp4"},
			},
		})
	}))
	defer server.Close()

	svc := NewWaveSpeedServiceWithBaseURL("k", server.URL)
	status, err := svc.QueryTask(context.Background(), "task-9")
	if err != nil {
		t.Fatalf("QueryTask: %v", err)
	}
	if status.Status != "completed" || status.OutputURL != "https://cdn.example.com/clip.mp4" {
		t.Errorf("status = %+v", status)
	}
}

func TestQueryTaskProcessing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"id": "task-9", "status": "processing"},
		})
	}))
	defer server.Close()

	svc := NewWaveSpeedServiceWithBaseURL("k", server.URL)
	status, err := svc.QueryTask(context.Background(), "task-9")
	if err != nil {
		t.Fatalf("QueryTask: %v", err)
	}
	if status.Status != "processing" || status.OutputURL != "" {
		t.Errorf("status = %+v", status)
	}
}

func TestSubmitErrorIncludesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"model overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	svc := NewWaveSpeedServiceWithBaseURL("k", server.URL)
	_, err := svc.GenerateImage(context.Background(), ImageRequest{Prompt: "p"})
	if err == nil {
		t.Fatal("expected error")
	}
}
