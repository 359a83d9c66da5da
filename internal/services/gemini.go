package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"google.golang.org/genai"
)

// ---------------------------------------------------------------------------
// Gemini Video Analysis Service
// Uses the Google Gen AI SDK to break a source advertisement into scenes.
// The model sees the video by URI plus an instruction prompt and must answer
// with bare JSON matching the VideoAnalysis contract.
// ---------------------------------------------------------------------------

const (
	defaultGeminiModel = "gemini-2.0-flash"

	// The text-only fallback runs a little hotter: with no video to ground
	// on, the model is asked to invent a storyboard.
	videoAnalysisTemperature = 0.7
	textAnalysisTemperature  = 0.8
	analysisMaxOutputTokens  = 8192

	analysisTimeout = 4 * time.Minute
)

// GeminiService handles source-video analysis via Gemini.
type GeminiService struct {
	apiKey string
	model  string
}

// NewGeminiService creates a new Gemini analysis service.
// model: empty string defaults to gemini-2.0-flash.
func NewGeminiService(apiKey, model string) *GeminiService {
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiService{
		apiKey: apiKey,
		model:  model,
	}
}

// AnalyzeVideo sends the source video (by public URL) together with the
// analysis prompt and returns the model's raw text response. The caller is
// responsible for code-fence stripping and JSON decoding.
func (s *GeminiService) AnalyzeVideo(ctx context.Context, videoURL, prompt string) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromURI(videoURL, "video/mp4"),
		genai.NewPartFromText(prompt),
	}
	return s.generate(ctx, parts, videoAnalysisTemperature)
}

// AnalyzeText runs the text-only variant of the analysis request (no video
// part, just the prompt). Used as the single fallback when the video-based
// request fails.
func (s *GeminiService) AnalyzeText(ctx context.Context, prompt string) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
	}
	return s.generate(ctx, parts, textAnalysisTemperature)
}

func (s *GeminiService) generate(ctx context.Context, parts []*genai.Part, temperature float32) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, analysisTimeout)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create genai client: %w", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](temperature),
		MaxOutputTokens: analysisMaxOutputTokens,
	}

	resp, err := client.Models.GenerateContent(ctx, s.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned no text content")
	}

	log.Printf("[Gemini] Analysis response received (%d chars)", len(text))
	return text, nil
}

// BuildAnalysisPrompt constructs the instruction prompt for video analysis.
// The brand-transformation sentence is only included when both brands are
// known; an empty brand pair produces a prompt with no brand framing at all.
func BuildAnalysisPrompt(brief, sourceBrand, targetBrand string) string {
	request := brief
	if sourceBrand != "" && targetBrand != "" {
		request = fmt.Sprintf("Transform this %s style advertisement into a %s branded version. %s", sourceBrand, targetBrand, brief)
	}

	return fmt.Sprintf(`You are an expert video analyst. Analyze this video and extract scenes for recreation.

User's request: %s

IMPORTANT: Output ONLY valid JSON, no markdown code blocks.

Use the SEALCaM framework for all prompts:
- S (Subject): Main subject/character description
- E (Environment): Setting, background, location
- A (Action): What's happening, movement
- L (Lighting): Light quality, direction, mood
- Ca (Camera): Shot type, angle, movement
- M (Metatokens): Style keywords, quality tags

The start_image_prompt must describe a single static frame — the first frame
of the scene, frozen. The video_prompt must describe motion that originates
from that frame. Keep the two strictly separated.

Analyze the video and return this JSON structure:
{
  "music_prompt": "Description of background music/audio mood",
  "script": "Narration or text that appears",
  "scenes": [
    {
      "scene_number": 1,
      "scene_title": "Scene 1 - Opening",
      "start_image_prompt": {
        "subject": "...",
        "environment": "...",
        "action": "...",
        "lighting": "...",
        "camera": "...",
        "metatokens": "..."
      },
      "video_prompt": {
        "subject": "...",
        "environment": "...",
        "action": "...",
        "lighting": "...",
        "camera": "...",
        "metatokens": "..."
      },
      "duration_seconds": 3
    }
  ]
}

Identify 3-8 distinct scenes. Each scene should be recreatable as a 5-10 second video clip.`, request)
}

// BuildFallbackPrompt wraps the base analysis prompt for the text-only
// fallback: no video is available, so the model is told to invent a
// plausible storyboard instead.
func BuildFallbackPrompt(brief, basePrompt string) string {
	return fmt.Sprintf(`Based on this request: %q

Generate a creative video storyboard with 4-6 scenes. Output ONLY valid JSON:

%s`, brief, basePrompt)
}
