package models

import (
	"encoding/json"
	"strings"
)

// ---------------------------------------------------------------------------
// SEALCaM prompt structure
// Analysis returns two prompts per scene (start image + motion), each as a
// six-field record: Subject, Environment, Action, Lighting, Camera,
// Metatokens. The structure exists only in the analysis response; before
// storage both prompts are flattened to a single labeled string.
// ---------------------------------------------------------------------------

// minFieldLen is the flattening threshold: a field whose trimmed content is
// this short carries no signal (model filler like "-" or "n/a") and is
// dropped from the flattened prompt entirely.
const minFieldLen = 2

// SEALCaMPrompt is a structured generation prompt. The field order below is
// the fixed contract the analysis provider is instructed to honor.
//
// Older analysis responses sometimes return a prompt as a bare string instead
// of the six-field object; UnmarshalJSON accepts both, keeping the raw string
// in Raw and leaving the fields empty.
type SEALCaMPrompt struct {
	Subject     string `json:"subject"`
	Environment string `json:"environment"`
	Action      string `json:"action"`
	Lighting    string `json:"lighting"`
	Camera      string `json:"camera"`
	Metatokens  string `json:"metatokens"`

	Raw string `json:"-"`
}

func (p *SEALCaMPrompt) UnmarshalJSON(data []byte) error {
	// Legacy shape: a plain string prompt
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = SEALCaMPrompt{Raw: s}
		return nil
	}

	type alias SEALCaMPrompt
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = SEALCaMPrompt(a)
	return nil
}

// Flatten collapses the prompt to one delimited string for storage and for
// downstream providers that expect plain text. Non-trivial fields are emitted
// as "[Label] content" segments in fixed S-E-A-L-Ca-M order, joined by ". ".
// Legacy string prompts pass through verbatim.
func (p SEALCaMPrompt) Flatten() string {
	if p.Raw != "" {
		return p.Raw
	}

	fields := []struct {
		label   string
		content string
	}{
		{"Subject", p.Subject},
		{"Environment", p.Environment},
		{"Action", p.Action},
		{"Lighting", p.Lighting},
		{"Camera", p.Camera},
		{"Metatokens", p.Metatokens},
	}

	var segments []string
	for _, f := range fields {
		content := strings.TrimSpace(f.content)
		if len(content) <= minFieldLen {
			continue
		}
		segments = append(segments, "["+f.label+"] "+content)
	}

	return strings.Join(segments, ". ")
}

// AnalysisScene is one scene in a decoded analysis result.
type AnalysisScene struct {
	SceneNumber      int           `json:"scene_number"`
	SceneTitle       string        `json:"scene_title"`
	StartImagePrompt SEALCaMPrompt `json:"start_image_prompt"`
	VideoPrompt      SEALCaMPrompt `json:"video_prompt"`
	DurationSeconds  int           `json:"duration_seconds"`
}

// VideoAnalysis is the structured result of the analysis stage: a music mood,
// an optional narration script, and the ordered scene list.
type VideoAnalysis struct {
	MusicPrompt string          `json:"music_prompt"`
	Script      string          `json:"script"`
	Scenes      []AnalysisScene `json:"scenes"`
}
