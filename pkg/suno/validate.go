package suno

import (
	"strings"
	"unicode/utf8"
)

// Model is a Suno model version.
type Model string

const (
	ModelV5      Model = "V5"
	ModelV4_5P   Model = "V4_5PLUS"
	ModelV4_5    Model = "V4_5"
	ModelV4      Model = "V4"
	ModelV3_5    Model = "V3_5"
	DefaultModel       = ModelV5
)

// Models returns the known model versions.
func Models() []Model {
	return []Model{ModelV5, ModelV4_5P, ModelV4_5, ModelV4, ModelV3_5}
}

func (m Model) Valid() bool {
	for _, v := range Models() {
		if m == v {
			return true
		}
	}
	return false
}

// Vocal gender preferences accepted by the service.
const (
	VocalAuto   = "auto"
	VocalMale   = "m"
	VocalFemale = "f"
)

// DefaultWeight is the service default for the three weight sliders.
// Weights at this value are omitted from the request payload.
const DefaultWeight = 0.65

// Character ceilings documented by the service.
const (
	TitleLimit        = 80
	SimplePromptLimit = 500
)

var customPromptLimits = map[Model]int{
	ModelV3_5:  3000,
	ModelV4:    3000,
	ModelV4_5:  5000,
	ModelV4_5P: 5000,
	ModelV5:    5000,
}

var styleLimits = map[Model]int{
	ModelV3_5:  200,
	ModelV4:    200,
	ModelV4_5:  1000,
	ModelV4_5P: 1000,
	ModelV5:    1000,
}

// GenerationRequest is a single music generation request. Field
// requirements and length limits depend on the (mode, model) pair and
// are checked by Validate before submission.
type GenerationRequest struct {
	// CustomMode gives full control over lyrics, style and title. When
	// false (simple mode) the service auto-generates them from a short
	// prompt description.
	CustomMode   bool
	Model        Model
	Prompt       string
	Style        string
	Title        string
	Instrumental bool
	VocalGender  string
	NegativeTags string

	// Weight sliders in the 0.0-1.0 range. Zero means service default.
	StyleWeight         float64
	WeirdnessConstraint float64
	AudioWeight         float64
}

// Validate checks the request against the per-(mode, model) rules and
// fails fast with a *ValidationError naming the offending field and
// limit. Values exactly at a ceiling are accepted.
func Validate(req *GenerationRequest) error {
	if !req.Model.Valid() {
		return &ValidationError{Field: "model", Reason: "unknown model version " + string(req.Model)}
	}
	switch req.VocalGender {
	case "", VocalAuto, VocalMale, VocalFemale:
	default:
		return &ValidationError{Field: "vocal_gender", Reason: "must be auto, m or f"}
	}
	for field, w := range map[string]float64{
		"style_weight":         req.StyleWeight,
		"weirdness_constraint": req.WeirdnessConstraint,
		"audio_weight":         req.AudioWeight,
	} {
		if w < 0 || w > 1 {
			return &ValidationError{Field: field, Reason: "must be between 0.0 and 1.0"}
		}
	}

	prompt := strings.TrimSpace(req.Prompt)
	if !req.CustomMode {
		// Simple mode: only the prompt matters, style and title are
		// ignored.
		if prompt == "" {
			return &ValidationError{Field: "prompt", Reason: "required in simple mode"}
		}
		// Limits count characters, not bytes.
		if n := utf8.RuneCountInString(prompt); n > SimplePromptLimit {
			return &ValidationError{Field: "prompt", Limit: SimplePromptLimit, Length: n}
		}
		return nil
	}

	style := strings.TrimSpace(req.Style)
	title := strings.TrimSpace(req.Title)
	if style == "" {
		return &ValidationError{Field: "style", Reason: "required in custom mode"}
	}
	if title == "" {
		return &ValidationError{Field: "title", Reason: "required in custom mode"}
	}
	// Instrumental tracks have no lyric requirement.
	if prompt == "" && !req.Instrumental {
		return &ValidationError{Field: "prompt", Reason: "lyrics required in custom mode when not instrumental"}
	}
	if limit, n := customPromptLimits[req.Model], utf8.RuneCountInString(prompt); n > limit {
		return &ValidationError{Field: "prompt", Limit: limit, Length: n}
	}
	if limit, n := styleLimits[req.Model], utf8.RuneCountInString(style); n > limit {
		return &ValidationError{Field: "style", Limit: limit, Length: n}
	}
	if n := utf8.RuneCountInString(title); n > TitleLimit {
		return &ValidationError{Field: "title", Limit: TitleLimit, Length: n}
	}
	return nil
}
