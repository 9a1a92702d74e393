package batch

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/igolaizola/sunogen/pkg/node"
	"github.com/igolaizola/sunogen/pkg/suno"
)

type input struct {
	Weight       int    `json:"weight,omitempty" csv:"weight"`
	Custom       bool   `json:"custom,omitempty" csv:"custom"`
	Model        string `json:"model,omitempty" csv:"model"`
	Prompt       string `json:"prompt,omitempty" csv:"prompt"`
	Style        string `json:"style,omitempty" csv:"style"`
	Title        string `json:"title,omitempty" csv:"title"`
	Instrumental bool   `json:"instrumental,omitempty" csv:"instrumental"`
}

type templates struct {
	opts []*node.Params
}

func (t *templates) next() *node.Params {
	return t.opts[rand.Intn(len(t.opts))]
}

// newTemplates builds the weighted pool of requests, either from the
// input file (csv or json) or from the config flags.
func newTemplates(cfg *Config) (*templates, error) {
	if cfg.Input == "" {
		return &templates{opts: []*node.Params{fromConfig(cfg)}}, nil
	}
	b, err := os.ReadFile(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("batch: couldn't read input file: %w", err)
	}
	var inputs []*input
	switch ext := filepath.Ext(cfg.Input); ext {
	case ".json":
		if err := json.Unmarshal(b, &inputs); err != nil {
			return nil, fmt.Errorf("batch: couldn't unmarshal input: %w", err)
		}
	case ".csv":
		if err := gocsv.UnmarshalBytes(b, &inputs); err != nil {
			return nil, fmt.Errorf("batch: couldn't unmarshal input: %w", err)
		}
	default:
		return nil, fmt.Errorf("batch: unsupported input format: %s", ext)
	}
	var opts []*node.Params
	for _, in := range inputs {
		if in.Prompt == "" && in.Style == "" {
			continue
		}
		w := in.Weight
		if w <= 0 {
			w = 1
		}
		model := in.Model
		if model == "" {
			model = cfg.Model
		}
		p := &node.Params{
			CustomMode:   in.Custom,
			Model:        suno.Model(model),
			Prompt:       in.Prompt,
			Style:        in.Style,
			Title:        in.Title,
			Instrumental: in.Instrumental,
			VocalGender:  cfg.VocalGender,
			NegativeTags: cfg.NegativeTags,
		}
		for i := 0; i < w; i++ {
			opts = append(opts, p)
		}
	}
	if len(opts) == 0 {
		return nil, fmt.Errorf("batch: no inputs found in file")
	}
	return &templates{opts: opts}, nil
}

func fromConfig(cfg *Config) *node.Params {
	return &node.Params{
		CustomMode:          cfg.CustomMode,
		Model:               suno.Model(cfg.Model),
		Prompt:              cfg.Prompt,
		Style:               cfg.Style,
		Title:               cfg.Title,
		Instrumental:        cfg.Instrumental,
		VocalGender:         cfg.VocalGender,
		NegativeTags:        cfg.NegativeTags,
		StyleWeight:         cfg.StyleWeight,
		WeirdnessConstraint: cfg.Weirdness,
		AudioWeight:         cfg.AudioWeight,
	}
}
