package sunogen

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/igolaizola/sunogen/pkg/filestore"
	"github.com/igolaizola/sunogen/pkg/node"
	"github.com/igolaizola/sunogen/pkg/suno"
)

type Config struct {
	Key          string
	BaseURL      string
	Proxy        string
	Debug        bool
	Output       string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Generate runs a single music generation end to end without a
// database: the API key comes from the config and assets are stored in
// the output folder.
func Generate(ctx context.Context, cfg *Config, params *node.Params) (*node.Outputs, error) {
	if cfg.Key == "" {
		return nil, &suno.ConfigurationError{Name: node.APIKeyName}
	}
	output := cfg.Output
	if output == "" {
		output = "."
	}
	fs, err := filestore.New("local", output, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("couldn't create file storage: %w", err)
	}
	n := node.New(&node.Config{
		Secrets: node.SecretFunc(func(ctx context.Context) (string, error) {
			return cfg.Key, nil
		}),
		Files:        fs,
		BaseURL:      cfg.BaseURL,
		Debug:        cfg.Debug,
		Proxy:        cfg.Proxy,
		PollInterval: cfg.PollInterval,
		PollTimeout:  cfg.PollTimeout,
		OnStatus: func(s suno.TaskStatus) {
			log.Println("status:", s)
		},
	})
	out, err := n.Process(ctx, params)
	if err != nil {
		return out, fmt.Errorf("couldn't generate song: %w", err)
	}
	log.Println("task:", out.TaskID)
	log.Println("title:", out.GeneratedTitle)
	log.Println("tags:", out.Tags)
	if out.AudioTrack1 != nil {
		log.Println("track 1:", out.AudioTrack1.URL)
	}
	if out.AudioTrack2 != nil {
		log.Println("track 2:", out.AudioTrack2.URL)
	}
	if out.CoverImage != nil {
		log.Println("cover:", out.CoverImage.URL)
	}
	return out, nil
}
