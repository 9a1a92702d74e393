package query

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/igolaizola/sunogen/pkg/filestore"
	"github.com/igolaizola/sunogen/pkg/node"
	"github.com/igolaizola/sunogen/pkg/storage"
	"github.com/igolaizola/sunogen/pkg/suno"
)

type Config struct {
	Debug  bool
	DBType string
	DBConn string
	FSType string
	FSConn string
	Proxy  string

	Account string
	TaskID  string

	// Wait keeps polling until the task reaches a terminal state and
	// downloads the assets, instead of reporting the current status
	// once.
	Wait bool
}

// Run rechecks a previously submitted task by its id. This is the
// resume path for generations that exceeded the polling ceiling.
func Run(ctx context.Context, cfg *Config) error {
	if cfg.TaskID == "" {
		return errors.New("query: task id is empty")
	}

	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("query: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("query: couldn't start orm store: %w", err)
	}
	secrets := store.NewSecretStore("suno", cfg.Account)

	// The stored generation, if any, tells us whether the request was
	// instrumental and receives the refreshed outcome.
	gen, err := store.GetGenerationByTask(ctx, cfg.TaskID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("query: %w", err)
	}

	if !cfg.Wait {
		key, err := secrets.Secret(ctx)
		if err != nil || key == "" {
			return &suno.ConfigurationError{Name: node.APIKeyName}
		}
		client := suno.New(&suno.Config{
			Key:   key,
			Debug: cfg.Debug,
			Proxy: cfg.Proxy,
		})
		info, err := client.Task(ctx, cfg.TaskID)
		if err != nil {
			return fmt.Errorf("query: couldn't get task status: %w", err)
		}
		log.Println("task:", info.TaskID)
		log.Println("status:", info.Status)
		if info.ErrorMessage != "" {
			log.Println("error:", info.ErrorMessage)
		}
		for i, t := range info.Tracks {
			log.Printf("track %d: %s\n", i+1, t.AudioURL)
		}
		return nil
	}

	fs, err := filestore.New(cfg.FSType, cfg.FSConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("query: couldn't create file storage: %w", err)
	}
	n := node.New(&node.Config{
		Secrets: secrets,
		Files:   fs,
		Debug:   cfg.Debug,
		Proxy:   cfg.Proxy,
		OnStatus: func(s suno.TaskStatus) {
			log.Println("query: status", s)
		},
	})
	var instrumental bool
	if gen != nil {
		instrumental = gen.Instrumental
	}
	out, err := n.Resume(ctx, cfg.TaskID, instrumental)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	if gen != nil {
		gen.Status = out.Status
		gen.GeneratedTitle = out.GeneratedTitle
		gen.Tags = out.Tags
		gen.Lyrics = out.Lyrics
		gen.Details = out.ResultDetails
		if out.AudioTrack1 != nil {
			gen.Audio1 = out.AudioTrack1.Name
		}
		if out.AudioTrack2 != nil {
			gen.Audio2 = out.AudioTrack2.Name
		}
		if out.CoverImage != nil {
			gen.Cover = out.CoverImage.Name
		}
		if err := store.SetGeneration(ctx, gen); err != nil {
			return fmt.Errorf("query: %w", err)
		}
	}
	log.Println("status:", out.Status)
	log.Println("title:", out.GeneratedTitle)
	if out.AudioTrack1 != nil {
		log.Println("track 1:", out.AudioTrack1.URL)
	}
	if out.AudioTrack2 != nil {
		log.Println("track 2:", out.AudioTrack2.URL)
	}
	if out.CoverImage != nil {
		log.Println("cover:", out.CoverImage.URL)
	}
	return nil
}
