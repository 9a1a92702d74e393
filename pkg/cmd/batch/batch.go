package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/igolaizola/sunogen/pkg/filestore"
	"github.com/igolaizola/sunogen/pkg/node"
	"github.com/igolaizola/sunogen/pkg/storage"
	"github.com/igolaizola/sunogen/pkg/suno"
	"github.com/oklog/ulid/v2"
)

type Config struct {
	Debug   bool
	DBType  string
	DBConn  string
	FSType  string
	FSConn  string
	Proxy   string
	Timeout time.Duration
	Limit   int
	WaitMin time.Duration
	WaitMax time.Duration

	Account string
	Input   string

	CustomMode   bool
	Model        string
	Prompt       string
	Style        string
	Title        string
	Instrumental bool
	VocalGender  string
	NegativeTags string
	StyleWeight  float64
	Weirdness    float64
	AudioWeight  float64
}

// Run launches the batch generation process: one blocking generation
// per iteration, drawn from the input file or the config flags.
func Run(ctx context.Context, cfg *Config) error {
	var iteration int
	log.Println("batch: process started")
	defer func() {
		log.Printf("batch: process ended (%d)\n", iteration)
	}()

	debug := func(format string, args ...interface{}) {
		if !cfg.Debug {
			return
		}
		format += "\n"
		log.Printf(format, args...)
	}

	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("batch: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("batch: couldn't start orm store: %w", err)
	}

	fs, err := filestore.New(cfg.FSType, cfg.FSConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("batch: couldn't create file storage: %w", err)
	}

	templates, err := newTemplates(cfg)
	if err != nil {
		return err
	}

	n := node.New(&node.Config{
		Secrets: store.NewSecretStore("suno", cfg.Account),
		Files:   fs,
		Debug:   cfg.Debug,
		Proxy:   cfg.Proxy,
		OnStatus: func(s suno.TaskStatus) {
			debug("batch: status %s", s)
		},
	})

	// Print time stats
	start := time.Now()
	defer func() {
		if iteration == 0 {
			return
		}
		total := time.Since(start)
		log.Printf("batch: total time %s, average time %s\n", total, total/time.Duration(iteration))
	}()

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 24 * time.Hour
	}
	ticker := time.NewTicker(timeout)
	defer ticker.Stop()

	limit := cfg.Limit
	if limit == 0 {
		limit = 1
	}
	nErr := 0
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("batch: %w", ctx.Err())
		case <-ticker.C:
			return nil
		default:
		}
		if iteration >= limit {
			return nil
		}
		iteration++

		// Wait for a random time between iterations.
		if iteration > 1 && cfg.WaitMax > cfg.WaitMin {
			wait := time.Duration(rand.Int63n(int64(cfg.WaitMax-cfg.WaitMin))) + cfg.WaitMin
			select {
			case <-ctx.Done():
				return fmt.Errorf("batch: %w", ctx.Err())
			case <-time.After(wait):
			}
		}

		tmpl := templates.next()
		debug("batch: start %d prompt %q style %q", iteration, tmpl.Prompt, tmpl.Style)
		if err := generate(ctx, n, store, tmpl); err != nil {
			log.Println(err)
			nErr++
			if nErr > 10 {
				return fmt.Errorf("batch: too many consecutive errors: %w", err)
			}
			continue
		}
		nErr = 0
		debug("batch: end %d", iteration)
	}
}

func generate(ctx context.Context, n *node.Node, store *storage.Store, params *node.Params) error {
	gen := &storage.Generation{
		ID:           ulid.Make().String(),
		CustomMode:   params.CustomMode,
		Model:        string(params.Model),
		Prompt:       params.Prompt,
		Style:        params.Style,
		Title:        params.Title,
		Instrumental: params.Instrumental,
	}

	out, err := n.Process(ctx, params)
	if out != nil {
		gen.TaskID = out.TaskID
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
	}

	// A timed out task is stored with its task id so the query command
	// can recheck it later.
	var timeoutErr *suno.TimeoutError
	if errors.As(err, &timeoutErr) {
		gen.Status = "timeout"
	}

	if gen.TaskID != "" || err == nil {
		if serr := store.SetGeneration(ctx, gen); serr != nil {
			return fmt.Errorf("batch: couldn't save generation to database: %w", serr)
		}
	}
	if err != nil {
		return fmt.Errorf("batch: couldn't generate song: %w", err)
	}
	return nil
}
