// Package node implements the music generation workflow step: it
// validates the visible parameters, submits the request, polls until a
// terminal state, downloads the resulting assets into a file store and
// exposes them as artifacts.
package node

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/igolaizola/sunogen/pkg/suno"
	"github.com/oklog/ulid/v2"
)

// APIKeyName is the secret the node reads from the host secret store.
const APIKeyName = "SUNO_API_KEY"

// InstrumentalLyrics is the lyrics output for instrumental tracks that
// carry no lyric text.
const InstrumentalLyrics = "[Instrumental]"

// Secrets is the host-managed secret store the API key is read from at
// call time.
type Secrets interface {
	Secret(ctx context.Context) (string, error)
}

// SecretFunc adapts a function to the Secrets interface.
type SecretFunc func(ctx context.Context) (string, error)

func (f SecretFunc) Secret(ctx context.Context) (string, error) {
	return f(ctx)
}

// FileStore is the static storage collaborator assets are persisted to.
type FileStore interface {
	Upload(ctx context.Context, path, name string) error
	URL(ctx context.Context, name string) (string, error)
}

// Params are the node's visible input parameters.
type Params struct {
	CustomMode          bool       `json:"custom_mode"`
	Model               suno.Model `json:"model"`
	Prompt              string     `json:"prompt"`
	Style               string     `json:"style"`
	Title               string     `json:"title"`
	Instrumental        bool       `json:"instrumental"`
	VocalGender         string     `json:"vocal_gender"`
	NegativeTags        string     `json:"negative_tags"`
	StyleWeight         float64    `json:"style_weight"`
	WeirdnessConstraint float64    `json:"weirdness_constraint"`
	AudioWeight         float64    `json:"audio_weight"`
}

func (p *Params) request() *suno.GenerationRequest {
	model := p.Model
	if model == "" {
		model = suno.DefaultModel
	}
	return &suno.GenerationRequest{
		CustomMode:          p.CustomMode,
		Model:               model,
		Prompt:              p.Prompt,
		Style:               p.Style,
		Title:               p.Title,
		Instrumental:        p.Instrumental,
		VocalGender:         p.VocalGender,
		NegativeTags:        p.NegativeTags,
		StyleWeight:         p.StyleWeight,
		WeirdnessConstraint: p.WeirdnessConstraint,
		AudioWeight:         p.AudioWeight,
	}
}

// AudioArtifact wraps a stored audio reference for the workflow.
type AudioArtifact struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ImageArtifact wraps a stored image reference for the workflow.
type ImageArtifact struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Outputs are the node's output parameters. Status and TaskID are
// populated as soon as they are known, the rest only on success.
type Outputs struct {
	Status         string         `json:"status"`
	TaskID         string         `json:"task_id"`
	AudioTrack1    *AudioArtifact `json:"audio_track_1"`
	AudioTrack2    *AudioArtifact `json:"audio_track_2"`
	CoverImage     *ImageArtifact `json:"cover_image"`
	GeneratedTitle string         `json:"generated_title"`
	Tags           string         `json:"tags"`
	Lyrics         string         `json:"lyrics"`
	ResultDetails  string         `json:"result_details"`
}

type Config struct {
	Secrets Secrets
	Files   FileStore

	BaseURL      string
	Debug        bool
	Client       *http.Client
	Proxy        string
	PollInterval time.Duration
	PollTimeout  time.Duration

	// OnStatus receives every observed task status, latest last.
	OnStatus func(suno.TaskStatus)
}

type Node struct {
	cfg *Config
}

func New(cfg *Config) *Node {
	return &Node{cfg: cfg}
}

// Process runs the node as one blocking sequence: validate, submit,
// poll and fetch. The returned outputs always hold safe values; on
// error the result details carry the message.
func (n *Node) Process(ctx context.Context, params *Params) (*Outputs, error) {
	out := &Outputs{
		Status:        "error",
		ResultDetails: "Generation failed",
	}
	req := params.request()
	if err := suno.Validate(req); err != nil {
		return fail(out, err)
	}

	key, err := n.cfg.Secrets.Secret(ctx)
	if err != nil || key == "" {
		return fail(out, &suno.ConfigurationError{Name: APIKeyName})
	}
	client := n.client(key)

	out.Status = "submitting"
	id, err := client.Submit(ctx, req)
	if err != nil {
		return fail(out, err)
	}
	out.TaskID = id

	if err := n.waitAndFetch(ctx, client, id, params.Instrumental, out); err != nil {
		return fail(out, err)
	}
	return out, nil
}

// Resume picks up a previously submitted task by its id: it polls until
// a terminal state and fetches the assets. This is the out-of-band
// recheck path for tasks that hit the polling ceiling.
func (n *Node) Resume(ctx context.Context, taskID string, instrumental bool) (*Outputs, error) {
	out := &Outputs{
		Status:        "error",
		TaskID:        taskID,
		ResultDetails: "Generation failed",
	}
	key, err := n.cfg.Secrets.Secret(ctx)
	if err != nil || key == "" {
		return fail(out, &suno.ConfigurationError{Name: APIKeyName})
	}
	client := n.client(key)
	if err := n.waitAndFetch(ctx, client, taskID, instrumental, out); err != nil {
		return fail(out, err)
	}
	return out, nil
}

func (n *Node) client(key string) *suno.Client {
	return suno.New(&suno.Config{
		Key:          key,
		BaseURL:      n.cfg.BaseURL,
		Debug:        n.cfg.Debug,
		Client:       n.cfg.Client,
		Proxy:        n.cfg.Proxy,
		PollInterval: n.cfg.PollInterval,
		PollTimeout:  n.cfg.PollTimeout,
	})
}

func (n *Node) waitAndFetch(ctx context.Context, client *suno.Client, id string, instrumental bool, out *Outputs) error {
	out.Status = "generating"
	res, err := client.Wait(ctx, id, func(s suno.TaskStatus) {
		out.Status = string(s)
		if n.cfg.OnStatus != nil {
			n.cfg.OnStatus(s)
		}
	})
	if err != nil {
		return err
	}
	if err := n.fetchAssets(ctx, client, res, instrumental, out); err != nil {
		return err
	}
	out.Status = "complete"
	out.ResultDetails = details(res)
	return nil
}

func fail(out *Outputs, err error) (*Outputs, error) {
	out.Status = "error"
	out.ResultDetails = fmt.Sprintf("ERROR: %v", err)
	return out, err
}

// fetchAssets downloads the two audio tracks and the cover image and
// persists them. Any single failure fails the whole step: artifacts are
// only assigned to the outputs once every asset has been stored.
func (n *Node) fetchAssets(ctx context.Context, client *suno.Client, res *suno.GenerationResult, instrumental bool, out *Outputs) error {
	id := strings.ToLower(ulid.Make().String())

	var audios []*AudioArtifact
	for i, track := range res.Tracks {
		if i >= 2 {
			break
		}
		name := fmt.Sprintf("%s_track%d.mp3", id, i+1)
		ref, err := n.save(ctx, client, track.AudioURL, name)
		if err != nil {
			return &suno.FetchError{
				Asset: fmt.Sprintf("audio track %d", i+1),
				URL:   track.AudioURL,
				Err:   err,
			}
		}
		audios = append(audios, &AudioArtifact{Name: name, URL: ref})
	}

	first := res.Tracks[0]
	var cover *ImageArtifact
	if first.ImageURL != "" {
		name := fmt.Sprintf("%s_cover.jpg", id)
		ref, err := n.save(ctx, client, first.ImageURL, name)
		if err != nil {
			return &suno.FetchError{
				Asset: "cover image",
				URL:   first.ImageURL,
				Err:   err,
			}
		}
		cover = &ImageArtifact{Name: name, URL: ref}
	}

	out.AudioTrack1 = audios[0]
	if len(audios) > 1 {
		out.AudioTrack2 = audios[1]
	}
	out.CoverImage = cover
	out.GeneratedTitle = first.Title
	if out.GeneratedTitle == "" {
		out.GeneratedTitle = "Untitled"
	}
	out.Tags = first.Tags
	out.Lyrics = first.Prompt
	if instrumental && strings.TrimSpace(out.Lyrics) == "" {
		out.Lyrics = InstrumentalLyrics
	}
	return nil
}

// save downloads an asset to a temporary file, uploads it to the file
// store and returns its durable reference.
func (n *Node) save(ctx context.Context, client *suno.Client, u, name string) (string, error) {
	f, err := os.CreateTemp("", "sunogen_*"+filepath.Ext(name))
	if err != nil {
		return "", fmt.Errorf("node: couldn't create temp file: %w", err)
	}
	tmp := f.Name()
	_ = f.Close()
	defer os.Remove(tmp)

	if err := client.Download(ctx, u, tmp); err != nil {
		return "", err
	}
	if err := n.cfg.Files.Upload(ctx, tmp, name); err != nil {
		return "", err
	}
	ref, err := n.cfg.Files.URL(ctx, name)
	if err != nil {
		return "", err
	}
	return ref, nil
}

func details(res *suno.GenerationResult) string {
	first := res.Tracks[0]
	lyrics := first.Prompt
	if len(lyrics) > 50 {
		lyrics = lyrics[:50] + "..."
	}
	lines := []string{
		fmt.Sprintf("Generated %d track variation(s)", len(res.Tracks)),
		fmt.Sprintf("Title: %s", first.Title),
		fmt.Sprintf("Tags: %s", first.Tags),
		fmt.Sprintf("Lyrics: %s", lyrics),
		fmt.Sprintf("Task ID: %s", res.TaskID),
		fmt.Sprintf("Model: %s", first.ModelName),
		"",
		"Track Details:",
	}
	for i, track := range res.Tracks {
		lines = append(lines, fmt.Sprintf("%d. Duration: %.0fs", i+1, track.Duration))
		lines = append(lines, fmt.Sprintf("   Audio: %s", track.AudioURL))
	}
	return strings.Join(lines, "\n")
}
