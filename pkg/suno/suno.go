package suno

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.sunoapi.org/api/v1"

	// The API requires a callback URL on every generation request, but
	// results are obtained by polling the record-info endpoint instead.
	callbackURL = "https://example.com/callback"

	defaultPollInterval = 10 * time.Second
	defaultPollTimeout  = 6 * time.Minute
)

// TaskStatus is the progress state reported by the service for a
// generation task. The PENDING, TEXT_SUCCESS, FIRST_SUCCESS, SUCCESS
// chain is monotonic per the service contract.
type TaskStatus string

const (
	StatusPending             TaskStatus = "PENDING"
	StatusTextSuccess         TaskStatus = "TEXT_SUCCESS"
	StatusFirstSuccess        TaskStatus = "FIRST_SUCCESS"
	StatusSuccess             TaskStatus = "SUCCESS"
	StatusCreateTaskFailed    TaskStatus = "CREATE_TASK_FAILED"
	StatusGenerateAudioFailed TaskStatus = "GENERATE_AUDIO_FAILED"
	StatusCallbackException   TaskStatus = "CALLBACK_EXCEPTION"
	StatusSensitiveWordError  TaskStatus = "SENSITIVE_WORD_ERROR"
)

// Failed reports whether the status is a terminal failure.
func (s TaskStatus) Failed() bool {
	switch s {
	case StatusCreateTaskFailed, StatusGenerateAudioFailed,
		StatusCallbackException, StatusSensitiveWordError:
		return true
	}
	return false
}

// Terminal reports whether no further polling should happen.
func (s TaskStatus) Terminal() bool {
	return s == StatusSuccess || s.Failed()
}

type Client struct {
	client       *http.Client
	download     *http.Client
	key          string
	baseURL      string
	debug        bool
	pollInterval time.Duration
	pollTimeout  time.Duration
}

type Config struct {
	Key          string
	BaseURL      string
	Debug        bool
	Client       *http.Client
	Proxy        string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

func New(cfg *Config) *Client {
	client := cfg.Client
	download := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
		}
		// Asset downloads are multi-MB files and get a longer timeout
		// than API calls.
		download = &http.Client{
			Timeout: 2 * time.Minute,
		}
	}
	if cfg.Proxy != "" {
		if u, err := url.Parse(cfg.Proxy); err == nil {
			transport := &http.Transport{
				Proxy: http.ProxyURL(u),
			}
			client.Transport = transport
			download.Transport = transport
		}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = defaultPollInterval
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout == 0 {
		pollTimeout = defaultPollTimeout
	}
	return &Client{
		client:       client,
		download:     download,
		key:          cfg.Key,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		debug:        cfg.Debug,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
	}
}

type generateRequest struct {
	CustomMode          bool     `json:"customMode"`
	Instrumental        bool     `json:"instrumental"`
	Model               string   `json:"model"`
	CallBackURL         string   `json:"callBackUrl"`
	Prompt              string   `json:"prompt,omitempty"`
	Style               string   `json:"style,omitempty"`
	Title               string   `json:"title,omitempty"`
	NegativeTags        string   `json:"negativeTags,omitempty"`
	VocalGender         string   `json:"vocalGender,omitempty"`
	StyleWeight         *float64 `json:"styleWeight,omitempty"`
	WeirdnessConstraint *float64 `json:"weirdnessConstraint,omitempty"`
	AudioWeight         *float64 `json:"audioWeight,omitempty"`
}

// envelope is the common response wrapper of the service. A code other
// than 200 means the request was rejected regardless of the HTTP status.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type generateData struct {
	TaskID string `json:"taskId"`
}

type recordInfoData struct {
	TaskID       string     `json:"taskId"`
	Status       TaskStatus `json:"status"`
	ErrorMessage string     `json:"errorMessage"`
	Response     struct {
		SunoData []trackData `json:"sunoData"`
	} `json:"response"`
}

type trackData struct {
	AudioURL  string  `json:"audioUrl"`
	ImageURL  string  `json:"imageUrl"`
	Title     string  `json:"title"`
	Duration  float64 `json:"duration"`
	Tags      string  `json:"tags"`
	Prompt    string  `json:"prompt"`
	ModelName string  `json:"modelName"`
}

// Track is a single generated variation. Every successful task carries
// two of them plus a shared cover image.
type Track struct {
	AudioURL  string  `json:"audio_url"`
	ImageURL  string  `json:"image_url"`
	Title     string  `json:"title"`
	Duration  float64 `json:"duration"`
	Tags      string  `json:"tags"`
	Prompt    string  `json:"prompt"`
	ModelName string  `json:"model_name"`
}

// TaskInfo is the status snapshot returned by the record-info endpoint.
type TaskInfo struct {
	TaskID       string
	Status       TaskStatus
	ErrorMessage string
	Tracks       []Track
}

// GenerationResult is assembled once a task reaches SUCCESS.
type GenerationResult struct {
	TaskID string
	Status TaskStatus
	Tracks []Track
}

func toPayload(req *GenerationRequest) *generateRequest {
	payload := &generateRequest{
		CustomMode:   req.CustomMode,
		Instrumental: req.Instrumental,
		Model:        string(req.Model),
		CallBackURL:  callbackURL,
		Prompt:       strings.TrimSpace(req.Prompt),
		NegativeTags: strings.TrimSpace(req.NegativeTags),
	}
	if req.CustomMode {
		payload.Style = strings.TrimSpace(req.Style)
		payload.Title = strings.TrimSpace(req.Title)
	}
	if req.VocalGender != "" && req.VocalGender != VocalAuto {
		payload.VocalGender = req.VocalGender
	}
	// Weights are only sent when they differ from the service default.
	payload.StyleWeight = weight(req.StyleWeight)
	payload.WeirdnessConstraint = weight(req.WeirdnessConstraint)
	payload.AudioWeight = weight(req.AudioWeight)
	return payload
}

func weight(v float64) *float64 {
	if v == 0 || v == DefaultWeight {
		return nil
	}
	r := float64(int(v*100+0.5)) / 100
	return &r
}

// Submit validates the request and sends it to the generation endpoint.
// It returns the opaque task id used for all subsequent polling. There
// is no retry at this stage: a failed submission is reported immediately
// rather than risking a duplicate billed generation.
func (c *Client) Submit(ctx context.Context, req *GenerationRequest) (string, error) {
	if err := Validate(req); err != nil {
		return "", err
	}
	var data generateData
	if err := c.do(ctx, "POST", "generate", toPayload(req), &data); err != nil {
		return "", &SubmissionError{Err: err}
	}
	if data.TaskID == "" {
		return "", &SubmissionError{Err: errors.New("suno: no task id in response")}
	}
	return data.TaskID, nil
}

// Task queries the current status of a task by its id.
func (c *Client) Task(ctx context.Context, id string) (*TaskInfo, error) {
	var data recordInfoData
	u := fmt.Sprintf("generate/record-info?taskId=%s", url.QueryEscape(id))
	if err := c.do(ctx, "GET", u, nil, &data); err != nil {
		return nil, err
	}
	info := &TaskInfo{
		TaskID:       data.TaskID,
		Status:       data.Status,
		ErrorMessage: data.ErrorMessage,
	}
	if info.TaskID == "" {
		info.TaskID = id
	}
	for _, t := range data.Response.SunoData {
		if t.AudioURL == "" {
			continue
		}
		info.Tracks = append(info.Tracks, Track(t))
	}
	return info, nil
}

// Wait polls the task status on a fixed interval until it reaches a
// terminal state or the polling ceiling is exceeded. Each observed
// status is passed to onStatus, so the caller always sees the latest
// one. Transient poll failures are absorbed by the next scheduled
// re-query. On timeout the task id is preserved in the returned error so
// the caller can recheck the task later out-of-band.
func (c *Client) Wait(ctx context.Context, id string, onStatus func(TaskStatus)) (*GenerationResult, error) {
	start := time.Now()
	var last TaskStatus
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("suno: %w", ctx.Err())
		case <-time.After(c.pollInterval):
		}
		info, err := c.Task(ctx, id)
		switch {
		case err != nil && isServiceReject(err):
			return nil, &PollError{TaskID: id, Status: last, Reason: err.Error()}
		case err != nil:
			c.log("suno: poll failed: %v", err)
		default:
			last = info.Status
			if onStatus != nil {
				onStatus(info.Status)
			}
			switch {
			case info.Status == StatusSuccess:
				if len(info.Tracks) == 0 {
					return nil, &PollError{TaskID: id, Status: info.Status, Reason: "no tracks in completed response"}
				}
				return &GenerationResult{
					TaskID: id,
					Status: info.Status,
					Tracks: info.Tracks,
				}, nil
			case info.Status.Failed():
				reason := info.ErrorMessage
				if reason == "" {
					reason = fmt.Sprintf("task failed with status %s", info.Status)
				}
				return nil, &PollError{TaskID: id, Status: info.Status, Reason: reason}
			}
		}
		if time.Since(start) >= c.pollTimeout {
			return nil, &TimeoutError{
				TaskID:     id,
				LastStatus: last,
				Elapsed:    time.Since(start),
			}
		}
	}
}

// Generate runs the whole flow: validate, submit and wait for the
// terminal state.
func (c *Client) Generate(ctx context.Context, req *GenerationRequest, onStatus func(TaskStatus)) (*GenerationResult, error) {
	id, err := c.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.Wait(ctx, id, onStatus)
}

// Download fetches a generated asset to a local file. Assets are served
// from public URLs, so no auth header is sent.
func (c *Client) Download(ctx context.Context, u, path string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("suno: couldn't create request: %w", err)
	}
	resp, err := c.download.Do(req)
	if err != nil {
		return fmt.Errorf("suno: couldn't download %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("suno: download %s returned %s: %w", u, resp.Status, errStatusCode(resp.StatusCode))
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("suno: couldn't create file %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("suno: couldn't write file %s: %w", path, err)
	}
	return nil
}

type errStatusCode int

func (e errStatusCode) Error() string {
	return fmt.Sprintf("%d", e)
}

// errServiceReject marks an envelope rejection (code != 200), which is a
// definitive answer from the service rather than a transient failure.
type errServiceReject struct {
	code int
	msg  string
}

func (e *errServiceReject) Error() string {
	msg := e.msg
	if msg == "" {
		msg = "unknown error"
	}
	return fmt.Sprintf("suno: api returned error (%d): %s", e.code, msg)
}

func isServiceReject(err error) bool {
	var reject *errServiceReject
	return errors.As(err, &reject)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	var reqBody io.Reader
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("suno: couldn't marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(body)
	}
	logBody := string(body)
	if len(logBody) > 100 {
		logBody = logBody[:100] + "..."
	}
	c.log("suno: do %s %s %s", method, path, logBody)

	u := fmt.Sprintf("%s/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("suno: couldn't create request: %w", err)
	}
	req.Header.Set("authorization", fmt.Sprintf("Bearer %s", c.key))
	req.Header.Set("content-type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("suno: couldn't %s %s: %w", method, u, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("suno: couldn't read response body: %w", err)
	}
	c.log("suno: response %s %s %d %s", method, path, resp.StatusCode, string(respBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errMessage := string(respBody)
		if len(errMessage) > 100 {
			errMessage = errMessage[:100] + "..."
		}
		return fmt.Errorf("suno: %s %s returned (%s): %w", method, u, errMessage, errStatusCode(resp.StatusCode))
	}
	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("suno: couldn't unmarshal response body: %w", err)
	}
	if env.Code != 200 {
		return &errServiceReject{code: env.Code, msg: env.Msg}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("suno: couldn't unmarshal response data (%T): %w", out, err)
		}
	}
	return nil
}

func (c *Client) log(format string, args ...interface{}) {
	if c.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}
