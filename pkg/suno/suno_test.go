package suno

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestClient(srv *httptest.Server) *Client {
	return New(&Config{
		Key:          "test-key",
		BaseURL:      srv.URL,
		Client:       srv.Client(),
		PollInterval: time.Millisecond,
		PollTimeout:  time.Second,
	})
}

func submitOK(w http.ResponseWriter) {
	writeEnvelope(w, 200, "success", map[string]string{"taskId": "task-123"})
}

func writeEnvelope(w http.ResponseWriter, code int, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code": code,
		"msg":  msg,
		"data": data,
	})
}

func recordInfo(status TaskStatus, tracks ...map[string]any) map[string]any {
	return map[string]any{
		"taskId": "task-123",
		"status": string(status),
		"response": map[string]any{
			"sunoData": tracks,
		},
	}
}

func track(n int) map[string]any {
	return map[string]any{
		"audioUrl":  fmt.Sprintf("https://cdn.example.com/audio%d.mp3", n),
		"imageUrl":  "https://cdn.example.com/cover.jpeg",
		"title":     "Night Drive",
		"duration":  185.3,
		"tags":      "synthwave, retro",
		"prompt":    "[Verse 1]\nNeon lights",
		"modelName": "chirp-crow",
	}
}

func simpleRequest() *GenerationRequest {
	return &GenerationRequest{
		Model:  ModelV5,
		Prompt: "an upbeat synthwave song about night driving",
	}
}

func TestSubmit(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr bool
	}{
		{
			name: "ok",
			handler: func(w http.ResponseWriter, r *http.Request) {
				submitOK(w)
			},
		},
		{
			name: "envelope rejection",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, 429, "insufficient credits", nil)
			},
			wantErr: true,
		},
		{
			name: "missing task id",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, 200, "success", map[string]string{})
			},
			wantErr: true,
		},
		{
			name: "http error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "internal error", http.StatusInternalServerError)
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			client := newTestClient(srv)

			id, err := client.Submit(context.Background(), simpleRequest())
			if tt.wantErr {
				var serr *SubmissionError
				if !errors.As(err, &serr) {
					t.Fatalf("Submit() err = %v; want *SubmissionError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Submit() err = %v; want nil", err)
			}
			if id != "task-123" {
				t.Fatalf("Submit() = %q; want %q", id, "task-123")
			}
		})
	}
}

func TestSubmitInvalidRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer srv.Close()
	client := newTestClient(srv)

	_, err := client.Submit(context.Background(), &GenerationRequest{Model: ModelV5})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Submit() err = %v; want *ValidationError", err)
	}
}

func TestSubmitPayload(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/generate" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q; want bearer token", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("couldn't decode payload: %v", err)
		}
		submitOK(w)
	}))
	defer srv.Close()
	client := newTestClient(srv)

	req := &GenerationRequest{
		Model:               ModelV5,
		Prompt:              "  a song  ",
		Style:               "ignored in simple mode",
		Title:               "ignored in simple mode",
		VocalGender:         VocalAuto,
		StyleWeight:         DefaultWeight,
		WeirdnessConstraint: 0.8,
	}
	if _, err := client.Submit(context.Background(), req); err != nil {
		t.Fatalf("Submit() err = %v; want nil", err)
	}

	if got := payload["prompt"]; got != "a song" {
		t.Errorf("prompt = %v; want trimmed prompt", got)
	}
	if got := payload["callBackUrl"]; got != callbackURL {
		t.Errorf("callBackUrl = %v; want %q", got, callbackURL)
	}
	for _, omitted := range []string{"style", "title", "vocalGender", "styleWeight", "audioWeight"} {
		if _, ok := payload[omitted]; ok {
			t.Errorf("%s should be omitted, got %v", omitted, payload[omitted])
		}
	}
	if got := payload["weirdnessConstraint"]; got != 0.8 {
		t.Errorf("weirdnessConstraint = %v; want 0.8", got)
	}
}

func TestWait(t *testing.T) {
	sequence := []TaskStatus{StatusPending, StatusTextSuccess, StatusFirstSuccess, StatusSuccess}
	var mu sync.Mutex
	var polls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		i := polls
		if i >= len(sequence) {
			i = len(sequence) - 1
		}
		polls++
		mu.Unlock()
		status := sequence[i]
		if status == StatusSuccess {
			writeEnvelope(w, 200, "success", recordInfo(status, track(1), track(2)))
			return
		}
		writeEnvelope(w, 200, "success", recordInfo(status))
	}))
	defer srv.Close()
	client := newTestClient(srv)

	var seen []TaskStatus
	res, err := client.Wait(context.Background(), "task-123", func(s TaskStatus) {
		seen = append(seen, s)
	})
	if err != nil {
		t.Fatalf("Wait() err = %v; want nil", err)
	}
	if len(res.Tracks) != 2 {
		t.Fatalf("Wait() tracks = %d; want 2", len(res.Tracks))
	}
	if res.Status != StatusSuccess {
		t.Fatalf("Wait() status = %s; want %s", res.Status, StatusSuccess)
	}
	if len(seen) == 0 || seen[len(seen)-1] != StatusSuccess {
		t.Fatalf("onStatus sequence = %v; want last %s", seen, StatusSuccess)
	}
	for i, s := range sequence {
		if seen[i] != s {
			t.Fatalf("onStatus sequence = %v; want prefix %v", seen, sequence)
		}
	}
}

func TestWaitTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 200, "success", recordInfo(StatusFirstSuccess))
	}))
	defer srv.Close()
	client := New(&Config{
		Key:          "test-key",
		BaseURL:      srv.URL,
		Client:       srv.Client(),
		PollInterval: time.Millisecond,
		PollTimeout:  50 * time.Millisecond,
	})

	_, err := client.Wait(context.Background(), "task-123", nil)
	var terr *TimeoutError
	if !errors.As(err, &terr) {
		t.Fatalf("Wait() err = %v; want *TimeoutError", err)
	}
	if terr.TaskID != "task-123" {
		t.Fatalf("TimeoutError task id = %q; want %q", terr.TaskID, "task-123")
	}
	if terr.LastStatus != StatusFirstSuccess {
		t.Fatalf("TimeoutError last status = %s; want %s", terr.LastStatus, StatusFirstSuccess)
	}
}

func TestWaitFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := recordInfo(StatusSensitiveWordError)
		info["errorMessage"] = "prompt contains restricted content"
		writeEnvelope(w, 200, "success", info)
	}))
	defer srv.Close()
	client := newTestClient(srv)

	_, err := client.Wait(context.Background(), "task-123", nil)
	var perr *PollError
	if !errors.As(err, &perr) {
		t.Fatalf("Wait() err = %v; want *PollError", err)
	}
	if perr.Status != StatusSensitiveWordError {
		t.Fatalf("PollError status = %s; want %s", perr.Status, StatusSensitiveWordError)
	}
	if perr.Reason != "prompt contains restricted content" {
		t.Fatalf("PollError reason = %q; want service message", perr.Reason)
	}
}

func TestWaitServiceReject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 531, "record not found", nil)
	}))
	defer srv.Close()
	client := newTestClient(srv)

	_, err := client.Wait(context.Background(), "task-123", nil)
	var perr *PollError
	if !errors.As(err, &perr) {
		t.Fatalf("Wait() err = %v; want *PollError", err)
	}
}

func TestWaitTransientError(t *testing.T) {
	var mu sync.Mutex
	var polls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		polls++
		first := polls == 1
		mu.Unlock()
		if first {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		writeEnvelope(w, 200, "success", recordInfo(StatusSuccess, track(1), track(2)))
	}))
	defer srv.Close()
	client := newTestClient(srv)

	res, err := client.Wait(context.Background(), "task-123", nil)
	if err != nil {
		t.Fatalf("Wait() err = %v; want nil", err)
	}
	if len(res.Tracks) != 2 {
		t.Fatalf("Wait() tracks = %d; want 2", len(res.Tracks))
	}
}

func TestWaitSuccessWithoutTracks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 200, "success", recordInfo(StatusSuccess))
	}))
	defer srv.Close()
	client := newTestClient(srv)

	_, err := client.Wait(context.Background(), "task-123", nil)
	var perr *PollError
	if !errors.As(err, &perr) {
		t.Fatalf("Wait() err = %v; want *PollError", err)
	}
}

func TestWaitContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 200, "success", recordInfo(StatusPending))
	}))
	defer srv.Close()
	client := newTestClient(srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Wait(ctx, "task-123", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait() err = %v; want context.Canceled", err)
	}
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/generate":
			submitOK(w)
		case "/generate/record-info":
			if got := r.URL.Query().Get("taskId"); got != "task-123" {
				t.Errorf("taskId = %q; want %q", got, "task-123")
			}
			writeEnvelope(w, 200, "success", recordInfo(StatusSuccess, track(1), track(2)))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()
	client := newTestClient(srv)

	res, err := client.Generate(context.Background(), simpleRequest(), nil)
	if err != nil {
		t.Fatalf("Generate() err = %v; want nil", err)
	}
	if res.TaskID != "task-123" {
		t.Fatalf("Generate() task id = %q; want %q", res.TaskID, "task-123")
	}
	if len(res.Tracks) != 2 {
		t.Fatalf("Generate() tracks = %d; want 2", len(res.Tracks))
	}
}

func TestNewClientTimeouts(t *testing.T) {
	c := New(&Config{Key: "test-key"})
	if c.client.Timeout != 30*time.Second {
		t.Fatalf("api client timeout = %s; want 30s", c.client.Timeout)
	}
	// Downloads move whole audio files and must outlive the API timeout.
	if c.download.Timeout != 2*time.Minute {
		t.Fatalf("download client timeout = %s; want 2m", c.download.Timeout)
	}

	injected := &http.Client{Timeout: time.Second}
	c = New(&Config{Key: "test-key", Client: injected})
	if c.client != injected || c.download != injected {
		t.Fatal("injected client should be used for both api calls and downloads")
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/audio.mp3":
			_, _ = w.Write([]byte("audio-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	client := newTestClient(srv)

	dir := t.TempDir()
	path := filepath.Join(dir, "audio.mp3")
	if err := client.Download(context.Background(), srv.URL+"/audio.mp3", path); err != nil {
		t.Fatalf("Download() err = %v; want nil", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("couldn't read downloaded file: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Fatalf("downloaded content = %q; want %q", data, "audio-bytes")
	}

	if err := client.Download(context.Background(), srv.URL+"/missing.mp3", filepath.Join(dir, "missing.mp3")); err == nil {
		t.Fatal("Download() err = nil; want error on 404")
	}
}
