package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/igolaizola/sunogen/pkg/node"
	"github.com/igolaizola/sunogen/pkg/storage"
	"github.com/igolaizola/sunogen/pkg/suno"
	"github.com/oklog/ulid/v2"
)

type Config struct {
	Debug   bool
	DBType  string
	DBConn  string
	Proxy   string
	BaseURL string

	Account     string
	Addr        string
	Credentials map[string]string
}

// Serve starts the generation API service: it submits requests and
// reports task status, leaving the blocking poll to the clients.
func Serve(ctx context.Context, cfg *Config) error {
	log.Println("web: server started")
	defer log.Println("web: server ended")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("web: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("web: couldn't start orm store: %w", err)
	}
	secrets := store.NewSecretStore("suno", cfg.Account)

	h := &handler{
		store:   store,
		secrets: secrets,
		debug:   cfg.Debug,
		proxy:   cfg.Proxy,
		baseURL: cfg.BaseURL,
	}

	// Create router
	mux := chi.NewRouter()

	// Add middleware
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.Timeout(60 * time.Second))

	// Add BasicAuth middleware
	if len(cfg.Credentials) > 0 {
		mux.Use(middleware.BasicAuth("private", cfg.Credentials))
	}

	mux.Group(func(r chi.Router) {
		if cfg.Debug {
			r.Use(middleware.Logger)
		}
		r.Post("/api/generations", h.create)
		r.Get("/api/generations/{id}", h.get)
	})

	// Create server
	split := strings.Split(cfg.Addr, ":")
	if len(split) != 2 {
		return fmt.Errorf("web: invalid address: %s", cfg.Addr)
	}
	host := split[0]
	port, err := strconv.Atoi(split[1])
	if err != nil {
		return fmt.Errorf("web: invalid port: %s", split[1])
	}
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: mux,
	}
	go func() {
		note := fmt.Sprintf("http://%s:%d", host, port)
		if host == "" {
			note = fmt.Sprintf("all interfaces http://localhost:%d", port)
		}
		log.Printf("web: starting server on %s", note)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("web: failed to start server: %v\n", err)
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web: couldn't shutdown server: %w", err)
	}
	return nil
}

type handler struct {
	store   *storage.Store
	secrets node.Secrets
	debug   bool
	proxy   string
	baseURL string
}

func (h *handler) client(ctx context.Context) (*suno.Client, error) {
	key, err := h.secrets.Secret(ctx)
	if err != nil || key == "" {
		return nil, &suno.ConfigurationError{Name: node.APIKeyName}
	}
	return suno.New(&suno.Config{
		Key:     key,
		BaseURL: h.baseURL,
		Debug:   h.debug,
		Proxy:   h.proxy,
	}), nil
}

type createResponse struct {
	ID     string `json:"id"`
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	var params node.Params
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		httpError(w, http.StatusBadRequest, fmt.Errorf("web: couldn't decode request: %w", err))
		return
	}
	if params.Model == "" {
		params.Model = suno.DefaultModel
	}
	client, err := h.client(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	taskID, err := client.Submit(r.Context(), &suno.GenerationRequest{
		CustomMode:          params.CustomMode,
		Model:               params.Model,
		Prompt:              params.Prompt,
		Style:               params.Style,
		Title:               params.Title,
		Instrumental:        params.Instrumental,
		VocalGender:         params.VocalGender,
		NegativeTags:        params.NegativeTags,
		StyleWeight:         params.StyleWeight,
		WeirdnessConstraint: params.WeirdnessConstraint,
		AudioWeight:         params.AudioWeight,
	})
	if err != nil {
		var verr *suno.ValidationError
		if errors.As(err, &verr) {
			httpError(w, http.StatusBadRequest, err)
			return
		}
		httpError(w, http.StatusBadGateway, err)
		return
	}
	gen := &storage.Generation{
		ID:           ulid.Make().String(),
		TaskID:       taskID,
		Status:       string(suno.StatusPending),
		CustomMode:   params.CustomMode,
		Model:        string(params.Model),
		Prompt:       params.Prompt,
		Style:        params.Style,
		Title:        params.Title,
		Instrumental: params.Instrumental,
	}
	if err := h.store.SetGeneration(r.Context(), gen); err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, createResponse{
		ID:     gen.ID,
		TaskID: taskID,
		Status: gen.Status,
	})
}

type getResponse struct {
	ID     string       `json:"id"`
	TaskID string       `json:"task_id"`
	Status string       `json:"status"`
	Error  string       `json:"error,omitempty"`
	Tracks []suno.Track `json:"tracks,omitempty"`
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	gen, err := h.store.GetGeneration(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, fmt.Errorf("web: generation %s not found", id))
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	resp := getResponse{
		ID:     gen.ID,
		TaskID: gen.TaskID,
		Status: gen.Status,
	}
	// Refresh from the service while the task is still in flight.
	if !finished(gen.Status) {
		client, err := h.client(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, err)
			return
		}
		info, err := client.Task(r.Context(), gen.TaskID)
		if err != nil {
			httpError(w, http.StatusBadGateway, err)
			return
		}
		resp.Status = string(info.Status)
		resp.Error = info.ErrorMessage
		resp.Tracks = info.Tracks
		gen.Status = string(info.Status)
		if err := h.store.SetGeneration(r.Context(), gen); err != nil {
			httpError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// finished reports whether a stored generation needs no further polling.
// Rows written by the workflow use "complete" and "error"; rows created by
// this service hold the raw task status. "timeout" stays refreshable since
// the task may have finished after the workflow gave up on it.
func finished(status string) bool {
	switch status {
	case "complete", "error":
		return true
	}
	return suno.TaskStatus(status).Terminal()
}

func httpError(w http.ResponseWriter, status int, err error) {
	log.Println(err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
