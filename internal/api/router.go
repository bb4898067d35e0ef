package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"castplayd/internal/cast"
	"castplayd/internal/config"
	"castplayd/internal/logger"
	"castplayd/internal/player"
	"castplayd/internal/render"
	"castplayd/internal/session"
	"castplayd/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxScreenSize bounds the headless terminal built for a header's width and height.
const maxScreenSize = 1000

type API struct {
	sessionMgr *session.SessionManager
	cfg        config.ServerConfig
	logger     logger.Logger
}

// New builds the HTTP handler. limiter may be nil to disable rate limiting.
func New(sessionMgr *session.SessionManager, cfg config.ServerConfig, limiter *RateLimiter, log logger.Logger) http.Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = config.Default().Server.MaxUploadBytes
	}
	if cfg.ScreenCols <= 0 || cfg.ScreenRows <= 0 {
		cfg.ScreenCols, cfg.ScreenRows = 80, 24
	}
	api := &API{
		sessionMgr: sessionMgr,
		cfg:        cfg,
		logger:     logger.OrNop(log),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logRequests(api.logger))
	if limiter != nil {
		r.Use(limiter.Limit)
	}

	r.Route("/recordings", func(r chi.Router) {
		r.Get("/", api.handleList)
		r.Post("/", api.handleUpload)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", api.handleContent)
			r.Put("/", api.handleUpload)
			r.Delete("/", api.handleDelete)
			r.Get("/info", api.handleInfo)
			r.Get("/chapters.vtt", api.handleChapters)
			r.Get("/screen", api.handleScreen)
			r.Get("/play", api.handlePlay)
		})
	})

	return r
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Debugf("Failed to write response: %v", err)
	}
}

// storeError maps store failures to HTTP statuses.
func (a *API) storeError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, fmt.Sprintf("Recording %s not found", id), http.StatusNotFound)
	case errors.Is(err, store.ErrInvalidID):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrReadOnly):
		http.Error(w, "Recording store is read-only", http.StatusMethodNotAllowed)
	default:
		a.logger.Errorf("Store failure for recording %s: %v", id, err)
		http.Error(w, "Store failure", http.StatusInternalServerError)
	}
}

// recordingID reads and validates the {id} path parameter.
func (a *API) recordingID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !store.ValidID(id) {
		http.Error(w, fmt.Sprintf("Invalid recording id %q", id), http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func (a *API) load(w http.ResponseWriter, r *http.Request) (string, *cast.Recording, bool) {
	id, ok := a.recordingID(w, r)
	if !ok {
		return "", nil, false
	}
	rec, err := a.sessionMgr.Load(r.Context(), id)
	if err != nil {
		a.storeError(w, id, err)
		return "", nil, false
	}
	return id, rec, true
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	ids, err := a.sessionMgr.Store().List(r.Context())
	if err != nil {
		a.storeError(w, "", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"recordings": ids})
}

// handleUpload stores a recording. POST assigns an id unless ?id= is given; PUT uses the path id.
// Content that does not parse is rejected.
func (a *API) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		id = r.URL.Query().Get("id")
	}
	if id == "" {
		id = store.NewID()
	}
	if !store.ValidID(id) {
		http.Error(w, fmt.Sprintf("Invalid recording id %q", id), http.StatusBadRequest)
		return
	}

	body := http.MaxBytesReader(w, r.Body, a.cfg.MaxUploadBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Recording too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	rec := cast.Parse(string(data), cast.ParseOptions{})
	if rec.Err != nil {
		http.Error(w, fmt.Sprintf("Invalid recording: %v", rec.Err), http.StatusBadRequest)
		return
	}

	if err := a.sessionMgr.Save(r.Context(), id, data); err != nil {
		a.storeError(w, id, err)
		return
	}

	a.logger.Infof("Stored recording %s (%d frames)", id, rec.Len())
	a.writeJSON(w, http.StatusCreated, map[string]any{"id": id, "events": rec.Len()})
}

func (a *API) handleContent(w http.ResponseWriter, r *http.Request) {
	id, ok := a.recordingID(w, r)
	if !ok {
		return
	}
	data, err := a.sessionMgr.Store().Get(r.Context(), id)
	if err != nil {
		a.storeError(w, id, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-asciicast")
	w.Write(data)
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := a.recordingID(w, r)
	if !ok {
		return
	}
	if err := a.sessionMgr.Delete(r.Context(), id); err != nil {
		a.storeError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	id, rec, ok := a.load(w, r)
	if !ok {
		return
	}
	a.writeJSON(w, http.StatusOK, struct {
		ID string `json:"id"`
		cast.Summary
	}{id, cast.Summarize(rec)})
}

func (a *API) handleChapters(w http.ResponseWriter, r *http.Request) {
	_, rec, ok := a.load(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/vtt; charset=utf-8")
	io.WriteString(w, cast.Chapters(rec))
}

// handleScreen replays the recording into a headless terminal up to ?position= (a fraction of
// the duration) and returns the screen. ?format=ansi returns escape sequences instead of text.
func (a *API) handleScreen(w http.ResponseWriter, r *http.Request) {
	_, rec, ok := a.load(w, r)
	if !ok {
		return
	}
	if !rec.Playable() {
		http.Error(w, fmt.Sprintf("Recording is not playable: %v", rec.Err), http.StatusUnprocessableEntity)
		return
	}

	position := 1.0
	if raw := r.URL.Query().Get("position"); raw != "" {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid position %q", raw), http.StatusBadRequest)
			return
		}
		position = p
	}

	cols, rows := rec.Header.Width, rec.Header.Height
	if cols <= 0 || rows <= 0 || cols > maxScreenSize || rows > maxScreenSize {
		cols, rows = a.cfg.ScreenCols, a.cfg.ScreenRows
	}
	screen := render.NewVT(cols, rows)
	p := player.New(rec, screen, a.logger, player.Options{})
	defer p.Cleanup()
	if err := p.Init(nil); err != nil {
		http.Error(w, "Failed to start terminal", http.StatusInternalServerError)
		return
	}
	p.JumpToPosition(position)

	evt := p.EventAtCursor()
	w.Header().Set("X-Event-Index", strconv.Itoa(evt.EventIndex))
	w.Header().Set("X-Elapsed-Seconds", strconv.FormatFloat(evt.TotalDelay.Seconds(), 'f', -1, 64))

	if r.URL.Query().Get("format") == "ansi" {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(screen.Snapshot())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, screen.Text()+"\n")
}
