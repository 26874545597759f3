package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nDmitry/feedsky/internal/activity"
	"github.com/nDmitry/feedsky/internal/app"
	"github.com/nDmitry/feedsky/internal/mirror"
)

// Runner triggers sync runs and reports their status
type Runner interface {
	Run(ctx context.Context) (mirror.Result, error)
	Status() mirror.Status
}

// History lists recently mirrored posts
type History interface {
	Recent(ctx context.Context) ([]activity.Item, error)
}

// FeedInfo describes the mirrored account in the activity feed
type FeedInfo struct {
	Title string
	Link  string
}

// MirrorHandler serves the health probe, run status, on-demand runs and the activity feed
type MirrorHandler struct {
	runner  Runner
	history History
	info    FeedInfo
}

// NewMirrorHandler creates a new MirrorHandler and registers its routes on mux
func NewMirrorHandler(mux *http.ServeMux, runner Runner, history History, info FeedInfo) *MirrorHandler {
	h := &MirrorHandler{runner: runner, history: history, info: info}

	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /status", h.GetStatus)
	mux.HandleFunc("POST /sync", h.TriggerSync)
	mux.HandleFunc("GET /mirror.atom", h.GetActivityFeed)

	return h
}

// Health reports liveness without doing any sync work
func (h *MirrorHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// GetStatus returns the state of the latest run
func (h *MirrorHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.runner.Status())
}

// TriggerSync runs a sync cycle and returns its result
func (h *MirrorHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.Run(r.Context())

	if errors.Is(err, mirror.ErrRunInProgress) {
		h.handleError(w, r, err, http.StatusConflict)
		return
	}

	if err != nil {
		h.writeJSON(w, r, http.StatusBadGateway, map[string]any{
			"error":  err.Error(),
			"result": result,
		})
		return
	}

	h.writeJSON(w, r, http.StatusOK, result)
}

// GetActivityFeed renders recently mirrored posts as Atom
func (h *MirrorHandler) GetActivityFeed(w http.ResponseWriter, r *http.Request) {
	items, err := h.history.Recent(r.Context())

	if err != nil {
		h.handleError(w, r, err, http.StatusInternalServerError)
		return
	}

	content, err := activity.Atom(items, h.info.Title, h.info.Link)

	if err != nil {
		h.handleError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(content); err != nil {
		app.LoggerFromContext(r.Context()).Error("failed to write a response", "error", err)
	}
}

// handleError responds with an error message
func (h *MirrorHandler) handleError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	app.LoggerFromContext(r.Context()).Error("Request error", "error", err, "status", statusCode)

	h.writeJSON(w, r, statusCode, map[string]string{"error": err.Error()})
}

func (h *MirrorHandler) writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		app.LoggerFromContext(r.Context()).Error(
			"failed to encode a response",
			"error", err,
			"response", body,
		)
	}
}
