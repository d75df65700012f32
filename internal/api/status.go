package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bulkrun/bulkrun/internal/batch"
)

// ProgressReporter reports pipeline progress derived from durable
// state. Implemented by batch.Coordinator.
type ProgressReporter interface {
	Progress(ctx context.Context) (batch.Progress, error)
}

// StatusHandler serves progress snapshots for a running pipeline.
type StatusHandler struct {
	reporter ProgressReporter
	logger   *slog.Logger
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(reporter ProgressReporter, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{reporter: reporter, logger: logger}
}

// Router builds the status server's routes.
func (h *StatusHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", h.Health)
	r.Get("/status", h.Status)
	return r
}

// Health reports process liveness.
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Status returns the current pipeline progress as JSON.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	progress, err := h.reporter.Progress(r.Context())
	if err != nil {
		h.logger.Error("failed to compute progress", "error", err)
		http.Error(w, `{"error":"failed to compute progress"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(progress); err != nil {
		h.logger.Error("failed to encode progress", "error", err)
	}
}

// Serve runs the status server until ctx is cancelled. Listen errors
// other than a clean shutdown are logged, not fatal: the status surface
// is an aid, never a reason to stop a batch.
func (h *StatusHandler) Serve(ctx context.Context, addr string) {
	srv := &http.Server{Addr: addr, Handler: h.Router()}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	h.logger.Info("status server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		h.logger.Error("status server failed", "error", err)
	}
}
