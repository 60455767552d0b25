package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"

	"docchat/internal/ingest"
	"docchat/internal/middleware"
)

type Runner interface {
	Run(ctx context.Context, dir string) (*ingest.Report, error)
}

type Clearer interface {
	ClearAll(ctx context.Context) error
}

type Handler struct {
	runner        Runner
	clearer       Clearer
	defaultFolder string
}

func NewHandler(r Runner, c Clearer, defaultFolder string) *Handler {
	return &Handler{runner: r, clearer: c, defaultFolder: defaultFolder}
}

// Run triggers an on-demand ingestion of the configured data folder,
// or of an explicit path from the request body. Already-ingested
// filenames are skipped, so repeated calls do not duplicate chunks.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	dir := req.Path
	if dir == "" {
		dir = h.defaultFolder
	}
	if dir == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "no ingestion path configured", http.StatusBadRequest)
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "ingestion path is not a directory", http.StatusBadRequest)
		return
	}

	report, err := h.runner.Run(r.Context(), dir)
	if err != nil {
		slog.ErrorContext(r.Context(), "ingestion run failed", "error", err, "dir", dir)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "ingestion failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"data": report}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Clear removes every chunk of every document, irreversibly.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.clearer.ClearAll(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "clear all failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "clear failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
