package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"docchat/internal/middleware"
	"docchat/internal/store"
)

type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]store.SearchResult, error)
}

type Handler struct {
	searcher Searcher
}

func NewHandler(s Searcher) *Handler {
	return &Handler{searcher: s}
}

// Query runs a raw nearest-neighbor search, bypassing the admission
// gate. Results come back ordered by ascending distance.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "q is required", http.StatusBadRequest)
		return
	}

	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", "k must be a positive integer", http.StatusBadRequest)
			return
		}
		k = parsed
	}

	results, err := h.searcher.Search(r.Context(), q, k)
	if err != nil {
		slog.ErrorContext(r.Context(), "search failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "search failed", http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []store.SearchResult{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"data": results}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
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
