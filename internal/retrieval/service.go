// Package retrieval answers questions from ingested chunks, gating
// generation on retrieval quality: if nothing relevant enough was
// retrieved, the service refuses rather than letting the model guess.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docchat/internal/store"
)

// Refusal is returned verbatim whenever the gate rejects a question.
// It is a first-class response, not an error.
const Refusal = "Sorry, I am restricted to the ingested files and cannot answer that. " +
	"Please ask something that can be answered from these documents."

const systemPrompt = "You are a helpful assistant restricted to the provided context, " +
	"which comes from a set of ingested files (OCR-enabled). " +
	"Use the context as your only source. " +
	"If the answer is partially supported, explain what is present and what is missing. " +
	"Do not invent facts."

type VectorStore interface {
	Search(ctx context.Context, query string, k int) ([]store.SearchResult, error)
}

type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

type Service struct {
	store     VectorStore
	generator Generator
	logger    *QueryLogger
	topK      int
	threshold float64
}

func NewService(vs VectorStore, g Generator, l *QueryLogger, topK int, threshold float64) *Service {
	if topK <= 0 {
		topK = 5
	}
	return &Service{store: vs, generator: g, logger: l, topK: topK, threshold: threshold}
}

// Search is a raw passthrough to the store, without the gate.
func (s *Service) Search(ctx context.Context, query string, k int) ([]store.SearchResult, error) {
	if k <= 0 {
		k = s.topK
	}
	return s.store.Search(ctx, query, k)
}

// Answer retrieves the top-k chunks for the question and applies the
// admission gate: no results, or a best-match distance strictly above
// the threshold, yields the refusal. Otherwise ALL k retrieved chunks
// become the generation context; the gate inspects only the single
// best distance, it is not a per-chunk filter.
//
// A generation failure is returned as the answer text, so the caller
// shows the failure instead of crashing the turn. The error return
// covers retrieval only.
func (s *Service) Answer(ctx context.Context, question string) (string, error) {
	start := time.Now()

	results, err := s.store.Search(ctx, question, s.topK)
	if err != nil {
		return "", fmt.Errorf("search: %w", err)
	}

	if len(results) == 0 {
		s.log(question, true, 0, start)
		return Refusal, nil
	}

	best := results[0].Distance
	if best > s.threshold {
		slog.InfoContext(ctx, "refusing: best match above threshold", "best_distance", best, "threshold", s.threshold)
		s.log(question, true, best, start)
		return Refusal, nil
	}

	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = r.Content
	}
	contextText := strings.Join(blocks, "\n\n")

	user := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextText, question)

	answer, err := s.generator.Generate(ctx, systemPrompt, user)
	if err != nil {
		slog.ErrorContext(ctx, "generation failed", "error", err)
		s.log(question, false, best, start)
		return fmt.Sprintf("Generation error: %v", err), nil
	}

	s.log(question, false, best, start)
	return answer, nil
}

func (s *Service) log(question string, refused bool, best float64, start time.Time) {
	if s.logger == nil {
		return
	}
	s.logger.Log(QueryLogEntry{
		Question:     question,
		Refused:      refused,
		BestDistance: best,
		Duration:     time.Since(start),
	})
}
