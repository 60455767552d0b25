// Package ingest walks a folder and loads supported files into the
// vector store: extract, chunk, embed, upsert. Ingestion assumes a
// single writer: at most one ingestion process should run against a
// given store at a time, since the filename idempotence check and the
// insert are not coordinated across processes.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"docchat/internal/extract"
	"docchat/internal/text"
)

type Extractor interface {
	Extract(ctx context.Context, data []byte, kind extract.Kind) (string, error)
}

type VectorStore interface {
	HasFilename(ctx context.Context, name string) (bool, error)
	Upsert(ctx context.Context, docID string, chunks []string, meta map[string]any) error
}

// Report summarizes one ingestion run.
type Report struct {
	Ingested int `json:"ingested"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

type Controller struct {
	extractor Extractor
	store     VectorStore
	maxChars  int
	overlap   int
}

func NewController(e Extractor, s VectorStore, maxChars, overlap int) *Controller {
	if maxChars <= 0 {
		maxChars = text.DefaultMaxChars
	}
	if overlap < 0 {
		overlap = text.DefaultOverlap
	}
	return &Controller{extractor: e, store: s, maxChars: maxChars, overlap: overlap}
}

// Run walks dir recursively and ingests every .pdf/.txt file whose
// filename has not been ingested before. A file that fails to extract
// or upsert is logged and skipped; the walk continues. The error
// return covers only the walk itself (e.g. an unreadable root).
func (c *Controller) Run(ctx context.Context, dir string) (*Report, error) {
	report := &Report{}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		kind, ok := extract.KindForPath(path)
		if !ok {
			return nil
		}

		name := filepath.Base(path)

		exists, err := c.store.HasFilename(ctx, name)
		if err != nil {
			// The store is shared state for the whole run; if the
			// probe fails the walk cannot make idempotence decisions.
			return fmt.Errorf("idempotence check for %s: %w", name, err)
		}
		if exists {
			slog.InfoContext(ctx, "skipping already ingested file", "filename", name)
			report.Skipped++
			return nil
		}

		if err := c.ingestFile(ctx, path, name, kind); err != nil {
			slog.ErrorContext(ctx, "failed to ingest file", "filename", name, "error", err)
			report.Failed++
			return nil
		}

		report.Ingested++
		return nil
	})
	if err != nil {
		return report, err
	}
	return report, nil
}

func (c *Controller) ingestFile(ctx context.Context, path, name string, kind extract.Kind) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from walking the configured data folder
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	extracted, err := c.extractor.Extract(ctx, data, kind)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	chunks := text.Chunk(extracted, c.maxChars, c.overlap)
	if len(chunks) == 0 {
		slog.InfoContext(ctx, "no content to ingest", "filename", name)
		return nil
	}

	docID := uuid.New().String()
	if err := c.store.Upsert(ctx, docID, chunks, map[string]any{"filename": name}); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}

	slog.InfoContext(ctx, "ingested new file", "filename", name, "doc_id", docID, "chunks", len(chunks))
	return nil
}
