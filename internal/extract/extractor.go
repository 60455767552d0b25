package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Kind identifies a supported file kind. The set is closed: new kinds
// are added here and in KindForPath, not by subclassing.
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindText Kind = "text"
)

var ErrUnsupportedKind = errors.New("unsupported file kind")

// KindForPath maps a file path to its Kind by extension, case
// insensitively. The second return is false for everything outside
// the supported set.
func KindForPath(path string) (Kind, bool) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return KindPDF, true
	case strings.HasSuffix(lower, ".txt"):
		return KindText, true
	default:
		return "", false
	}
}

// Page is one page of a structurally parsed PDF: its directly
// extracted text plus any tables as row-major grids of cell strings.
type Page struct {
	Text   string
	Tables [][][]string
}

// PageParser is the structural PDF parsing engine.
type PageParser interface {
	Parse(ctx context.Context, pdf []byte) ([]Page, error)
}

// Rasterizer renders a single page (1-based) of a PDF as a PNG image.
type Rasterizer interface {
	RenderPage(ctx context.Context, pdf []byte, page int) ([]byte, error)
}

// OCR is the raster OCR engine.
type OCR interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Extractor turns raw file bytes into plain text. Pages whose direct
// text extraction yields fewer than MinTextChars characters are
// treated as image-like and OCR'd instead.
type Extractor struct {
	parser       PageParser
	rasterizer   Rasterizer
	ocr          OCR
	minTextChars int
}

func New(parser PageParser, rasterizer Rasterizer, ocr OCR, minTextChars int) *Extractor {
	return &Extractor{
		parser:       parser,
		rasterizer:   rasterizer,
		ocr:          ocr,
		minTextChars: minTextChars,
	}
}

func (e *Extractor) Extract(ctx context.Context, data []byte, kind Kind) (string, error) {
	switch kind {
	case KindText:
		return extractPlainText(data), nil
	case KindPDF:
		return e.extractPDF(ctx, data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
}

// extractPlainText decodes bytes as UTF-8, dropping undecodable
// sequences rather than failing.
func extractPlainText(data []byte) string {
	return strings.ToValidUTF8(string(data), "")
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte) (string, error) {
	pages, err := e.parser.Parse(ctx, data)
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	var parts []string
	for i, page := range pages {
		pageText := page.Text
		if len(strings.TrimSpace(pageText)) < e.minTextChars {
			// Image-like page: OCR output replaces the direct text.
			ocrText, err := e.ocrPage(ctx, data, i+1)
			if err != nil {
				return "", fmt.Errorf("ocr page %d: %w", i+1, err)
			}
			slog.DebugContext(ctx, "ocr fallback used", "page", i+1, "direct_chars", len(strings.TrimSpace(page.Text)))
			pageText = ocrText
		}
		parts = append(parts, pageText)

		for _, table := range page.Tables {
			if rows := renderTable(table); rows != "" {
				parts = append(parts, rows)
			}
		}
	}

	return strings.Join(parts, "\n\n"), nil
}

func (e *Extractor) ocrPage(ctx context.Context, pdf []byte, page int) (string, error) {
	img, err := e.rasterizer.RenderPage(ctx, pdf, page)
	if err != nil {
		return "", err
	}
	return e.ocr.Recognize(ctx, img)
}

// renderTable renders each row as its cells joined with " | ". Empty
// cells are preserved as empty strings; rows whose cells are all empty
// are dropped.
func renderTable(table [][]string) string {
	var rows []string
	for _, row := range table {
		any := false
		for _, cell := range row {
			if cell != "" {
				any = true
				break
			}
		}
		if !any {
			continue
		}
		rows = append(rows, strings.Join(row, " | "))
	}
	return strings.Join(rows, "\n")
}
