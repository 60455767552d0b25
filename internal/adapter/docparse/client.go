// Package docparse is a thin client for the structural PDF parsing
// sidecar. The sidecar exposes two endpoints: POST /parse returning
// per-page text and tables, and POST /render returning a single page
// rasterized as PNG (used for the OCR fallback path).
package docparse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"docchat/internal/extract"
)

type Client struct {
	baseURL string
	client  *http.Client
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		// OCR-bound documents parse slowly; be generous.
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type pageDTO struct {
	Text   string       `json:"text"`
	Tables [][][]string `json:"tables"`
}

type parseResponse struct {
	Pages []pageDTO `json:"pages"`
}

func (c *Client) Parse(ctx context.Context, pdf []byte) ([]extract.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/parse", bytes.NewReader(pdf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docparse request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("docparse parse failed: %s", resp.Status)
	}

	var out parseResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("docparse response decode: %w", err)
	}

	pages := make([]extract.Page, len(out.Pages))
	for i, p := range out.Pages {
		pages[i] = extract.Page{Text: p.Text, Tables: p.Tables}
	}
	return pages, nil
}

// RenderPage rasterizes one page (1-based) as PNG.
func (c *Client) RenderPage(ctx context.Context, pdf []byte, page int) ([]byte, error) {
	url := fmt.Sprintf("%s/render?page=%d", c.baseURL, page)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(pdf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docparse request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("docparse render failed: %s", resp.Status)
	}

	return io.ReadAll(resp.Body)
}
