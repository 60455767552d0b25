// Package embedding is a client for an OpenAI-compatible sentence
// embedding server (an all-MiniLM-L6-v2 class model). The server is a
// process-wide shared resource: one Client is constructed at bootstrap
// and reused for every ingestion batch and query, with a lazy
// dimension probe on first use and no teardown.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

type Client struct {
	baseURL string
	model   string
	dim     int
	client  *http.Client

	mu     sync.Mutex
	probed bool
}

type Config struct {
	BaseURL string
	Model   string
	// Dim is the expected vector dimensionality (384 for MiniLM).
	Dim     int
	Timeout time.Duration
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		dim:     cfg.Dim,
		client:  &http.Client{Timeout: timeout},
	}
}

// Dimension returns the configured vector dimensionality.
func (c *Client) Dimension() int { return c.dim }

// Embed maps a batch of texts to one unit-normalized vector each,
// order preserving. The first call probes the server to verify the
// model produces the configured dimensionality. Only a passing probe
// is latched: a probe that fails, because the server is still warming
// up or the caller's context expired, is retried on the next call.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := c.ensureProbed(ctx); err != nil {
		return nil, err
	}

	vecs, err := c.request(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding server returned %d vectors for %d texts", len(vecs), len(texts))
	}
	for i, v := range vecs {
		if len(v) != c.dim {
			return nil, fmt.Errorf("%w: vector %d has %d dims, expected %d", ErrDimensionMismatch, i, len(v), c.dim)
		}
	}
	return vecs, nil
}

func (c *Client) ensureProbed(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.probed {
		return nil
	}

	vecs, err := c.request(ctx, []string{"warmup"})
	if err != nil {
		return err
	}
	if len(vecs) != 1 || len(vecs[0]) != c.dim {
		return fmt.Errorf("%w: model produced %d, expected %d", ErrDimensionMismatch, len(vecs[0]), c.dim)
	}

	c.probed = true
	return nil
}

func (c *Client) request(ctx context.Context, texts []string) ([][]float32, error) {
	body := map[string]any{
		"input": texts,
		"model": c.model,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding server error: %s: %s", resp.Status, bytes.TrimSpace(payload))
	}

	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("embedding response decode: %w", err)
	}

	vecs := make([][]float32, len(out.Data))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("embedding server returned out-of-range index %d", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}
