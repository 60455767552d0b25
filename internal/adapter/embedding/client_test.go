package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embedServer(t *testing.T, dim int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/embeddings", r.URL.Path)

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		resp := struct {
			Data []item `json:"data"`
		}{}
		for i := range req.Input {
			vec := make([]float32, dim)
			vec[0] = 1
			resp.Data = append(resp.Data, item{Index: i, Embedding: vec})
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestClient_Embed(t *testing.T) {
	t.Run("Batch Order Preserving", func(t *testing.T) {
		var calls atomic.Int32
		srv := embedServer(t, 384, &calls)
		defer srv.Close()

		c := NewClient(Config{BaseURL: srv.URL, Model: "all-MiniLM-L6-v2", Dim: 384})
		vecs, err := c.Embed(context.Background(), []string{"one", "two", "three"})
		require.NoError(t, err)
		assert.Len(t, vecs, 3)
		for _, v := range vecs {
			assert.Len(t, v, 384)
		}
		// One probe call plus one batch call.
		assert.EqualValues(t, 2, calls.Load())
	})

	t.Run("Probe Happens Once", func(t *testing.T) {
		var calls atomic.Int32
		srv := embedServer(t, 384, &calls)
		defer srv.Close()

		c := NewClient(Config{BaseURL: srv.URL, Dim: 384})
		_, err := c.Embed(context.Background(), []string{"a"})
		require.NoError(t, err)
		_, err = c.Embed(context.Background(), []string{"b"})
		require.NoError(t, err)
		assert.EqualValues(t, 3, calls.Load())
	})

	t.Run("Dimension Mismatch", func(t *testing.T) {
		var calls atomic.Int32
		srv := embedServer(t, 128, &calls)
		defer srv.Close()

		c := NewClient(Config{BaseURL: srv.URL, Dim: 384})
		_, err := c.Embed(context.Background(), []string{"a"})
		assert.ErrorIs(t, err, ErrDimensionMismatch)

		// A failed probe is not latched, so the next call probes again.
		_, err = c.Embed(context.Background(), []string{"a"})
		assert.ErrorIs(t, err, ErrDimensionMismatch)
		assert.EqualValues(t, 2, calls.Load())
	})

	t.Run("Probe Retries After Transient Failure", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				http.Error(w, "loading model", http.StatusServiceUnavailable)
				return
			}

			var req struct {
				Input []string `json:"input"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

			type item struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}
			resp := struct {
				Data []item `json:"data"`
			}{}
			for i := range req.Input {
				vec := make([]float32, 384)
				vec[0] = 1
				resp.Data = append(resp.Data, item{Index: i, Embedding: vec})
			}
			json.NewEncoder(w).Encode(resp)
		}))
		defer srv.Close()

		c := NewClient(Config{BaseURL: srv.URL, Dim: 384})
		_, err := c.Embed(context.Background(), []string{"a"})
		require.Error(t, err)

		vecs, err := c.Embed(context.Background(), []string{"a"})
		require.NoError(t, err)
		assert.Len(t, vecs, 1)
	})

	t.Run("Server Error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c := NewClient(Config{BaseURL: srv.URL, Dim: 384})
		_, err := c.Embed(context.Background(), []string{"a"})
		assert.Error(t, err)
	})

	t.Run("Empty Batch NoOp", func(t *testing.T) {
		c := NewClient(Config{BaseURL: "http://unused", Dim: 384})
		vecs, err := c.Embed(context.Background(), nil)
		assert.NoError(t, err)
		assert.Nil(t, vecs)
	})
}
