package embedding

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/recall/internal/observability"
	recallerrors "github.com/blueberrycongee/recall/pkg/errors"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.LoggerConfig{Output: io.Discard})
}

// stubEmbedder returns a canned vector or error and records call counts.
type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vec, nil
}

func (s *stubEmbedder) Dimensions() int { return len(s.vec) }

func newOllamaServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/embeddings", r.URL.Path)

		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Model)

		vec := make([]float32, dim)
		for i := range vec {
			vec[i] = float32(len(req.Prompt)%7) / 10
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: vec})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaEmbedderCalibratesDimensions(t *testing.T) {
	srv := newOllamaServer(t, 8)

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		BaseURL: srv.URL,
		Model:   "nomic-embed-text",
	})
	require.NoError(t, err)
	assert.Equal(t, 8, e.Dimensions())

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 8)
}

func TestOllamaEmbedderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		BaseURL: srv.URL,
		Model:   "missing",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calibrate")
}

func TestOllamaEmbedderRequiresModel(t *testing.T) {
	_, err := NewOllamaEmbedder(context.Background(), OllamaConfig{})
	require.Error(t, err)
}

func TestOllamaEmbedderWrapsFailuresRecoverable(t *testing.T) {
	srv := newOllamaServer(t, 4)

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		BaseURL: srv.URL,
		Model:   "nomic-embed-text",
		Timeout: time.Second,
	})
	require.NoError(t, err)
	srv.Close()

	_, err = e.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, recallerrors.IsRecoverable(err))
}

func TestFallbackDegradesToEmptyVector(t *testing.T) {
	f := NewFallback(&stubEmbedder{err: errors.New("boom")}, testLogger())

	vec, err := f.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Empty(t, vec)
}

func TestFallbackPassesThrough(t *testing.T) {
	f := NewFallback(&stubEmbedder{vec: []float32{1, 2, 3}}, testLogger())

	vec, err := f.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
	assert.Equal(t, 3, f.Dimensions())
}

func newCacheClient(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCacheReadThrough(t *testing.T) {
	_, rdb := newCacheClient(t)
	stub := &stubEmbedder{vec: []float32{0.5, 0.5}}
	c := NewCache(stub, rdb, "nomic-embed-text", time.Hour, testLogger())

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, vec)
	assert.Equal(t, 1, stub.calls)

	// Second call is served from Redis.
	vec, err = c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, vec)
	assert.Equal(t, 1, stub.calls)
}

func TestCacheKeyIncludesModel(t *testing.T) {
	_, rdb := newCacheClient(t)
	a := NewCache(&stubEmbedder{vec: []float32{1}}, rdb, "model-a", time.Hour, testLogger())
	b := NewCache(&stubEmbedder{vec: []float32{2}}, rdb, "model-b", time.Hour, testLogger())

	va, err := a.Embed(context.Background(), "same text")
	require.NoError(t, err)
	vb, err := b.Embed(context.Background(), "same text")
	require.NoError(t, err)
	assert.NotEqual(t, va, vb)
}

func TestCacheFailOpenOnRedisOutage(t *testing.T) {
	mr, rdb := newCacheClient(t)
	stub := &stubEmbedder{vec: []float32{0.1}}
	c := NewCache(stub, rdb, "m", time.Hour, testLogger())

	mr.Close()

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1}, vec)
	assert.Equal(t, 1, stub.calls)
}

func TestCacheSkipsEmptyVectors(t *testing.T) {
	mr, rdb := newCacheClient(t)
	stub := &stubEmbedder{vec: []float32{}}
	c := NewCache(stub, rdb, "m", time.Hour, testLogger())

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Empty(t, vec)
	assert.Empty(t, mr.Keys())
}
