package embedding

import (
	"context"

	"github.com/blueberrycongee/recall/internal/observability"
)

// Fallback wraps an Embedder so that failures degrade to an empty vector
// instead of propagating. Callers treat the empty vector as "no embedding":
// the turn is still archived, it just never surfaces in similarity search.
type Fallback struct {
	inner  Embedder
	logger *observability.Logger
}

// NewFallback wraps inner with empty-vector degradation.
func NewFallback(inner Embedder, logger *observability.Logger) *Fallback {
	return &Fallback{inner: inner, logger: logger}
}

// Embed returns the inner embedding, or an empty vector when the inner
// embedder fails. Never returns an error.
func (f *Fallback) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := f.inner.Embed(ctx, text)
	if err != nil {
		observability.EmbeddingFailures.Inc()
		f.logger.WarnContext(ctx, "embedding failed, storing turn without vector",
			"error", err)
		return []float32{}, nil
	}
	return vec, nil
}

// Dimensions returns the inner embedder's vector size.
func (f *Fallback) Dimensions() int {
	return f.inner.Dimensions()
}
