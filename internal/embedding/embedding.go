// Package embedding wraps the external embedding generator. The generator
// maps text to a fixed-dimension float vector; the dimension is discovered
// once at startup via a calibration call and stays constant for the life of
// the process.
package embedding

import "context"

// Embedder converts text to vector embeddings.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
