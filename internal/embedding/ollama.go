package embedding

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	recallerrors "github.com/blueberrycongee/recall/pkg/errors"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// OllamaConfig holds configuration for the Ollama embedding client.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OllamaEmbedder generates embeddings via a local Ollama server.
type OllamaEmbedder struct {
	client     *http.Client
	apiBase    string
	model      string
	dimensions int
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewOllamaEmbedder creates an Ollama embedding client and calibrates the
// vector dimension with a probe request. The dimension is fixed for the
// lifetime of the client; a model swap requires a new client.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model is required")
	}

	base := cfg.BaseURL
	if base == "" {
		base = defaultOllamaBaseURL
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	e := &OllamaEmbedder{
		client:  &http.Client{Timeout: cfg.Timeout},
		apiBase: strings.TrimSuffix(base, "/"),
		model:   cfg.Model,
	}

	probe, err := e.embed(ctx, "dimension probe")
	if err != nil {
		return nil, fmt.Errorf("calibrate embedding dimension: %w", err)
	}
	if len(probe) == 0 {
		return nil, fmt.Errorf("calibrate embedding dimension: model %q returned an empty vector", cfg.Model)
	}
	e.dimensions = len(probe)

	return e, nil
}

// Embed converts a single text to an embedding vector.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embed(ctx, text)
	if err != nil {
		return nil, recallerrors.NewEmbeddingError("ollama embed", err)
	}
	if len(vec) != e.dimensions {
		return nil, recallerrors.NewEmbeddingError("ollama embed",
			fmt.Errorf("dimension mismatch: got %d, want %d", len(vec), e.dimensions))
	}
	return vec, nil
}

// Dimensions returns the embedding vector size discovered at calibration.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *OllamaEmbedder) embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := e.apiBase + "/api/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("embed failed: status=%d, body=%s", resp.StatusCode, string(raw))
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Embedding, nil
}
