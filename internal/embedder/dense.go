// Package embedder produces the three vector signals a chunk can
// carry: a dense embedding from an HTTP embedding service, a
// SPLADE-style sparse embedding from the same kind of service, and an
// in-process Okapi BM25 sparse vector that needs no network call at
// all.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"retrieval-platform/internal/apierrors"
	"retrieval-platform/internal/circuitbreaker"
	"retrieval-platform/internal/embeddings"
	"retrieval-platform/internal/logging"
	"retrieval-platform/internal/retry"
	"retrieval-platform/pkg/types"
)

// DenseConfig configures the HTTP client used for dense and sparse
// embedding calls.
type DenseConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// DefaultDenseConfig mirrors the teacher's OpenAI defaults.
func DefaultDenseConfig() DenseConfig {
	return DenseConfig{
		Model:      "text-embedding-3-small",
		Timeout:    30 * time.Second,
		MaxRetries: 3,
	}
}

// DenseEmbedder calls an OpenAI-compatible embeddings endpoint,
// wrapped in a circuit breaker (so a dead endpoint fails fast instead
// of piling up retries) and an exponential-backoff retrier.
type DenseEmbedder struct {
	cfg        DenseConfig
	httpClient *http.Client
	logger     logging.Logger
	breaker    *circuitbreaker.CircuitBreaker
	retrier    *retry.Retrier
	cache      *embeddings.EmbeddingCache
}

// NewDenseEmbedder constructs a DenseEmbedder. Results are cached by
// text content for 24h so re-ingesting unchanged content (a common
// pattern on re-crawl) never hits the embedding endpoint twice.
func NewDenseEmbedder(cfg DenseConfig, logger logging.Logger) *DenseEmbedder {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	maxAttempts := cfg.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &DenseEmbedder{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		breaker:    circuitbreaker.New(circuitbreaker.DefaultConfig()),
		retrier: retry.New(&retry.Config{
			MaxAttempts:     maxAttempts,
			InitialDelay:    time.Second,
			MaxDelay:        30 * time.Second,
			Multiplier:      2.0,
			RandomizeFactor: 0.1,
			RetryIf:         retry.DefaultRetryIf,
		}),
		cache: embeddings.NewEmbeddingCache(10000, 24*time.Hour),
	}
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponseItem struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingResponse struct {
	Data []embeddingResponseItem `json:"data"`
}

// GenerateBatch embeds every text in one call, returning vectors in
// input order regardless of the order the remote service returns
// them in.
func (d *DenseEmbedder) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if cached, ok := d.cache.Get(text); ok {
			out[i] = float64sToFloat32s(cached)
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	var vectors [][]float32
	result := d.retrier.Do(ctx, func(ctx context.Context) error {
		return d.breaker.Execute(ctx, func(ctx context.Context) error {
			fetched, err := d.callOnce(ctx, missTexts)
			if err != nil {
				return err
			}
			vectors = fetched
			return nil
		})
	})
	if result.Err != nil {
		d.logger.Warn("dense embedding failed", "attempts", result.Attempts, "error", result.Err)
		return nil, apierrors.Wrap(apierrors.Transient, "generate dense embeddings", result.Err)
	}

	for j, idx := range missIdx {
		out[idx] = vectors[j]
		d.cache.Set(missTexts[j], float32sToFloat64s(vectors[j]))
	}
	return out, nil
}

func float64sToFloat32s(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

func float32sToFloat64s(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func (d *DenseEmbedder) callOnce(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{Input: texts, Model: d.cfg.Model})
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Validation, "marshal embedding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(d.cfg.BaseURL, "/")+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Fatal, "build embedding request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.cfg.APIKey)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Transient, "call embedding endpoint", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, apierrors.New(apierrors.Transient, fmt.Sprintf("embedding endpoint returned %d: %s", resp.StatusCode, string(data)))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apierrors.Wrap(apierrors.Inconsistency, "decode embedding response", err)
	}

	out := make([][]float32, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(out) {
			continue
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}

// Dimensions returns the dataset-configured dimension; dense
// embedding size is a dataset property, not a model property, since
// the same model name can be served at different truncated sizes.
func Dimensions(cfg types.DatasetConfig) int {
	if cfg.EmbeddingSize > 0 {
		return cfg.EmbeddingSize
	}
	return types.DefaultDatasetConfig().EmbeddingSize
}
