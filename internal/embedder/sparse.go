package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"retrieval-platform/internal/apierrors"
	"retrieval-platform/pkg/types"
)

// SparseEmbedder calls a SPLADE-style sparse embedding endpoint,
// reusing the same HTTP shape as the dense embedder but returning
// index/value pairs instead of a dense float slice.
type SparseEmbedder struct {
	cfg        DenseConfig
	httpClient *http.Client
}

// NewSparseEmbedder constructs a SparseEmbedder.
func NewSparseEmbedder(cfg DenseConfig) *SparseEmbedder {
	return &SparseEmbedder{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

type sparseResponseItem struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
	Index   int       `json:"index"`
}

type sparseResponse struct {
	Data []sparseResponseItem `json:"data"`
}

// GenerateBatch embeds every text into a SPLADE-style sparse vector.
func (s *SparseEmbedder) GenerateBatch(ctx context.Context, texts []string) ([]*types.SparseVector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(embeddingRequest{Input: texts, Model: s.cfg.Model})
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Validation, "marshal sparse request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.cfg.BaseURL, "/")+"/sparse_embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Fatal, "build sparse request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Transient, "call sparse endpoint", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, apierrors.New(apierrors.Transient, fmt.Sprintf("sparse endpoint returned %d: %s", resp.StatusCode, string(data)))
	}

	var parsed sparseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apierrors.Wrap(apierrors.Inconsistency, "decode sparse response", err)
	}

	out := make([]*types.SparseVector, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(out) {
			continue
		}
		out[item.Index] = &types.SparseVector{Indices: item.Indices, Values: item.Values}
	}
	return out, nil
}
