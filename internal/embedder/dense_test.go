package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrieval-platform/pkg/types"
)

func TestDenseEmbedderGenerateBatchOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := embeddingResponse{Data: []embeddingResponseItem{
			{Index: 1, Embedding: []float32{0.2}},
			{Index: 0, Embedding: []float32{0.1}},
		}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	d := NewDenseEmbedder(DenseConfig{BaseURL: srv.URL, Model: "m", Timeout: 2 * time.Second, MaxRetries: 1}, nil)
	vecs, err := d.GenerateBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.1}, vecs[0])
	assert.Equal(t, []float32{0.2}, vecs[1])
}

func TestDenseEmbedderGenerateBatchEmptyInput(t *testing.T) {
	d := NewDenseEmbedder(DefaultDenseConfig(), nil)
	vecs, err := d.GenerateBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestDenseEmbedderRetriesThenFails(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDenseEmbedder(DenseConfig{BaseURL: srv.URL, Model: "m", Timeout: time.Second, MaxRetries: 2}, nil)

	done := make(chan struct{})
	go func() {
		_, err := d.GenerateBatch(context.Background(), []string{"x"})
		assert.Error(t, err)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("generate batch did not return in time")
	}
	assert.Equal(t, 2, calls)
}

func TestDimensionsFallsBackToDefault(t *testing.T) {
	cfg := types.DatasetConfig{}
	assert.Equal(t, types.DefaultDatasetConfig().EmbeddingSize, Dimensions(cfg))

	cfg.EmbeddingSize = 512
	assert.Equal(t, 512, Dimensions(cfg))
}
