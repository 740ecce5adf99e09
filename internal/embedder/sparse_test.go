package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSparseEmbedderGenerateBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := sparseResponse{Data: []sparseResponseItem{
			{Index: 0, Indices: []uint32{3, 7}, Values: []float32{0.5, 0.25}},
		}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	s := NewSparseEmbedder(DenseConfig{BaseURL: srv.URL, Model: "splade"})
	vecs, err := s.GenerateBatch(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Equal(t, []uint32{3, 7}, vecs[0].Indices)
	assert.Equal(t, []float32{0.5, 0.25}, vecs[0].Values)
}

func TestSparseEmbedderEmptyInput(t *testing.T) {
	s := NewSparseEmbedder(DenseConfig{})
	vecs, err := s.GenerateBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestSparseEmbedderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewSparseEmbedder(DenseConfig{BaseURL: srv.URL})
	_, err := s.GenerateBatch(context.Background(), []string{"x"})
	assert.Error(t, err)
}
