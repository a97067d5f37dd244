package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tieubaoca/lesson-rag/config"
	"github.com/tieubaoca/lesson-rag/types"
	"go.uber.org/zap"
)

// newFakeEmbeddingServer serves an OpenAI-compatible /embeddings endpoint
// whose vectors encode the input length, so ordering is observable.
func newFakeEmbeddingServer(t *testing.T, requests *int32, failAfter int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(requests, 1)
		if failAfter > 0 && n > failAfter {
			http.Error(w, `{"error":{"message":"model overloaded"}}`, http.StatusInternalServerError)
			return
		}

		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Input, 1)

		resp := map[string]interface{}{
			"object": "list",
			"model":  "test-model",
			"data": []map[string]interface{}{
				{
					"object":    "embedding",
					"index":     0,
					"embedding": []float32{float32(len(req.Input[0]))},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestEmbeddingService(baseURL string) *OpenAIEmbeddingService {
	return NewOpenAIEmbeddingService(config.EmbeddingConfig{
		Provider: "openai",
		Model:    "test-model",
		BaseURL:  baseURL,
		APIKey:   "test-key",
	}, zap.NewNop())
}

func TestNewEmbedder_ProviderSelection(t *testing.T) {
	cfg := config.EmbeddingConfig{Model: "m"}

	cfg.Provider = "openai"
	e, err := NewEmbedder(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &OpenAIEmbeddingService{}, e)

	cfg.Provider = ""
	e, err = NewEmbedder(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &OpenAIEmbeddingService{}, e)

	cfg.Provider = "gemini"
	e, err = NewEmbedder(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &GeminiEmbeddingService{}, e)

	cfg.Provider = "bogus"
	_, err = NewEmbedder(cfg, zap.NewNop())
	require.Error(t, err)
}

func TestGenerateEmbedding_EmptyText(t *testing.T) {
	var requests int32
	srv := newFakeEmbeddingServer(t, &requests, 0)
	defer srv.Close()

	s := newTestEmbeddingService(srv.URL + "/v1")

	_, err := s.GenerateEmbedding(context.Background(), "")
	assert.ErrorIs(t, err, types.ErrEmptyText)

	_, err = s.GenerateEmbedding(context.Background(), "   ")
	assert.ErrorIs(t, err, types.ErrEmptyText)

	// Blank input never reaches the backend.
	assert.Equal(t, int32(0), atomic.LoadInt32(&requests))
}

func TestGenerateEmbedding_LazyInitialize(t *testing.T) {
	var requests int32
	srv := newFakeEmbeddingServer(t, &requests, 0)
	defer srv.Close()

	s := newTestEmbeddingService(srv.URL + "/v1")
	assert.False(t, s.IsInitialized())

	vec, err := s.GenerateEmbedding(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, vec, 1)
	assert.Equal(t, float32(5), vec[0])

	assert.True(t, s.IsInitialized())
	// One probe request plus the actual embedding call.
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestGenerateBatchEmbeddings_SkipsBlanks(t *testing.T) {
	var requests int32
	srv := newFakeEmbeddingServer(t, &requests, 0)
	defer srv.Close()

	s := newTestEmbeddingService(srv.URL + "/v1")

	embeddings, err := s.GenerateBatchEmbeddings(context.Background(), []string{"a", "", "abc"})
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	// Output preserves input order with blanks removed.
	assert.Equal(t, float32(1), embeddings[0][0])
	assert.Equal(t, float32(3), embeddings[1][0])
}

func TestGenerateBatchEmbeddings_Empty(t *testing.T) {
	var requests int32
	srv := newFakeEmbeddingServer(t, &requests, 0)
	defer srv.Close()

	s := newTestEmbeddingService(srv.URL + "/v1")

	embeddings, err := s.GenerateBatchEmbeddings(context.Background(), []string{})
	require.NoError(t, err)
	assert.Empty(t, embeddings)
}

func TestGenerateEmbedding_SanitizesBackendError(t *testing.T) {
	var requests int32
	// Probe succeeds, every later call fails.
	srv := newFakeEmbeddingServer(t, &requests, 1)
	defer srv.Close()

	s := newTestEmbeddingService(srv.URL + "/v1")
	require.NoError(t, s.Initialize(context.Background()))

	_, err := s.GenerateEmbedding(context.Background(), "hello")
	require.Error(t, err)
	assert.EqualError(t, err, "failed to generate embedding")
	assert.NotContains(t, err.Error(), "overloaded")
}

func TestGenerateBatchEmbeddings_FailFast(t *testing.T) {
	var requests int32
	// Probe plus one embedding succeed, then the backend breaks.
	srv := newFakeEmbeddingServer(t, &requests, 2)
	defer srv.Close()

	s := newTestEmbeddingService(srv.URL + "/v1")
	require.NoError(t, s.Initialize(context.Background()))

	_, err := s.GenerateBatchEmbeddings(context.Background(), []string{"one", "two", "three"})
	require.Error(t, err)
	// The failing second text aborts the batch: no third request is made.
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
}

func TestInitialize_FailsOnBrokenEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no model here", http.StatusNotFound)
	}))
	defer srv.Close()

	s := newTestEmbeddingService(srv.URL + "/v1")

	err := s.Initialize(context.Background())
	require.Error(t, err)
	assert.False(t, s.IsInitialized())
}

func TestCleanup_ResetsState(t *testing.T) {
	var requests int32
	srv := newFakeEmbeddingServer(t, &requests, 0)
	defer srv.Close()

	s := newTestEmbeddingService(srv.URL + "/v1")
	require.NoError(t, s.Initialize(context.Background()))
	require.True(t, s.IsInitialized())

	require.NoError(t, s.Cleanup())
	assert.False(t, s.IsInitialized())

	// Cleanup on a never-initialized service is safe.
	fresh := newTestEmbeddingService(srv.URL + "/v1")
	assert.NoError(t, fresh.Cleanup())
}

func TestGenerateEmbedding_InitializeErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := newTestEmbeddingService(srv.URL + "/v1")

	_, err := s.GenerateEmbedding(context.Background(), "hello")
	require.Error(t, err)
	assert.False(t, errors.Is(err, types.ErrEmptyText))
}
