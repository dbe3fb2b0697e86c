package embed

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

func embedServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func vectorOf(fill float32) []float32 {
	v := make([]float32, Dimension)
	for i := range v {
		v[i] = fill
	}
	return v
}

// TestEmbedBatch_OrderPreserved tests that response vectors map back to
// their input positions.
func TestEmbedBatch_OrderPreserved(t *testing.T) {
	server := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := embedResponse{}
		for i := range req.Texts {
			resp.Embeddings = append(resp.Embeddings, vectorOf(float32(i+1)))
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	client := NewClient(&ClientConfig{BaseURL: server.URL, RequestsPerSecond: 1000})
	vectors, err := client.EmbedBatch(context.Background(), []string{"first", "second"})

	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, float32(1), vectors[0][0])
	assert.Equal(t, float32(2), vectors[1][0])
}

// TestEmbedBatch_BlankTextsSkipNetwork tests that blank inputs become zero
// vectors without any service call.
func TestEmbedBatch_BlankTextsSkipNetwork(t *testing.T) {
	var calls atomic.Int32
	server := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	client := NewClient(&ClientConfig{BaseURL: server.URL, RequestsPerSecond: 1000})
	vectors, err := client.EmbedBatch(context.Background(), []string{"", "   ", ""})

	require.NoError(t, err)
	assert.Equal(t, int32(0), calls.Load(), "blank-only batch must not hit the network")
	for _, v := range vectors {
		assert.Equal(t, make([]float32, Dimension), v)
	}
}

// TestEmbedBatch_MixedBlankAndText tests index alignment when blanks are
// interleaved with real texts.
func TestEmbedBatch_MixedBlankAndText(t *testing.T) {
	server := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, []string{"real"}, req.Texts, "only non-blank texts are sent")

		resp := embedResponse{Embeddings: [][]float32{vectorOf(7)}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	client := NewClient(&ClientConfig{BaseURL: server.URL, RequestsPerSecond: 1000})
	vectors, err := client.EmbedBatch(context.Background(), []string{"", "real", ""})

	require.NoError(t, err)
	assert.Equal(t, make([]float32, Dimension), vectors[0])
	assert.Equal(t, float32(7), vectors[1][0])
	assert.Equal(t, make([]float32, Dimension), vectors[2])
}

// TestEmbedBatch_WrongDimensionPadded tests that an unusable vector degrades
// to zeros instead of failing the batch.
func TestEmbedBatch_WrongDimensionPadded(t *testing.T) {
	server := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		resp := embedResponse{Embeddings: [][]float32{{1, 2, 3}, vectorOf(5)}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	client := NewClient(&ClientConfig{BaseURL: server.URL, RequestsPerSecond: 1000})
	vectors, err := client.EmbedBatch(context.Background(), []string{"bad", "good"})

	require.NoError(t, err)
	assert.Equal(t, make([]float32, Dimension), vectors[0])
	assert.Equal(t, float32(5), vectors[1][0])
}

// TestEmbedBatch_RetriesServerErrors tests exponential-backoff retry on 5xx.
func TestEmbedBatch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp := embedResponse{Embeddings: [][]float32{vectorOf(1)}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	client := NewClient(&ClientConfig{BaseURL: server.URL, MaxRetries: 2, RequestsPerSecond: 1000})
	vectors, err := client.EmbedBatch(context.Background(), []string{"text"})

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, float32(1), vectors[0][0])
}

// TestEmbedBatch_ClientErrorNotRetried tests that a 4xx fails immediately.
func TestEmbedBatch_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	client := NewClient(&ClientConfig{BaseURL: server.URL, MaxRetries: 3, RequestsPerSecond: 1000})
	_, err := client.EmbedBatch(context.Background(), []string{"text"})

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

// TestEmbedBatch_CountMismatch tests that a short response is an error, not a
// silent misalignment.
func TestEmbedBatch_CountMismatch(t *testing.T) {
	server := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		resp := embedResponse{Embeddings: [][]float32{vectorOf(1)}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	client := NewClient(&ClientConfig{BaseURL: server.URL, RequestsPerSecond: 1000})
	_, err := client.EmbedBatch(context.Background(), []string{"a", "b"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}
