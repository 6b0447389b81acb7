package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewMistral("test-key")
	require.NoError(t, err)
	client.SetBaseURL(srv.URL)
	client.retry = RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
	return client, srv
}

func embedHandler(t *testing.T, calls *atomic.Int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// Return data out of order to exercise index-based placement.
		type datum struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]datum, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, datum{Embedding: []float32{float32(i), 1}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	})
}

func TestClient_EmbedOrdersByIndex(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, embedHandler(t, &calls))

	vectors, err := client.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for i, v := range vectors {
		assert.Equal(t, []float32{float32(i), 1}, v)
	}
}

func TestClient_EmbedHotCache(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, embedHandler(t, &calls))

	_, err := client.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, int32(1), calls.Load())

	// Second identical call is served from the hot cache.
	vectors, err := client.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []float32{0, 1}, vectors[0])
}

func TestClient_EmbedEmptyInput(t *testing.T) {
	client, err := NewMistral("test-key")
	require.NoError(t, err)

	vectors, err := client.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestClient_InvalidCredentials(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Unauthorized"}`, http.StatusUnauthorized)
	}))

	_, err := client.Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = client.Complete(context.Background(), "sys", "user")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestClient_BatchTooLarge(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Too many tokens in request"}`, http.StatusBadRequest)
	}))

	_, err := client.Embed(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream hiccup", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{1}, "index": 0}},
		})
	}))

	vectors, err := client.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []float32{1}, vectors[0])
}

func TestClient_Complete(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "the answer"}},
			},
		})
	}))

	answer, err := client.Complete(context.Background(), "be helpful", "what is up?")
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)
}

func TestNew_Factory(t *testing.T) {
	client, err := New(Config{Provider: "mistral", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, ProviderMistral, client.Name())
	assert.Equal(t, DefaultMistralEmbedModel, client.embedModel)

	client, err = New(Config{Provider: "openai", APIKey: "k", ChatModel: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, client.Name())
	assert.Equal(t, "gpt-4o", client.chatModel)

	// Default provider is Mistral.
	client, err = New(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, ProviderMistral, client.Name())

	_, err = New(Config{Provider: "bogus", APIKey: "k"})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)

	_, err = New(Config{Provider: "mistral"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
