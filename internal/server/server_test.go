package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docrag/internal/engine"
	"github.com/dshills/docrag/internal/provider"
	"github.com/dshills/docrag/internal/vectorstore"
)

// stubEngine lets each test script the pipeline's responses.
type stubEngine struct {
	processFn func(ctx context.Context, text, source string) (*engine.ProcessResult, error)
	queryFn   func(ctx context.Context, query string, k int) (*engine.QueryResult, error)
	clearErr  error
	expireErr error
}

func (s *stubEngine) ProcessDocument(ctx context.Context, text, source string) (*engine.ProcessResult, error) {
	return s.processFn(ctx, text, source)
}

func (s *stubEngine) Query(ctx context.Context, query string, k int) (*engine.QueryResult, error) {
	return s.queryFn(ctx, query, k)
}

func (s *stubEngine) ClearCaches() error  { return s.clearErr }
func (s *stubEngine) ExpireCaches() error { return s.expireErr }

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := New(&stubEngine{})
	rec := doJSON(t, srv, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestProcessDocument(t *testing.T) {
	srv := New(&stubEngine{
		processFn: func(_ context.Context, text, source string) (*engine.ProcessResult, error) {
			assert.Equal(t, "some document text", text)
			assert.Equal(t, "doc.txt", source)
			return &engine.ProcessResult{
				Chunks:     []string{"some document text"},
				Embeddings: [][]float32{{1, 2}},
				Stats: engine.ProcessStats{
					TotalChunks:     1,
					ProcessedChunks: 1,
					TotalWords:      3,
					AvgChunkSize:    3,
					ProcessingTime:  0.01,
				},
			}, nil
		},
	})

	rec := doJSON(t, srv, http.MethodPost, "/process-document", map[string]string{
		"text":        "some document text",
		"source_name": "doc.txt",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Chunks []struct {
			Text string `json:"text"`
		} `json:"chunks"`
		Embeddings [][]float32 `json:"embeddings"`
		Stats      struct {
			TotalChunks     int     `json:"total_chunks"`
			ProcessedChunks int     `json:"processed_chunks"`
			TotalWords      int     `json:"total_words"`
			AvgChunkSize    float64 `json:"avg_chunk_size"`
			ProcessingTime  float64 `json:"processing_time"`
		} `json:"processing_stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Chunks, 1)
	assert.Equal(t, "some document text", body.Chunks[0].Text)
	assert.Equal(t, [][]float32{{1, 2}}, body.Embeddings)
	assert.Equal(t, 1, body.Stats.TotalChunks)
	assert.Equal(t, 3, body.Stats.TotalWords)
}

func TestProcessDocument_MissingSource(t *testing.T) {
	srv := New(&stubEngine{})
	rec := doJSON(t, srv, http.MethodPost, "/process-document", map[string]string{"text": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessDocument_EmptyDocumentStillSucceeds(t *testing.T) {
	srv := New(&stubEngine{
		processFn: func(context.Context, string, string) (*engine.ProcessResult, error) {
			return &engine.ProcessResult{}, nil
		},
	})

	rec := doJSON(t, srv, http.MethodPost, "/process-document", map[string]string{
		"text":        "",
		"source_name": "empty.txt",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Empty collections serialize as [] rather than null.
	assert.Contains(t, rec.Body.String(), `"chunks":[]`)
	assert.Contains(t, rec.Body.String(), `"embeddings":[]`)
}

func TestQuery(t *testing.T) {
	srv := New(&stubEngine{
		queryFn: func(_ context.Context, query string, k int) (*engine.QueryResult, error) {
			assert.Equal(t, "what is this", query)
			assert.Equal(t, 5, k)
			return &engine.QueryResult{
				Response: "an answer",
				Context: []vectorstore.SearchResult{
					{Text: "passage", Score: 0.9, Source: "doc.txt"},
				},
			}, nil
		},
	})

	rec := doJSON(t, srv, http.MethodPost, "/query", map[string]any{
		"query": "what is this",
		"k":     5,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body engine.QueryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "an answer", body.Response)
	require.Len(t, body.Context, 1)
	assert.Equal(t, "doc.txt", body.Context[0].Source)
}

func TestQuery_EmptyQueryRejected(t *testing.T) {
	srv := New(&stubEngine{
		queryFn: func(context.Context, string, int) (*engine.QueryResult, error) {
			return nil, engine.ErrEmptyQuery
		},
	})

	rec := doJSON(t, srv, http.MethodPost, "/query", map[string]string{"query": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "query is required")
}

func TestQuery_InvalidCredentialsIsBadGateway(t *testing.T) {
	srv := New(&stubEngine{
		queryFn: func(context.Context, string, int) (*engine.QueryResult, error) {
			return nil, provider.ErrInvalidCredentials
		},
	})

	rec := doJSON(t, srv, http.MethodPost, "/query", map[string]string{"query": "q"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid provider API key")
}

func TestQuery_InternalError(t *testing.T) {
	srv := New(&stubEngine{
		queryFn: func(context.Context, string, int) (*engine.QueryResult, error) {
			return nil, errors.New("store exploded")
		},
	})

	rec := doJSON(t, srv, http.MethodPost, "/query", map[string]string{"query": "q"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "store exploded")
}

func TestCacheEndpoints(t *testing.T) {
	srv := New(&stubEngine{})
	assert.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodPost, "/cache/clear", nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(t, srv, http.MethodPost, "/cache/expire", nil).Code)

	srv = New(&stubEngine{clearErr: errors.New("disk full")})
	rec := doJSON(t, srv, http.MethodPost, "/cache/clear", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestErrorBodyShape(t *testing.T) {
	srv := New(&stubEngine{
		queryFn: func(context.Context, string, int) (*engine.QueryResult, error) {
			return nil, errors.New("boom")
		},
	})

	rec := doJSON(t, srv, http.MethodPost, "/query", map[string]string{"query": "q"})
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}
