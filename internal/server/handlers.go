package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dshills/docrag/internal/engine"
	"github.com/dshills/docrag/internal/provider"
	"github.com/dshills/docrag/internal/vectorstore"
)

type processRequest struct {
	Text       string `json:"text"`
	SourceName string `json:"source_name"`
}

type chunkPayload struct {
	Text string `json:"text"`
}

type processResponse struct {
	Chunks          []chunkPayload      `json:"chunks"`
	Embeddings      [][]float32         `json:"embeddings"`
	ProcessingStats engine.ProcessStats `json:"processing_stats"`
}

type queryRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "Service is ready",
	})
}

func (s *Server) processDocument(c echo.Context) error {
	var req processRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SourceName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "source_name is required")
	}

	result, err := s.engine.ProcessDocument(c.Request().Context(), req.Text, req.SourceName)
	if err != nil {
		return s.mapError(err)
	}

	chunks := make([]chunkPayload, 0, len(result.Chunks))
	for _, chunk := range result.Chunks {
		chunks = append(chunks, chunkPayload{Text: chunk})
	}
	embeddings := result.Embeddings
	if embeddings == nil {
		embeddings = [][]float32{}
	}

	return c.JSON(http.StatusOK, processResponse{
		Chunks:          chunks,
		Embeddings:      embeddings,
		ProcessingStats: result.Stats,
	})
}

func (s *Server) query(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := s.engine.Query(c.Request().Context(), req.Query, req.K)
	if err != nil {
		return s.mapError(err)
	}
	if result.Context == nil {
		result.Context = []vectorstore.SearchResult{}
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) clearCache(c echo.Context) error {
	if err := s.engine.ClearCaches(); err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) expireCache(c echo.Context) error {
	if err := s.engine.ExpireCaches(); err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "expired"})
}

// mapError translates pipeline errors into HTTP status codes. Credential
// failures are reported as a bad upstream so callers can tell them apart
// from internal faults.
func (s *Server) mapError(err error) error {
	switch {
	case errors.Is(err, engine.ErrEmptyQuery):
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	case errors.Is(err, provider.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusBadGateway,
			"invalid provider API key, check your credentials and try again")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
