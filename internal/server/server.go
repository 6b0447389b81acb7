package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/dshills/docrag/internal/engine"
)

// Engine is the pipeline surface the HTTP layer depends on.
type Engine interface {
	ProcessDocument(ctx context.Context, text, source string) (*engine.ProcessResult, error)
	Query(ctx context.Context, query string, k int) (*engine.QueryResult, error)
	ClearCaches() error
	ExpireCaches() error
}

// Server exposes the document QA pipeline over HTTP.
type Server struct {
	echo   *echo.Echo
	engine Engine
	logger *log.Logger
}

// New creates a Server with its routes registered.
func New(eng Engine) *Server {
	logger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s: %v", code, req.Method, req.URL.Path, err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	s := &Server{echo: e, engine: eng, logger: logger}

	e.GET("/health", s.health)
	e.POST("/process-document", s.processDocument)
	e.POST("/query", s.query)
	e.POST("/cache/clear", s.clearCache)
	e.POST("/cache/expire", s.expireCache)

	return s
}

// Handler returns the underlying HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown or failure.
func (s *Server) Start(addr string) error {
	s.logger.Printf("listening on %s", addr)
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
