package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dshills/docrag/internal/cache"
	"github.com/dshills/docrag/internal/chunker"
	"github.com/dshills/docrag/internal/config"
	"github.com/dshills/docrag/internal/embedding"
	"github.com/dshills/docrag/internal/engine"
	"github.com/dshills/docrag/internal/provider"
	"github.com/dshills/docrag/internal/server"
	"github.com/dshills/docrag/internal/vectorstore"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env file is fine; explicit environment wins anyway.
	_ = godotenv.Load()
	log.SetOutput(os.Stderr)

	root := &cobra.Command{
		Use:   "docrag",
		Short: "Document QA service with retrieval-augmented generation",
	}
	root.SetVersionTemplate("docrag {{.Version}}\n")
	root.Version = fmt.Sprintf("%s (built %s)", version, buildTime)

	var configPath string
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	var serveAddr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			return runServer(cfg)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")

	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Administer the durable caches",
	}
	cacheCmd.AddCommand(
		&cobra.Command{
			Use:   "clear",
			Short: "Remove all cached embeddings and query results",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withCaches(configPath, func(e *engine.Engine) error {
					return e.ClearCaches()
				})
			},
		},
		&cobra.Command{
			Use:   "expire",
			Short: "Remove cached entries older than the TTL",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withCaches(configPath, func(e *engine.Engine) error {
					return e.ExpireCaches()
				})
			},
		},
	)

	root.AddCommand(serve, cacheCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cfg *config.Config) error {
	log.Printf("docrag v%s starting...", version)

	eng, err := buildEngine(cfg, true)
	if err != nil {
		return err
	}
	srv := server.New(eng)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(cfg.Server.Address)
	}()

	select {
	case sig := <-sigChan:
		log.Printf("received signal %v, shutting down gracefully...", sig)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}

	log.Println("server stopped")
	return nil
}

// buildEngine wires the pipeline. Cache administration does not need a
// provider, so needProvider lets those commands run without an API key.
func buildEngine(cfg *config.Config, needProvider bool) (*engine.Engine, error) {
	var prov *provider.Client
	if needProvider {
		var err error
		prov, err = provider.New(provider.Config{
			Provider:   cfg.Provider.Type,
			APIKey:     cfg.Provider.APIKey,
			BaseURL:    cfg.Provider.BaseURL,
			EmbedModel: cfg.Provider.EmbedModel,
			ChatModel:  cfg.Provider.ChatModel,
		})
		if err != nil {
			return nil, fmt.Errorf("configure provider: %w", err)
		}
	}

	embedCache := cache.New[[]float32](
		filepath.Join(cfg.Cache.Dir, "embeddings_cache.json"), cfg.Cache.TTL)
	queryCache := cache.New[engine.QueryResult](
		filepath.Join(cfg.Cache.Dir, "query_cache.json"), cfg.Cache.TTL)

	svc := embedding.New(prov, embedCache, cfg.Embedding.BatchSize, cfg.Embedding.Workers)
	ch := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	store := vectorstore.New()

	return engine.New(ch, svc, store, prov, embedCache, queryCache, engine.Options{
		TopK:               cfg.Query.TopK,
		ContextTokenBudget: cfg.Query.ContextTokenBudget,
	}), nil
}

func withCaches(configPath string, fn func(*engine.Engine) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	eng, err := buildEngine(cfg, false)
	if err != nil {
		return err
	}
	return fn(eng)
}
