package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/impar-ai/docchat/api"
	"github.com/impar-ai/docchat/internal/app"
	"github.com/impar-ai/docchat/internal/config"
	"github.com/impar-ai/docchat/internal/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the document chat HTTP API.

Runs database migrations, optionally scrapes the configured startup URL,
and serves the REST API until interrupted.`,
	RunE: func(*cobra.Command, []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting docchat", "version", Version)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	// Best-effort startup scrape; the server comes up regardless.
	if cfg.Scraper.ScrapeURL != "" {
		startupScrape(ctx, a, cfg.Scraper.ScrapeURL, logger)
	}

	server := api.NewServer(api.Config{
		Pool:             a.Pool,
		Answerer:         a.Answerer,
		Ingestor:         a.Ingestor,
		Fetcher:          a.Scraper,
		Docs:             a.Store,
		Sessions:         a.Store,
		DefaultScrapeURL: cfg.Scraper.ScrapeURL,
		Logger:           logger,
	})

	return server.Run(ctx, cfg.ServerAddr)
}

// startupScrape seeds the document store from the configured URL.
// Failures are logged and ignored.
func startupScrape(ctx context.Context, a *app.App, url string, logger log.Logger) {
	logger.Info("startup scrape", "url", url)

	page, err := a.Scraper.Fetch(url, nil)
	if err != nil {
		logger.Warn("startup scrape failed", "url", url, "error", err)
		return
	}

	metadata := map[string]string{
		"url":          page.URL,
		"text_length":  strconv.Itoa(len(page.Text)),
		"status_code":  strconv.Itoa(page.StatusCode),
		"content_type": page.ContentType,
	}
	docID, err := a.Ingestor.Ingest(ctx, "scrape:"+page.URL, page.Title, metadata, page.Text, "")
	if err != nil {
		logger.Warn("startup scrape ingestion failed", "url", url, "error", err)
		return
	}

	logger.Info("startup scrape stored", "url", url, "document_id", docID)
}
