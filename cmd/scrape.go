package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/impar-ai/docchat/internal/app"
	"github.com/impar-ai/docchat/internal/config"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape [url]",
	Short: "Scrape a URL into the document store",
	Long: `Fetch a web page, extract its main content, and store it as an
embedded document. With no argument, the configured scraper.scrape_url
is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		url := ""
		if len(args) == 1 {
			url = args[0]
		}
		return runScrape(url)
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(url string) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if url == "" {
		url = cfg.Scraper.ScrapeURL
	}
	if url == "" {
		return fmt.Errorf("no URL given and scraper.scrape_url is not configured")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	page, err := a.Scraper.Fetch(url, nil)
	if err != nil {
		return fmt.Errorf("scraping %s: %w", url, err)
	}

	metadata := map[string]string{
		"url":          page.URL,
		"text_length":  strconv.Itoa(len(page.Text)),
		"status_code":  strconv.Itoa(page.StatusCode),
		"content_type": page.ContentType,
	}
	docID, err := a.Ingestor.Ingest(ctx, "scrape:"+page.URL, page.Title, metadata, page.Text, "")
	if err != nil {
		return fmt.Errorf("storing scraped page: %w", err)
	}

	fmt.Printf("Stored %q as document %s\n", page.Title, docID)
	return nil
}
