// Package app wires the application together: configuration, tracing,
// database pool, Genkit, and the RAG pipeline components.
package app

import (
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/impar-ai/docchat/internal/config"
	"github.com/impar-ai/docchat/internal/docstore"
	"github.com/impar-ai/docchat/internal/log"
	"github.com/impar-ai/docchat/internal/rag"
	"github.com/impar-ai/docchat/internal/scraper"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit *genkit.Genkit
	Pool   *pgxpool.Pool

	Store    *docstore.Store
	Tracker  *rag.Tracker
	Ingestor *rag.Ingestor
	Answerer *rag.Answerer
	Scraper  *scraper.Scraper

	otelCleanup func()
}

// Close releases all resources. Safe to call on a partially initialized App.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
