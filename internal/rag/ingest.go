package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/impar-ai/docchat/internal/chunker"
	"github.com/impar-ai/docchat/internal/docstore"
)

// ErrEmptyDocument indicates ingestion received no extractable text.
var ErrEmptyDocument = errors.New("document has no extractable text")

// DocumentWriter persists a document and its chunks atomically.
type DocumentWriter interface {
	InsertDocument(ctx context.Context, doc docstore.Document, chunks []docstore.Chunk) error
}

// Ingestor turns raw text into an embedded, stored document: split into
// overlapping chunks, embed each chunk, insert everything in one
// transaction, and optionally pin the document to a session.
type Ingestor struct {
	splitter *chunker.Splitter
	embedder Embedder
	store    DocumentWriter
	tracker  *Tracker
	logger   *slog.Logger
}

// NewIngestor creates an Ingestor.
func NewIngestor(splitter *chunker.Splitter, embedder Embedder, store DocumentWriter, tracker *Tracker, logger *slog.Logger) (*Ingestor, error) {
	if splitter == nil || embedder == nil || store == nil || tracker == nil {
		return nil, errors.New("splitter, embedder, store and tracker are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		splitter: splitter,
		embedder: embedder,
		store:    store,
		tracker:  tracker,
		logger:   logger,
	}, nil
}

// Ingest stores text as a new document. When sessionID is non-empty, the
// document becomes the session's pinned document on success. Nothing is
// committed on failure.
func (ing *Ingestor) Ingest(ctx context.Context, source, title string, metadata map[string]string, text, sessionID string) (uuid.UUID, error) {
	if strings.TrimSpace(text) == "" {
		return uuid.Nil, fmt.Errorf("%w (source %q)", ErrEmptyDocument, source)
	}

	pieces := ing.splitter.Split(text)
	ing.logger.Debug("split document", "source", source, "chunks", len(pieces))

	chunks := make([]docstore.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		embedding, err := ing.embedder.Embed(ctx, piece)
		if err != nil {
			return uuid.Nil, fmt.Errorf("embedding chunk %d: %w", i, err)
		}
		chunks = append(chunks, docstore.Chunk{
			Index:     i,
			Content:   piece,
			Embedding: embedding,
		})
	}

	doc := docstore.Document{
		ID:        uuid.New(),
		Source:    source,
		Title:     title,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}

	if err := ing.store.InsertDocument(ctx, doc, chunks); err != nil {
		return uuid.Nil, fmt.Errorf("storing document: %w", err)
	}

	if sessionID != "" {
		ing.tracker.Set(sessionID, doc.ID)
	}

	ing.logger.Info("document ingested",
		"document_id", doc.ID,
		"source", source,
		"chunks", len(chunks),
		"pinned", sessionID != "")

	return doc.ID, nil
}
