package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/impar-ai/docchat/internal/docstore"
)

// Embedder produces the embedding vector for one text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkSearcher performs vector search over stored chunks.
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, embedding []float32, topK int) ([]docstore.ScoredChunk, error)
	SearchDocumentChunks(ctx context.Context, docID uuid.UUID, embedding []float32, topK int) ([]docstore.ScoredChunk, error)
}

// Retriever embeds a query and fetches the most similar chunks.
//
// Retrieval follows a scoped-then-fallback policy: when a priority document
// is given, the search is restricted to it and its results are used
// unconditionally, even at low similarity. Only an empty scoped result
// falls back to a global search.
type Retriever struct {
	embedder      Embedder
	searcher      ChunkSearcher
	topK          int
	lowConfidence float64
	logger        *slog.Logger
}

// NewRetriever creates a Retriever. Results scoring below lowConfidence are
// still returned, but logged as a warning.
func NewRetriever(embedder Embedder, searcher ChunkSearcher, topK int, lowConfidence float64, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder:      embedder,
		searcher:      searcher,
		topK:          topK,
		lowConfidence: lowConfidence,
		logger:        logger,
	}
}

// Retrieve returns up to topK chunks similar to the query, most similar
// first. priorityDoc, when non-nil, scopes the search to that document.
// An empty store yields an empty slice, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, priorityDoc *uuid.UUID) ([]docstore.ScoredChunk, error) {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	if priorityDoc != nil {
		scoped, err := r.searcher.SearchDocumentChunks(ctx, *priorityDoc, embedding, r.topK)
		if err != nil {
			return nil, fmt.Errorf("scoped search: %w", err)
		}
		if len(scoped) > 0 {
			best := scoped[0].Similarity
			for _, c := range scoped[1:] {
				if c.Similarity > best {
					best = c.Similarity
				}
			}
			if best < r.lowConfidence {
				r.logger.Warn("low similarity in priority document, answer may be imprecise",
					"document_id", *priorityDoc, "best_similarity", best)
			}
			r.logger.Debug("using priority document chunks",
				"document_id", *priorityDoc, "chunks", len(scoped), "best_similarity", best)
			return scoped, nil
		}
		r.logger.Warn("priority document has no chunks, falling back to global search",
			"document_id", *priorityDoc)
	}

	results, err := r.searcher.SearchChunks(ctx, embedding, r.topK)
	if err != nil {
		return nil, fmt.Errorf("global search: %w", err)
	}
	return results, nil
}
