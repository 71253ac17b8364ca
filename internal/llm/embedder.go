package llm

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
)

// Embedder bridges a Genkit ai.Embedder to the single-text embedding calls
// used by ingestion and retrieval. It enforces the vector dimension the
// chunks table is declared with.
type Embedder struct {
	embedder ai.Embedder
	dim      int
}

// NewEmbedder creates an Embedder that validates every vector against dim.
func NewEmbedder(embedder ai.Embedder, dim int) (*Embedder, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if dim < 1 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dim)
	}
	return &Embedder{embedder: embedder, dim: dim}, nil
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			ai.DocumentFromText(text, nil),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	vec := resp.Embeddings[0].Embedding
	if len(vec) != e.dim {
		return nil, fmt.Errorf("embedder returned %d dimensions, schema expects %d", len(vec), e.dim)
	}
	return vec, nil
}
