// Package rag implements the retrieval-augmented question answering
// pipeline: per-session document pinning, conversation memory, vector
// retrieval with a scoped-then-fallback policy, context assembly and
// LLM-backed answer generation.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/impar-ai/docchat/internal/docstore"
)

// Generator produces one chat completion from a system prompt, prior turns
// and the final user prompt.
type Generator interface {
	Generate(ctx context.Context, system string, history []docstore.Turn, prompt string) (string, error)
}

// DocumentReader fetches document metadata by ID.
type DocumentReader interface {
	Document(ctx context.Context, id uuid.UUID) (docstore.Document, error)
}

// Source identifies a document that contributed context to an answer.
type Source struct {
	Title      string  `json:"title"`
	Source     string  `json:"source"`
	Similarity float64 `json:"similarity"`
}

// Answer is the result of answering one question.
type Answer struct {
	Text        string   `json:"answer"`
	Sources     []Source `json:"sources"`
	ContextSize int      `json:"context_size"`
}

// AnswererConfig contains required parameters for Answerer.
type AnswererConfig struct {
	Retriever *Retriever
	Generator Generator
	Docs      DocumentReader
	Memory    *Memory
	Tracker   *Tracker

	// SimilarityThreshold excludes chunks scoring below it from context
	// (inclusive: chunks at exactly the threshold are kept).
	SimilarityThreshold float64

	// MaxContextChars bounds the assembled context. Chunks are taken whole;
	// the first chunk that would overflow the budget stops assembly.
	MaxContextChars int

	Logger *slog.Logger
}

// Answerer orchestrates the full question answering flow.
// Safe for concurrent use.
type Answerer struct {
	retriever *Retriever
	generator Generator
	docs      DocumentReader
	memory    *Memory
	tracker   *Tracker
	threshold float64
	maxChars  int
	logger    *slog.Logger
}

// NewAnswerer creates an Answerer.
func NewAnswerer(cfg AnswererConfig) (*Answerer, error) {
	if cfg.Retriever == nil || cfg.Generator == nil || cfg.Docs == nil ||
		cfg.Memory == nil || cfg.Tracker == nil {
		return nil, errors.New("retriever, generator, docs, memory and tracker are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Answerer{
		retriever: cfg.Retriever,
		generator: cfg.Generator,
		docs:      cfg.Docs,
		memory:    cfg.Memory,
		tracker:   cfg.Tracker,
		threshold: cfg.SimilarityThreshold,
		maxChars:  cfg.MaxContextChars,
		logger:    logger,
	}, nil
}

// Answer answers a question for a session. recentDoc, when non-nil, takes
// priority over the session's pinned document for scoping retrieval.
//
// Generation failures never propagate: the answer degrades to a localized
// apology and the turn is still recorded in history. Retrieval failures do
// propagate, since no sensible answer exists without them.
func (a *Answerer) Answer(ctx context.Context, question, sessionID string, recentDoc *uuid.UUID) (Answer, error) {
	if cmd := classify(question, a.commands()); cmd != nil {
		return cmd.handle(ctx, sessionID), nil
	}

	priority := recentDoc
	if priority == nil {
		if pinned, ok := a.tracker.Get(sessionID); ok {
			priority = &pinned
			a.logger.Debug("using session's pinned document", "session_id", sessionID, "document_id", pinned)
		}
	}

	chunks, err := a.retriever.Retrieve(ctx, question, priority)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieving context: %w", err)
	}

	contextText, sources, hasContext := a.assembleContext(chunks)

	prompt := question
	if hasContext {
		prompt = fmt.Sprintf(contextPromptFmt, contextText, question)
	}

	history := a.memory.History(ctx, sessionID)

	answer, err := a.generator.Generate(ctx, systemPrompt, history, prompt)
	if err != nil {
		answer = apologyFor(err)
		a.logger.Error("generation failed", "session_id", sessionID, "error", err)
	}

	a.memory.AppendTurn(ctx, sessionID, docstore.RoleUser, question)
	a.memory.AppendTurn(ctx, sessionID, docstore.RoleAssistant, answer)

	contextSize := 0
	if hasContext {
		contextSize = len([]rune(contextText))
	}

	a.logger.Info("answered question",
		"session_id", sessionID,
		"sources", len(sources),
		"context_size", contextSize)

	return Answer{
		Text:        answer,
		Sources:     sources,
		ContextSize: contextSize,
	}, nil
}

// assembleContext filters chunks by the similarity threshold and joins them
// into a context block bounded by the character budget. Sources are deduped
// in encounter order. When nothing usable remains, the returned context is
// one of the fixed sentinel strings and hasContext is false.
func (a *Answerer) assembleContext(chunks []docstore.ScoredChunk) (string, []Source, bool) {
	sources := []Source{}

	if len(chunks) == 0 {
		return msgNoDocuments, sources, false
	}

	var parts []string
	totalChars := 0
	for _, c := range chunks {
		if c.Similarity < a.threshold {
			continue
		}
		chars := len([]rune(c.Content))
		if totalChars+chars > a.maxChars {
			break
		}
		parts = append(parts, c.Content)
		totalChars += chars

		src := Source{
			Title:      c.DocumentTitle,
			Source:     c.DocumentSource,
			Similarity: c.Similarity,
		}
		if !containsSource(sources, src) {
			sources = append(sources, src)
		}
	}

	if len(parts) == 0 {
		return msgNoRelevantInfo, []Source{}, false
	}
	return strings.Join(parts, "\n\n"), sources, true
}

func containsSource(sources []Source, s Source) bool {
	for _, existing := range sources {
		if existing == s {
			return true
		}
	}
	return false
}

// apologyFor maps a generation error to the fixed localized apology shown
// in place of an answer.
func apologyFor(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return apologyTimeout
	}
	return fmt.Sprintf(apologyGenerationFmt, err)
}
