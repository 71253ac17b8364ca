package rag

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/impar-ai/docchat/internal/docstore"
)

// HistoryStore defines the durable chat history operations Memory needs.
type HistoryStore interface {
	MaxTurn(ctx context.Context, sessionID string) (int, error)
	InsertTurn(ctx context.Context, t docstore.Turn) error
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]docstore.Turn, error)
}

// Memory keeps a per-session in-memory conversation buffer backed by the
// durable history store. Each session's buffer is seeded once per process
// from the most recent turns; after that, appends go to both the buffer and
// the store.
//
// Durable writes are best effort: the conversation continues on store
// errors, which are logged and swallowed. Turn numbering uses a
// read-then-increment on the store, which assumes a single writer per
// session; concurrent appends to the same session could duplicate numbers.
//
// Memory is safe for concurrent use across sessions.
type Memory struct {
	store  HistoryStore
	window int
	logger *slog.Logger

	mu      sync.Mutex
	buffers map[string][]docstore.Turn
	loaded  map[string]bool
}

// NewMemory creates a Memory seeding at most window turns per session.
// A nil logger falls back to slog.Default().
func NewMemory(store HistoryStore, window int, logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		store:   store,
		window:  window,
		logger:  logger,
		buffers: make(map[string][]docstore.Turn),
		loaded:  make(map[string]bool),
	}
}

// History returns a session's buffered turns in chronological order. The
// first call for a session loads the most recent window turns from the
// store; a load failure degrades to an empty history.
func (m *Memory) History(ctx context.Context, sessionID string) []docstore.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded[sessionID] {
		m.loaded[sessionID] = true

		recent, err := m.store.RecentTurns(ctx, sessionID, m.window)
		if err != nil {
			m.logger.Error("loading history from store", "session_id", sessionID, "error", err)
		} else if len(recent) > 0 {
			// RecentTurns returns newest first; reverse to chronological.
			turns := make([]docstore.Turn, len(recent))
			for i, t := range recent {
				turns[len(recent)-1-i] = t
			}
			m.buffers[sessionID] = turns
			m.logger.Info("history loaded from store",
				"session_id", sessionID, "turns", len(turns))
		}
	}

	buf := m.buffers[sessionID]
	out := make([]docstore.Turn, len(buf))
	copy(out, buf)
	return out
}

// AppendTurn records one turn in the session buffer and, best effort, in
// the durable store with the next turn number.
func (m *Memory) AppendTurn(ctx context.Context, sessionID, role, content string) {
	m.mu.Lock()
	m.buffers[sessionID] = append(m.buffers[sessionID], docstore.Turn{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
	})
	m.mu.Unlock()

	max, err := m.store.MaxTurn(ctx, sessionID)
	if err != nil {
		m.logger.Error("reading max turn", "session_id", sessionID, "error", err)
		return
	}

	err = m.store.InsertTurn(ctx, docstore.Turn{
		SessionID: sessionID,
		Turn:      max + 1,
		Role:      role,
		Content:   content,
	})
	if err != nil {
		m.logger.Error("saving turn to store", "session_id", sessionID, "error", err)
	}
}

// RenderText flattens turns into the line-oriented transcript format used
// by the CLI: "Human: ..." and "AI: ..." lines.
func RenderText(turns []docstore.Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		if t.Role == docstore.RoleAssistant {
			b.WriteString("AI: ")
		} else {
			b.WriteString("Human: ")
		}
		b.WriteString(t.Content)
	}
	return b.String()
}

// ParseTranscript parses a transcript produced by RenderText back into
// turns. Lines without a role prefix are skipped. Round-trips exactly for
// newline-free turn content.
func ParseTranscript(text string) []docstore.Turn {
	var turns []docstore.Turn
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Human: "):
			turns = append(turns, docstore.Turn{
				Role:    docstore.RoleUser,
				Content: strings.TrimPrefix(line, "Human: "),
			})
		case strings.HasPrefix(line, "AI: "):
			turns = append(turns, docstore.Turn{
				Role:    docstore.RoleAssistant,
				Content: strings.TrimPrefix(line, "AI: "),
			})
		}
	}
	return turns
}
