package rag

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/impar-ai/docchat/internal/docstore"
)

// mockEmbedder returns a fixed vector unless embedFunc is set.
type mockEmbedder struct {
	embedFunc func(ctx context.Context, text string) ([]float32, error)
	calls     int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if m.embedFunc != nil {
		return m.embedFunc(ctx, text)
	}
	return []float32{1, 0, 0}, nil
}

// mockSearcher records search calls and returns canned results.
type mockSearcher struct {
	globalFunc func(ctx context.Context, embedding []float32, topK int) ([]docstore.ScoredChunk, error)
	scopedFunc func(ctx context.Context, docID uuid.UUID, embedding []float32, topK int) ([]docstore.ScoredChunk, error)

	globalCalls int
	scopedCalls int
}

func (m *mockSearcher) SearchChunks(ctx context.Context, embedding []float32, topK int) ([]docstore.ScoredChunk, error) {
	m.globalCalls++
	if m.globalFunc != nil {
		return m.globalFunc(ctx, embedding, topK)
	}
	return nil, nil
}

func (m *mockSearcher) SearchDocumentChunks(ctx context.Context, docID uuid.UUID, embedding []float32, topK int) ([]docstore.ScoredChunk, error) {
	m.scopedCalls++
	if m.scopedFunc != nil {
		return m.scopedFunc(ctx, docID, embedding, topK)
	}
	return nil, nil
}

// mockGenerator records the last generation request.
type mockGenerator struct {
	generateFunc func(ctx context.Context, system string, history []docstore.Turn, prompt string) (string, error)

	calls       int
	lastSystem  string
	lastHistory []docstore.Turn
	lastPrompt  string
}

func (m *mockGenerator) Generate(ctx context.Context, system string, history []docstore.Turn, prompt string) (string, error) {
	m.calls++
	m.lastSystem = system
	m.lastHistory = history
	m.lastPrompt = prompt
	if m.generateFunc != nil {
		return m.generateFunc(ctx, system, history, prompt)
	}
	return "resposta", nil
}

// mockHistoryStore is an in-memory HistoryStore with error injection.
type mockHistoryStore struct {
	mu    sync.Mutex
	turns map[string][]docstore.Turn

	recentErr error
	maxErr    error
	insertErr error

	recentCalls int
	insertCalls int
}

func newMockHistoryStore() *mockHistoryStore {
	return &mockHistoryStore{turns: make(map[string][]docstore.Turn)}
}

func (m *mockHistoryStore) MaxTurn(_ context.Context, sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxErr != nil {
		return 0, m.maxErr
	}
	max := 0
	for _, t := range m.turns[sessionID] {
		if t.Turn > max {
			max = t.Turn
		}
	}
	return max, nil
}

func (m *mockHistoryStore) InsertTurn(_ context.Context, t docstore.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls++
	if m.insertErr != nil {
		return m.insertErr
	}
	m.turns[t.SessionID] = append(m.turns[t.SessionID], t)
	return nil
}

func (m *mockHistoryStore) RecentTurns(_ context.Context, sessionID string, limit int) ([]docstore.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recentCalls++
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	all := m.turns[sessionID]
	// newest first
	var out []docstore.Turn
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// mockDocs implements DocumentReader.
type mockDocs struct {
	docFunc func(ctx context.Context, id uuid.UUID) (docstore.Document, error)
	calls   int
}

func (m *mockDocs) Document(ctx context.Context, id uuid.UUID) (docstore.Document, error) {
	m.calls++
	if m.docFunc != nil {
		return m.docFunc(ctx, id)
	}
	return docstore.Document{}, docstore.ErrNotFound
}

// mockWriter captures the inserted document and chunks.
type mockWriter struct {
	insertErr error

	calls      int
	lastDoc    docstore.Document
	lastChunks []docstore.Chunk
}

func (m *mockWriter) InsertDocument(_ context.Context, doc docstore.Document, chunks []docstore.Chunk) error {
	m.calls++
	m.lastDoc = doc
	m.lastChunks = chunks
	return m.insertErr
}
