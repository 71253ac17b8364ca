package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/impar-ai/docchat/internal/docstore"
	"github.com/impar-ai/docchat/internal/rag"
	"github.com/impar-ai/docchat/internal/scraper"
)

type mockAnswerer struct {
	answer rag.Answer
	err    error

	lastQuestion  string
	lastSessionID string
	lastRecentDoc *uuid.UUID
	calls         int
}

func (m *mockAnswerer) Answer(_ context.Context, question, sessionID string, recentDoc *uuid.UUID) (rag.Answer, error) {
	m.calls++
	m.lastQuestion = question
	m.lastSessionID = sessionID
	m.lastRecentDoc = recentDoc
	return m.answer, m.err
}

type mockIngestor struct {
	docID uuid.UUID
	err   error

	lastSource    string
	lastTitle     string
	lastMetadata  map[string]string
	lastText      string
	lastSessionID string
	calls         int
}

func (m *mockIngestor) Ingest(_ context.Context, source, title string, metadata map[string]string, text, sessionID string) (uuid.UUID, error) {
	m.calls++
	m.lastSource = source
	m.lastTitle = title
	m.lastMetadata = metadata
	m.lastText = text
	m.lastSessionID = sessionID
	if m.err != nil {
		return uuid.Nil, m.err
	}
	if m.docID == uuid.Nil {
		m.docID = uuid.New()
	}
	return m.docID, nil
}

type mockFetcher struct {
	page scraper.Page
	err  error

	lastURL     string
	lastHeaders map[string]string
	calls       int
}

func (m *mockFetcher) Fetch(pageURL string, headers map[string]string) (scraper.Page, error) {
	m.calls++
	m.lastURL = pageURL
	m.lastHeaders = headers
	return m.page, m.err
}

type mockDocLister struct {
	docs []docstore.Document
	err  error
}

func (m *mockDocLister) ListDocuments(context.Context) ([]docstore.Document, error) {
	return m.docs, m.err
}

type mockSessionReader struct {
	sessions []docstore.SessionInfo
	turns    map[string][]docstore.Turn
	err      error
}

func (m *mockSessionReader) ListSessions(context.Context) ([]docstore.SessionInfo, error) {
	return m.sessions, m.err
}

func (m *mockSessionReader) SessionTurns(_ context.Context, sessionID string) ([]docstore.Turn, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.turns[sessionID], nil
}
