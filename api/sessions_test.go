package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impar-ai/docchat/internal/docstore"
	"github.com/impar-ai/docchat/internal/log"
)

func newSessionsMux(reader *mockSessionReader) *http.ServeMux {
	mux := http.NewServeMux()
	NewSessionsHandler(reader, log.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestSessionsHandler_List(t *testing.T) {
	reader := &mockSessionReader{sessions: []docstore.SessionInfo{
		{
			SessionID: "s1",
			Turns:     6,
			FirstAt:   time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
			LastAt:    time.Date(2026, 2, 10, 9, 45, 12, 0, time.UTC),
		},
	}}
	mux := newSessionsMux(reader)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp SessionListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 1, resp.SessionCount)
	require.Len(t, resp.Sessions, 1)
	assert.Equal(t, "s1", resp.Sessions[0].SessionID)
	assert.Equal(t, 6, resp.Sessions[0].MessageCount)
	assert.Equal(t, "2026-02-10 09:45:12", resp.Sessions[0].LastMessage)
}

func TestSessionsHandler_History(t *testing.T) {
	reader := &mockSessionReader{turns: map[string][]docstore.Turn{
		"s1": {
			{SessionID: "s1", Turn: 1, Role: docstore.RoleUser, Content: "oi"},
			{SessionID: "s1", Turn: 2, Role: docstore.RoleAssistant, Content: "olá"},
		},
	}}
	mux := newSessionsMux(reader)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history/s1", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, 2, resp.MessageCount)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, docstore.RoleUser, resp.Messages[0].Role)
	assert.Equal(t, "olá", resp.Messages[1].Content)
}

func TestSessionsHandler_HistoryUnknownSessionIsEmpty(t *testing.T) {
	mux := newSessionsMux(&mockSessionReader{})

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history/desconhecida", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Zero(t, resp.MessageCount)
	assert.Empty(t, resp.Messages)
}

func TestSessionsHandler_StoreError(t *testing.T) {
	mux := newSessionsMux(&mockSessionReader{err: assert.AnError})

	for _, path := range []string{"/api/sessions", "/api/history/s1"} {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code, path)
	}
}
