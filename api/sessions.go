package api

import (
	"context"
	"net/http"
	"time"

	"github.com/impar-ai/docchat/internal/docstore"
	"github.com/impar-ai/docchat/internal/log"
)

// SessionReader reads chat history for listings and transcripts.
type SessionReader interface {
	ListSessions(ctx context.Context) ([]docstore.SessionInfo, error)
	SessionTurns(ctx context.Context, sessionID string) ([]docstore.Turn, error)
}

// SessionsHandler handles session listing and per-session history.
type SessionsHandler struct {
	sessions SessionReader
	logger   log.Logger
}

// NewSessionsHandler creates a sessions handler.
func NewSessionsHandler(sessions SessionReader, logger log.Logger) *SessionsHandler {
	return &SessionsHandler{sessions: sessions, logger: logger}
}

// RegisterRoutes registers session routes on the given mux.
func (h *SessionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions", h.list)
	mux.HandleFunc("GET /api/history/{session_id}", h.history)
}

// SessionSummary is one session in the listing response.
type SessionSummary struct {
	SessionID    string `json:"session_id"`
	MessageCount int    `json:"message_count"`
	FirstMessage string `json:"first_message"`
	LastMessage  string `json:"last_message"`
}

// SessionListResponse is the body of GET /api/sessions.
type SessionListResponse struct {
	Status       string           `json:"status"`
	SessionCount int              `json:"session_count"`
	Sessions     []SessionSummary `json:"sessions"`
}

// Message is one turn in a session transcript.
type Message struct {
	SessionID string `json:"session_id"`
	Turn      int    `json:"turn"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// HistoryResponse is the body of GET /api/history/{session_id}.
type HistoryResponse struct {
	Status       string    `json:"status"`
	SessionID    string    `json:"session_id"`
	MessageCount int       `json:"message_count"`
	Messages     []Message `json:"messages"`
}

func (h *SessionsHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.ListSessions(r.Context())
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "falha ao listar sessões")
		return
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, SessionSummary{
			SessionID:    s.SessionID,
			MessageCount: s.Turns,
			FirstMessage: s.FirstAt.Format(time.DateTime),
			LastMessage:  s.LastAt.Format(time.DateTime),
		})
	}

	writeJSON(w, http.StatusOK, SessionListResponse{
		Status:       "success",
		SessionCount: len(summaries),
		Sessions:     summaries,
	})
}

func (h *SessionsHandler) history(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	turns, err := h.sessions.SessionTurns(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to load history", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "falha ao buscar histórico")
		return
	}

	messages := make([]Message, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, Message{
			SessionID: t.SessionID,
			Turn:      t.Turn,
			Role:      t.Role,
			Content:   t.Content,
			CreatedAt: t.CreatedAt.Format(time.DateTime),
		})
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		Status:       "success",
		SessionID:    sessionID,
		MessageCount: len(messages),
		Messages:     messages,
	})
}
