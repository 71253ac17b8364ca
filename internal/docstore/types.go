package docstore

import (
	"time"

	"github.com/google/uuid"
)

// Conversation roles stored in chat history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Document represents an ingested document. Content lives in its chunks;
// the document row carries identity and provenance.
type Document struct {
	ID        uuid.UUID
	Source    string // e.g. "scrape:https://..." or "upload:notes.txt"
	Title     string
	Metadata  map[string]string
	CreatedAt time.Time

	// ChunkCount is populated by listing queries only.
	ChunkCount int
}

// Chunk is one embedded slice of a document.
type Chunk struct {
	ID         int64
	DocumentID uuid.UUID
	Index      int
	Content    string
	Embedding  []float32
}

// ScoredChunk is a chunk returned from vector search, annotated with its
// document's provenance and a cosine similarity score in [0, 1].
type ScoredChunk struct {
	Chunk
	DocumentTitle  string
	DocumentSource string
	Similarity     float64
}

// Turn is a single conversation turn in a session.
type Turn struct {
	SessionID string
	Turn      int
	Role      string
	Content   string
	CreatedAt time.Time
}

// SessionInfo summarizes one session's stored history.
type SessionInfo struct {
	SessionID string
	Turns     int
	FirstAt   time.Time
	LastAt    time.Time
}
