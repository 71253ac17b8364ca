// Package docstore persists documents, their embedded chunks, and chat
// history in PostgreSQL with pgvector similarity search.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("not found")

// DB defines the database operations Store needs. Interfaces are defined by
// the consumer; *pgxpool.Pool satisfies this.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store manages documents, chunks and chat history.
// Safe for concurrent use by multiple goroutines.
type Store struct {
	db     DB
	logger *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default().
func New(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// InsertDocument stores a document and its chunks in a single transaction.
// Any existing document with the same source is replaced, so re-ingesting a
// URL or file does not accumulate stale chunks. Either everything commits or
// nothing does.
func (s *Store) InsertDocument(ctx context.Context, doc Document, chunks []Chunk) error {
	if len(chunks) == 0 {
		return fmt.Errorf("document %q has no chunks", doc.ID)
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("rollback failed", "error", rbErr)
		}
	}()

	if _, err := tx.Exec(ctx,
		`DELETE FROM documents WHERE source = $1`, doc.Source); err != nil {
		return fmt.Errorf("removing previous document for source %q: %w", doc.Source, err)
	}

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO documents (id, source, title, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		doc.ID, doc.Source, doc.Title, metadataJSON, createdAt); err != nil {
		return fmt.Errorf("inserting document %q: %w", doc.ID, err)
	}

	for _, c := range chunks {
		vec := pgvector.NewVector(c.Embedding)
		if _, err := tx.Exec(ctx,
			`INSERT INTO chunks (document_id, chunk_index, content, embedding)
			 VALUES ($1, $2, $3, $4)`,
			doc.ID, c.Index, c.Content, vec); err != nil {
			return fmt.Errorf("inserting chunk %d of document %q: %w", c.Index, doc.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing document %q: %w", doc.ID, err)
	}

	s.logger.Debug("stored document", "id", doc.ID, "source", doc.Source, "chunks", len(chunks))
	return nil
}

// Document fetches a document by ID. Returns ErrNotFound when absent.
func (s *Store) Document(ctx context.Context, id uuid.UUID) (Document, error) {
	var (
		doc          Document
		metadataJSON []byte
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, source, title, metadata, created_at
		 FROM documents WHERE id = $1`, id).
		Scan(&doc.ID, &doc.Source, &doc.Title, &metadataJSON, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, fmt.Errorf("document %q: %w", id, ErrNotFound)
		}
		return Document{}, fmt.Errorf("fetching document %q: %w", id, err)
	}

	if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
		s.logger.Warn("failed to parse document metadata", "document_id", id, "error", err)
		doc.Metadata = map[string]string{}
	}
	return doc, nil
}

// searchSQL joins chunks to their documents so results carry provenance.
// Similarity is derived from pgvector cosine distance; ordering by the
// distance operator lets the HNSW index drive the scan.
const searchSQL = `
SELECT c.id, c.document_id, c.chunk_index, c.content,
       d.title, d.source,
       1 - (c.embedding <=> $1) AS similarity
FROM chunks c
JOIN documents d ON d.id = c.document_id
%s
ORDER BY c.embedding <=> $1
LIMIT %s`

// SearchChunks performs a global vector search over all chunks.
// An empty store yields an empty slice, not an error.
func (s *Store) SearchChunks(ctx context.Context, embedding []float32, topK int) ([]ScoredChunk, error) {
	query := fmt.Sprintf(searchSQL, "", "$2")
	rows, err := s.db.Query(ctx, query, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()
	return scanScoredChunks(rows)
}

// SearchDocumentChunks performs a vector search restricted to one document.
func (s *Store) SearchDocumentChunks(ctx context.Context, docID uuid.UUID, embedding []float32, topK int) ([]ScoredChunk, error) {
	query := fmt.Sprintf(searchSQL, "WHERE c.document_id = $2", "$3")
	rows, err := s.db.Query(ctx, query, pgvector.NewVector(embedding), docID, topK)
	if err != nil {
		return nil, fmt.Errorf("searching chunks of document %q: %w", docID, err)
	}
	defer rows.Close()
	return scanScoredChunks(rows)
}

func scanScoredChunks(rows pgx.Rows) ([]ScoredChunk, error) {
	results := make([]ScoredChunk, 0)
	for rows.Next() {
		var sc ScoredChunk
		if err := rows.Scan(&sc.ID, &sc.DocumentID, &sc.Index, &sc.Content,
			&sc.DocumentTitle, &sc.DocumentSource, &sc.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search results: %w", err)
	}
	return results, nil
}

// ListDocuments returns all documents newest first, with chunk counts.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.Query(ctx,
		`SELECT d.id, d.source, d.title, d.metadata, d.created_at, COUNT(c.id)
		 FROM documents d
		 LEFT JOIN chunks c ON c.document_id = d.id
		 GROUP BY d.id
		 ORDER BY d.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var (
			doc          Document
			metadataJSON []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Source, &doc.Title, &metadataJSON,
			&doc.CreatedAt, &doc.ChunkCount); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			s.logger.Warn("failed to parse document metadata", "document_id", doc.ID, "error", err)
			doc.Metadata = map[string]string{}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}
	return docs, nil
}

// MaxTurn returns the highest turn number recorded for a session, or 0 when
// the session has no history.
func (s *Store) MaxTurn(ctx context.Context, sessionID string) (int, error) {
	var max int
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(turn), 0) FROM chat_history WHERE session_id = $1`,
		sessionID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("reading max turn for session %q: %w", sessionID, err)
	}
	return max, nil
}

// InsertTurn appends one turn to a session's history.
func (s *Store) InsertTurn(ctx context.Context, t Turn) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO chat_history (session_id, turn, role, content)
		 VALUES ($1, $2, $3, $4)`,
		t.SessionID, t.Turn, t.Role, t.Content)
	if err != nil {
		return fmt.Errorf("inserting turn %d for session %q: %w", t.Turn, t.SessionID, err)
	}
	return nil
}

// RecentTurns returns the latest limit turns of a session, newest first.
func (s *Store) RecentTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	rows, err := s.db.Query(ctx,
		`SELECT session_id, turn, role, content, created_at
		 FROM chat_history
		 WHERE session_id = $1
		 ORDER BY turn DESC
		 LIMIT $2`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("reading recent turns for session %q: %w", sessionID, err)
	}
	defer rows.Close()
	return scanTurns(rows)
}

// SessionTurns returns a session's full history in chronological order.
func (s *Store) SessionTurns(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := s.db.Query(ctx,
		`SELECT session_id, turn, role, content, created_at
		 FROM chat_history
		 WHERE session_id = $1
		 ORDER BY turn ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("reading history for session %q: %w", sessionID, err)
	}
	defer rows.Close()
	return scanTurns(rows)
}

func scanTurns(rows pgx.Rows) ([]Turn, error) {
	turns := make([]Turn, 0)
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.SessionID, &t.Turn, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading turns: %w", err)
	}
	return turns, nil
}

// ListSessions returns a summary of every session, most recently active
// first.
func (s *Store) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.Query(ctx,
		`SELECT session_id, COUNT(*), MIN(created_at), MAX(created_at)
		 FROM chat_history
		 GROUP BY session_id
		 ORDER BY MAX(created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]SessionInfo, 0)
	for rows.Next() {
		var info SessionInfo
		if err := rows.Scan(&info.SessionID, &info.Turns, &info.FirstAt, &info.LastAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading sessions: %w", err)
	}
	return sessions, nil
}
