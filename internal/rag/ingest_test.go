package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/impar-ai/docchat/internal/chunker"
	"github.com/impar-ai/docchat/internal/log"
)

func newTestIngestor(t *testing.T, embedder Embedder, writer DocumentWriter, tracker *Tracker) *Ingestor {
	t.Helper()
	splitter, err := chunker.New(100, 20)
	if err != nil {
		t.Fatalf("chunker.New: %v", err)
	}
	ing, err := NewIngestor(splitter, embedder, writer, tracker, log.NewNop())
	if err != nil {
		t.Fatalf("NewIngestor: %v", err)
	}
	return ing
}

func TestIngestor_EmptyTextFails(t *testing.T) {
	writer := &mockWriter{}
	ing := newTestIngestor(t, &mockEmbedder{}, writer, NewTracker())

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := ing.Ingest(context.Background(), "upload:empty.txt", "empty", nil, text, ""); !errors.Is(err, ErrEmptyDocument) {
			t.Errorf("Ingest(%q) = %v, want ErrEmptyDocument", text, err)
		}
	}
	if writer.calls != 0 {
		t.Error("nothing should be written for empty text")
	}
}

func TestIngestor_ChunksEmbedsAndStores(t *testing.T) {
	writer := &mockWriter{}
	embedder := &mockEmbedder{}
	ing := newTestIngestor(t, embedder, writer, NewTracker())

	text := strings.Repeat("conteúdo do documento para teste. ", 20)
	id, err := ing.Ingest(context.Background(), "upload:doc.txt", "doc.txt",
		map[string]string{"filename": "doc.txt"}, text, "")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if id == uuid.Nil {
		t.Error("expected a document ID")
	}

	if writer.calls != 1 {
		t.Fatalf("InsertDocument called %d times, want 1", writer.calls)
	}
	if writer.lastDoc.ID != id || writer.lastDoc.Source != "upload:doc.txt" {
		t.Errorf("stored doc = %+v", writer.lastDoc)
	}
	if writer.lastDoc.Metadata["filename"] != "doc.txt" {
		t.Errorf("metadata not carried: %v", writer.lastDoc.Metadata)
	}

	if len(writer.lastChunks) == 0 {
		t.Fatal("no chunks stored")
	}
	if embedder.calls != len(writer.lastChunks) {
		t.Errorf("embedder called %d times for %d chunks", embedder.calls, len(writer.lastChunks))
	}
	for i, c := range writer.lastChunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if len(c.Embedding) == 0 {
			t.Errorf("chunk %d has no embedding", i)
		}
	}
}

func TestIngestor_PinsDocumentForSession(t *testing.T) {
	tracker := NewTracker()
	ing := newTestIngestor(t, &mockEmbedder{}, &mockWriter{}, tracker)

	id, err := ing.Ingest(context.Background(), "upload:a.txt", "a", nil, "algum texto", "sess-1")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	pinned, ok := tracker.Get("sess-1")
	if !ok || pinned != id {
		t.Errorf("pin = (%v, %v), want (%v, true)", pinned, ok, id)
	}
}

func TestIngestor_NoSessionNoPin(t *testing.T) {
	tracker := NewTracker()
	ing := newTestIngestor(t, &mockEmbedder{}, &mockWriter{}, tracker)

	if _, err := ing.Ingest(context.Background(), "scrape:url", "page", nil, "algum texto", ""); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if _, ok := tracker.Get(""); ok {
		t.Error("empty session must not create a pin")
	}
}

func TestIngestor_ErrorsPropagateWithoutPin(t *testing.T) {
	t.Run("embed error", func(t *testing.T) {
		embedErr := errors.New("embedder down")
		embedder := &mockEmbedder{embedFunc: func(context.Context, string) ([]float32, error) {
			return nil, embedErr
		}}
		writer := &mockWriter{}
		ing := newTestIngestor(t, embedder, writer, NewTracker())

		if _, err := ing.Ingest(context.Background(), "upload:a", "a", nil, "texto", "s1"); !errors.Is(err, embedErr) {
			t.Errorf("err = %v, want wrapped embed error", err)
		}
		if writer.calls != 0 {
			t.Error("nothing should be stored when embedding fails")
		}
	})

	t.Run("store error", func(t *testing.T) {
		tracker := NewTracker()
		writer := &mockWriter{insertErr: errors.New("db down")}
		ing := newTestIngestor(t, &mockEmbedder{}, writer, tracker)

		if _, err := ing.Ingest(context.Background(), "upload:a", "a", nil, "texto", "s1"); err == nil {
			t.Fatal("expected store error")
		}
		if _, ok := tracker.Get("s1"); ok {
			t.Error("failed ingestion must not pin the document")
		}
	})
}
