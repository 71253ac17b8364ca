package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/impar-ai/docchat/internal/docstore"
	"github.com/impar-ai/docchat/internal/log"
)

type answererFixture struct {
	answerer *Answerer
	embedder *mockEmbedder
	searcher *mockSearcher
	gen      *mockGenerator
	docs     *mockDocs
	store    *mockHistoryStore
	tracker  *Tracker
}

func newAnswererFixture(t *testing.T) *answererFixture {
	t.Helper()

	f := &answererFixture{
		embedder: &mockEmbedder{},
		searcher: &mockSearcher{},
		gen:      &mockGenerator{},
		docs:     &mockDocs{},
		store:    newMockHistoryStore(),
		tracker:  NewTracker(),
	}

	retriever := NewRetriever(f.embedder, f.searcher, 5, 0.2, log.NewNop())
	memory := NewMemory(f.store, 10, log.NewNop())

	a, err := NewAnswerer(AnswererConfig{
		Retriever:           retriever,
		Generator:           f.gen,
		Docs:                f.docs,
		Memory:              memory,
		Tracker:             f.tracker,
		SimilarityThreshold: 0.3,
		MaxContextChars:     2000,
		Logger:              log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewAnswerer: %v", err)
	}
	f.answerer = a
	return f
}

func chunkFrom(doc, title, source, content string, sim float64) docstore.ScoredChunk {
	return docstore.ScoredChunk{
		Chunk:          docstore.Chunk{Content: content},
		DocumentTitle:  title,
		DocumentSource: source,
		Similarity:     sim,
	}
}

func TestAnswerer_ForgetCommandClearsPin(t *testing.T) {
	f := newAnswererFixture(t)
	f.tracker.Set("s1", uuid.New())

	got, err := f.answerer.Answer(context.Background(), "Por favor, esqueça o documento", "s1", nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got.Text != msgContextCleared {
		t.Errorf("answer = %q, want context-cleared confirmation", got.Text)
	}
	if len(got.Sources) != 0 || got.ContextSize != 0 {
		t.Errorf("command answers carry no sources or context: %+v", got)
	}
	if _, ok := f.tracker.Get("s1"); ok {
		t.Error("pin should be cleared")
	}

	// Commands bypass retrieval, generation and history.
	if f.gen.calls != 0 || f.embedder.calls != 0 {
		t.Error("command path must not retrieve or generate")
	}
	if f.store.insertCalls != 0 {
		t.Error("command path must not write history")
	}
}

func TestAnswerer_WhichDocumentCommand(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *answererFixture) // arrange pin and doc lookup
		wantText  func(got string) bool
		wantSrcs  int
	}{
		{
			name: "active document",
			setup: func(f *answererFixture) {
				docID := uuid.New()
				f.tracker.Set("s1", docID)
				f.docs.docFunc = func(_ context.Context, id uuid.UUID) (docstore.Document, error) {
					return docstore.Document{
						ID:        id,
						Title:     "Manual",
						Source:    "upload:manual.txt",
						CreatedAt: time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
					}, nil
				}
			},
			wantText: func(got string) bool {
				return strings.Contains(got, "**Manual**") && strings.Contains(got, "01/03/2026 10:30")
			},
			wantSrcs: 1,
		},
		{
			name:     "no active document",
			setup:    func(f *answererFixture) {},
			wantText: func(got string) bool { return got == msgNoActiveDocument },
			wantSrcs: 0,
		},
		{
			name: "document lookup fails",
			setup: func(f *answererFixture) {
				f.tracker.Set("s1", uuid.New())
				// mockDocs default returns ErrNotFound
			},
			wantText: func(got string) bool { return got == msgNoActiveDocument },
			wantSrcs: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAnswererFixture(t)
			tt.setup(f)

			got, err := f.answerer.Answer(context.Background(), "qual documento está ativo?", "s1", nil)
			if err != nil {
				t.Fatalf("Answer: %v", err)
			}
			if !tt.wantText(got.Text) {
				t.Errorf("answer = %q", got.Text)
			}
			if len(got.Sources) != tt.wantSrcs {
				t.Errorf("sources = %d, want %d", len(got.Sources), tt.wantSrcs)
			}
			if tt.wantSrcs == 1 && got.Sources[0].Similarity != 1.0 {
				t.Errorf("active document source similarity = %v, want 1.0", got.Sources[0].Similarity)
			}
		})
	}
}

func TestAnswerer_ContextAssembly(t *testing.T) {
	f := newAnswererFixture(t)
	f.searcher.globalFunc = func(context.Context, []float32, int) ([]docstore.ScoredChunk, error) {
		return []docstore.ScoredChunk{
			chunkFrom("d1", "Doc 1", "src1", "primeiro trecho", 0.9),
			chunkFrom("d1", "Doc 1", "src1", "segundo trecho", 0.5),
			chunkFrom("d2", "Doc 2", "src2", "abaixo do corte", 0.29),
			chunkFrom("d2", "Doc 2", "src2", "no limiar", 0.3),
		}, nil
	}

	got, err := f.answerer.Answer(context.Background(), "pergunta", "s1", nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	// Threshold is inclusive: 0.3 kept, 0.29 dropped.
	if strings.Contains(f.gen.lastPrompt, "abaixo do corte") {
		t.Error("chunk below threshold leaked into the prompt")
	}
	if !strings.Contains(f.gen.lastPrompt, "no limiar") {
		t.Error("chunk exactly at threshold should be included")
	}

	wantContext := "primeiro trecho\n\nsegundo trecho\n\nno limiar"
	wantPrompt := fmt.Sprintf("Contexto dos documentos:\n%s\n\nPergunta: pergunta", wantContext)
	if f.gen.lastPrompt != wantPrompt {
		t.Errorf("prompt = %q, want %q", f.gen.lastPrompt, wantPrompt)
	}
	if f.gen.lastSystem != systemPrompt {
		t.Error("system prompt not passed through")
	}

	// Sources deduped in encounter order.
	if len(got.Sources) != 3 {
		t.Fatalf("sources = %d, want 3 (Doc 1 twice with distinct scores, Doc 2 once)", len(got.Sources))
	}
	if got.Sources[0].Title != "Doc 1" || got.Sources[2].Title != "Doc 2" {
		t.Errorf("source order = %v", got.Sources)
	}

	if got.ContextSize != len([]rune(wantContext)) {
		t.Errorf("context size = %d, want %d", got.ContextSize, len([]rune(wantContext)))
	}
}

func TestAnswerer_ContextBudgetStopsAtWholeChunks(t *testing.T) {
	f := newAnswererFixture(t)
	big := strings.Repeat("a", 1500)
	medium := strings.Repeat("b", 600)
	small := strings.Repeat("c", 100)
	f.searcher.globalFunc = func(context.Context, []float32, int) ([]docstore.ScoredChunk, error) {
		return []docstore.ScoredChunk{
			chunkFrom("d1", "Doc 1", "src1", big, 0.9),
			chunkFrom("d1", "Doc 1", "src1", medium, 0.8), // would overflow 2000
			chunkFrom("d1", "Doc 1", "src1", small, 0.7),  // never reached
		}, nil
	}

	got, err := f.answerer.Answer(context.Background(), "pergunta", "s1", nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if strings.Contains(f.gen.lastPrompt, "b") || strings.Contains(f.gen.lastPrompt, "c") {
		t.Error("assembly must stop at the first chunk that would overflow the budget")
	}
	if got.ContextSize != 1500 {
		t.Errorf("context size = %d, want 1500", got.ContextSize)
	}
}

func TestAnswerer_Sentinels(t *testing.T) {
	t.Run("empty store", func(t *testing.T) {
		f := newAnswererFixture(t)
		// mockSearcher default returns no chunks

		got, err := f.answerer.Answer(context.Background(), "pergunta", "s1", nil)
		if err != nil {
			t.Fatalf("Answer: %v", err)
		}
		// No context block: the bare question is sent.
		if f.gen.lastPrompt != "pergunta" {
			t.Errorf("prompt = %q, want bare question", f.gen.lastPrompt)
		}
		if got.ContextSize != 0 || len(got.Sources) != 0 {
			t.Errorf("sentinel answers report no context: %+v", got)
		}
	})

	t.Run("nothing passes threshold", func(t *testing.T) {
		f := newAnswererFixture(t)
		f.searcher.globalFunc = func(context.Context, []float32, int) ([]docstore.ScoredChunk, error) {
			return []docstore.ScoredChunk{chunkFrom("d1", "Doc 1", "src1", "irrelevante", 0.1)}, nil
		}

		got, err := f.answerer.Answer(context.Background(), "pergunta", "s1", nil)
		if err != nil {
			t.Fatalf("Answer: %v", err)
		}
		if f.gen.lastPrompt != "pergunta" {
			t.Errorf("prompt = %q, want bare question", f.gen.lastPrompt)
		}
		if got.ContextSize != 0 || len(got.Sources) != 0 {
			t.Errorf("got %+v, want no sources and zero context", got)
		}
	})
}

func TestAnswerer_PriorityResolution(t *testing.T) {
	f := newAnswererFixture(t)
	pinned := uuid.New()
	explicit := uuid.New()
	f.tracker.Set("s1", pinned)

	var scopedTo []uuid.UUID
	f.searcher.scopedFunc = func(_ context.Context, id uuid.UUID, _ []float32, _ int) ([]docstore.ScoredChunk, error) {
		scopedTo = append(scopedTo, id)
		return []docstore.ScoredChunk{chunkFrom("d", "Doc", "src", "trecho", 0.9)}, nil
	}

	// Explicit recent document beats the session pin.
	if _, err := f.answerer.Answer(context.Background(), "pergunta", "s1", &explicit); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	// Without an explicit document, the pin applies.
	if _, err := f.answerer.Answer(context.Background(), "pergunta", "s1", nil); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if len(scopedTo) != 2 || scopedTo[0] != explicit || scopedTo[1] != pinned {
		t.Errorf("scoped search targets = %v, want [explicit, pinned]", scopedTo)
	}
}

func TestAnswerer_GenerationFailuresBecomeApologies(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    func(got string) bool
	}{
		{
			name: "timeout",
			err:  fmt.Errorf("generating response: %w", context.DeadlineExceeded),
			want: func(got string) bool { return got == apologyTimeout },
		},
		{
			name: "other failure",
			err:  errors.New("boom"),
			want: func(got string) bool { return strings.HasPrefix(got, "Erro ao gerar resposta:") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAnswererFixture(t)
			f.gen.generateFunc = func(context.Context, string, []docstore.Turn, string) (string, error) {
				return "", tt.err
			}

			got, err := f.answerer.Answer(context.Background(), "pergunta", "s1", nil)
			if err != nil {
				t.Fatalf("generation failures must not propagate, got %v", err)
			}
			if !tt.want(got.Text) {
				t.Errorf("answer = %q", got.Text)
			}

			// The apology is still recorded as the assistant turn.
			turns := f.store.turns["s1"]
			if len(turns) != 2 {
				t.Fatalf("history turns = %d, want 2", len(turns))
			}
			if turns[0].Role != docstore.RoleUser || turns[0].Content != "pergunta" {
				t.Errorf("first turn = %+v", turns[0])
			}
			if turns[1].Role != docstore.RoleAssistant || turns[1].Content != got.Text {
				t.Errorf("second turn = %+v", turns[1])
			}
		})
	}
}

func TestAnswerer_HistoryFlowsIntoGeneration(t *testing.T) {
	f := newAnswererFixture(t)
	f.store.turns["s1"] = []docstore.Turn{
		{SessionID: "s1", Turn: 1, Role: docstore.RoleUser, Content: "meu nome é Ana"},
		{SessionID: "s1", Turn: 2, Role: docstore.RoleAssistant, Content: "Prazer, Ana!"},
	}

	if _, err := f.answerer.Answer(context.Background(), "qual o meu nome?", "s1", nil); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if len(f.gen.lastHistory) != 2 {
		t.Fatalf("generator received %d history turns, want 2", len(f.gen.lastHistory))
	}
	if f.gen.lastHistory[0].Content != "meu nome é Ana" {
		t.Errorf("history order wrong: %v", f.gen.lastHistory)
	}
}

func TestAnswerer_RetrievalErrorPropagates(t *testing.T) {
	f := newAnswererFixture(t)
	searchErr := errors.New("db down")
	f.searcher.globalFunc = func(context.Context, []float32, int) ([]docstore.ScoredChunk, error) {
		return nil, searchErr
	}

	if _, err := f.answerer.Answer(context.Background(), "pergunta", "s1", nil); !errors.Is(err, searchErr) {
		t.Errorf("err = %v, want wrapped search error", err)
	}
	if f.store.insertCalls != 0 {
		t.Error("no history should be written when retrieval fails")
	}
}

func TestClassify_TriggerMatching(t *testing.T) {
	a := &Answerer{tracker: NewTracker(), logger: log.NewNop()}
	cmds := a.commands()

	tests := []struct {
		question string
		want     string // "", "forget" or "which"
	}{
		{"esqueça o documento", "forget"},
		{"LIMPAR CONTEXTO por favor", "forget"},
		{"quero um novo contexto", "forget"},
		{"qual documento você está usando?", "which"},
		{"me diga o documento ativo", "which"},
		{"o que diz o documento sobre impostos?", ""},
		{"como funciona?", ""},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			got := classify(tt.question, cmds)
			switch tt.want {
			case "":
				if got != nil {
					t.Error("expected no command match")
				}
			case "forget":
				if got == nil || got.triggers[0] != forgetTriggers[0] {
					t.Error("expected forget command")
				}
			case "which":
				if got == nil || got.triggers[0] != whichTriggers[0] {
					t.Error("expected which-document command")
				}
			}
		})
	}
}
