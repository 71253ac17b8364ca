package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/impar-ai/docchat/internal/docstore"
)

// command pairs a set of trigger phrases with the handler that answers the
// command. Commands bypass retrieval, generation and history entirely.
type command struct {
	triggers []string
	handle   func(ctx context.Context, sessionID string) Answer
}

// commands returns the command table in match order. The forget command is
// checked first so a question containing triggers from both sets clears the
// context.
func (a *Answerer) commands() []command {
	return []command{
		{triggers: forgetTriggers, handle: a.handleForget},
		{triggers: whichTriggers, handle: a.handleWhichDocument},
	}
}

// classify returns the first command whose trigger appears as a substring
// of the lowercased, trimmed question, or nil for a regular question.
func classify(question string, cmds []command) *command {
	q := strings.ToLower(strings.TrimSpace(question))
	for i := range cmds {
		for _, trigger := range cmds[i].triggers {
			if strings.Contains(q, trigger) {
				return &cmds[i]
			}
		}
	}
	return nil
}

func (a *Answerer) handleForget(_ context.Context, sessionID string) Answer {
	a.tracker.Clear(sessionID)
	a.logger.Info("cleared active document", "session_id", sessionID)
	return Answer{
		Text:    msgContextCleared,
		Sources: []Source{},
	}
}

func (a *Answerer) handleWhichDocument(ctx context.Context, sessionID string) Answer {
	docID, ok := a.tracker.Get(sessionID)
	if ok {
		doc, err := a.docs.Document(ctx, docID)
		if err == nil {
			return Answer{
				Text: formatActiveDocument(doc),
				Sources: []Source{
					{Title: doc.Title, Source: doc.Source, Similarity: 1.0},
				},
			}
		}
		a.logger.Warn("fetching active document info", "document_id", docID, "error", err)
	}
	return Answer{
		Text:    msgNoActiveDocument,
		Sources: []Source{},
	}
}

func formatActiveDocument(doc docstore.Document) string {
	uploaded := doc.CreatedAt.Format("02/01/2006 15:04")
	return fmt.Sprintf(msgActiveDocumentFmt, doc.Title, uploaded)
}
