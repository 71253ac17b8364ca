package api

import (
	"context"
	"net/http"
	"time"

	"github.com/impar-ai/docchat/internal/docstore"
	"github.com/impar-ai/docchat/internal/log"
)

// DocumentLister lists stored documents with their chunk counts.
type DocumentLister interface {
	ListDocuments(ctx context.Context) ([]docstore.Document, error)
}

// DocumentsHandler handles document listing.
type DocumentsHandler struct {
	docs   DocumentLister
	logger log.Logger
}

// NewDocumentsHandler creates a documents handler.
func NewDocumentsHandler(docs DocumentLister, logger log.Logger) *DocumentsHandler {
	return &DocumentsHandler{docs: docs, logger: logger}
}

// RegisterRoutes registers document routes on the given mux.
func (h *DocumentsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/documents", h.list)
}

// DocumentInfo is one document in the listing response.
type DocumentInfo struct {
	ID         string            `json:"id"`
	Source     string            `json:"source"`
	Title      string            `json:"title"`
	Metadata   map[string]string `json:"metadata"`
	CreatedAt  string            `json:"created_at"`
	ChunkCount int               `json:"chunk_count"`
}

// DocumentListResponse is the body of GET /api/documents.
type DocumentListResponse struct {
	Status        string         `json:"status"`
	DocumentCount int            `json:"document_count"`
	Documents     []DocumentInfo `json:"documents"`
}

func (h *DocumentsHandler) list(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docs.ListDocuments(r.Context())
	if err != nil {
		h.logger.Error("failed to list documents", "error", err)
		writeError(w, http.StatusInternalServerError, "falha ao listar documentos")
		return
	}

	infos := make([]DocumentInfo, 0, len(docs))
	for _, d := range docs {
		infos = append(infos, DocumentInfo{
			ID:         d.ID.String(),
			Source:     d.Source,
			Title:      d.Title,
			Metadata:   d.Metadata,
			CreatedAt:  d.CreatedAt.Format(time.DateTime),
			ChunkCount: d.ChunkCount,
		})
	}

	writeJSON(w, http.StatusOK, DocumentListResponse{
		Status:        "success",
		DocumentCount: len(infos),
		Documents:     infos,
	})
}
