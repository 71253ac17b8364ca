package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/impar-ai/docchat/internal/extract"
	"github.com/impar-ai/docchat/internal/log"
	"github.com/impar-ai/docchat/internal/rag"
)

// maxUploadBytes caps the in-memory portion of multipart parsing.
const maxUploadBytes = 32 << 20

// defaultSessionID groups requests that carry no session identifier.
const defaultSessionID = "default"

// Answerer answers a question for a session, optionally prioritizing a
// just-ingested document.
type Answerer interface {
	Answer(ctx context.Context, question, sessionID string, recentDoc *uuid.UUID) (rag.Answer, error)
}

// Ingestor chunks, embeds, and stores a document.
type Ingestor interface {
	Ingest(ctx context.Context, source, title string, metadata map[string]string, text, sessionID string) (uuid.UUID, error)
}

// ChatHandler handles the combined upload-and-chat endpoint.
//
// Behavior:
//   - file + question: ingest the file, then answer with the new document
//     prioritized in retrieval
//   - file only: ingest and confirm
//   - question only: answer against the stored documents
//   - neither: 400
type ChatHandler struct {
	answerer Answerer
	ingestor Ingestor
	logger   log.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(answerer Answerer, ingestor Ingestor, logger log.Logger) *ChatHandler {
	return &ChatHandler{answerer: answerer, ingestor: ingestor, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.handle)
}

// ChatRequest is the JSON request body for file-less chat requests.
// Multipart requests carry the same fields as form values plus the file.
type ChatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

// ChatResponse is the response for answered questions.
type ChatResponse struct {
	Status      string       `json:"status"`
	Message     string       `json:"message,omitempty"`
	DocumentID  string       `json:"document_id,omitempty"`
	Filename    string       `json:"filename,omitempty"`
	Answer      string       `json:"answer"`
	Sources     []rag.Source `json:"sources"`
	SessionID   string       `json:"session_id"`
	ContextSize int          `json:"context_size"`
}

// UploadResponse is the response when a file is ingested without a question.
type UploadResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
}

func (h *ChatHandler) handle(w http.ResponseWriter, r *http.Request) {
	question, sessionID, file, header, err := h.parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("requisição inválida: %v", err))
		return
	}
	if file != nil {
		defer file.Close()
	}

	h.logger.Info("chat request", "session_id", sessionID,
		"has_question", question != "", "has_file", file != nil)

	if file == nil {
		if question == "" {
			writeError(w, http.StatusBadRequest, "Você precisa enviar uma pergunta ou um arquivo")
			return
		}
		h.answer(r.Context(), w, question, sessionID, nil, ChatResponse{})
		return
	}

	docID, status, err := h.ingestUpload(r.Context(), file, header, sessionID)
	if err != nil {
		h.logger.Error("upload failed", "filename", header.Filename, "error", err)
		writeError(w, status, fmt.Sprintf("Erro: %v", err))
		return
	}

	if question == "" {
		writeJSON(w, http.StatusOK, UploadResponse{
			Status: "success",
			Message: fmt.Sprintf(
				"Documento '%s' processado com sucesso! Faça uma pergunta para consultar o conteúdo.",
				header.Filename),
			DocumentID: docID.String(),
			Filename:   header.Filename,
		})
		return
	}

	h.answer(r.Context(), w, question, sessionID, &docID, ChatResponse{
		Message:    fmt.Sprintf("Documento '%s' processado!", header.Filename),
		DocumentID: docID.String(),
		Filename:   header.Filename,
	})
}

// parseRequest accepts either a multipart form (question, session_id, and a
// file in any field) or a plain JSON body. The file and its header are nil
// for JSON requests.
func (h *ChatHandler) parseRequest(r *http.Request) (question, sessionID string, file multipart.File, header *multipart.FileHeader, err error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		if err = r.ParseMultipartForm(maxUploadBytes); err != nil {
			return "", "", nil, nil, fmt.Errorf("parse multipart form: %w", err)
		}
		question = r.FormValue("question")
		sessionID = r.FormValue("session_id")

		// The client may put the file under any field name.
		for _, headers := range r.MultipartForm.File {
			for _, fh := range headers {
				if fh.Filename == "" {
					continue
				}
				f, openErr := fh.Open()
				if openErr != nil {
					return "", "", nil, nil, fmt.Errorf("open upload: %w", openErr)
				}
				file, header = f, fh
				break
			}
			if file != nil {
				break
			}
		}
	} else {
		var req ChatRequest
		if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", "", nil, nil, fmt.Errorf("decode body: %w", err)
		}
		question = req.Question
		sessionID = req.SessionID
	}

	if sessionID == "" {
		sessionID = defaultSessionID
	}
	return question, sessionID, file, header, nil
}

// ingestUpload extracts text from the uploaded file and stores it. The
// returned status is the HTTP status to use when err is non-nil.
func (h *ChatHandler) ingestUpload(ctx context.Context, file multipart.File, header *multipart.FileHeader, sessionID string) (uuid.UUID, int, error) {
	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return uuid.Nil, http.StatusInternalServerError, fmt.Errorf("read upload: %w", err)
	}

	text, err := extract.Text(content, header.Filename)
	switch {
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return uuid.Nil, http.StatusUnsupportedMediaType, err
	case err != nil:
		return uuid.Nil, http.StatusUnprocessableEntity, err
	}

	metadata := map[string]string{
		"filename":     header.Filename,
		"content_type": header.Header.Get("Content-Type"),
		"size":         strconv.FormatInt(header.Size, 10),
	}
	docID, err := h.ingestor.Ingest(ctx, "upload:"+header.Filename, header.Filename, metadata, text, sessionID)
	if err != nil {
		return uuid.Nil, http.StatusInternalServerError, err
	}

	h.logger.Info("document ingested", "document_id", docID, "filename", header.Filename)
	return docID, http.StatusOK, nil
}

// answer runs the RAG pipeline and fills the answer fields of resp.
func (h *ChatHandler) answer(ctx context.Context, w http.ResponseWriter, question, sessionID string, recentDoc *uuid.UUID, resp ChatResponse) {
	ans, err := h.answerer.Answer(ctx, question, sessionID, recentDoc)
	if err != nil {
		h.logger.Error("answer failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp.Status = "success"
	resp.Answer = ans.Text
	resp.Sources = ans.Sources
	resp.SessionID = sessionID
	resp.ContextSize = ans.ContextSize
	if resp.Sources == nil {
		resp.Sources = []rag.Source{}
	}
	writeJSON(w, http.StatusOK, resp)
}
