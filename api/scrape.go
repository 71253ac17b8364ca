package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/impar-ai/docchat/internal/log"
	"github.com/impar-ai/docchat/internal/scraper"
)

// scrapeBlockedTip is returned alongside fetch failures; protected sites
// commonly answer automated clients with 403.
const scrapeBlockedTip = "Se você está tendo erro 403/bloqueio, o site pode estar protegido contra scraping automatizado. LinkedIn, por exemplo, bloqueia bots."

// PageFetcher downloads a page and extracts its main content.
type PageFetcher interface {
	Fetch(pageURL string, headers map[string]string) (scraper.Page, error)
}

// ScrapeHandler handles the manual scraping endpoint.
type ScrapeHandler struct {
	fetcher    PageFetcher
	ingestor   Ingestor
	defaultURL string
	logger     log.Logger
}

// NewScrapeHandler creates a scrape handler. defaultURL is used when the
// request does not name a URL.
func NewScrapeHandler(fetcher PageFetcher, ingestor Ingestor, defaultURL string, logger log.Logger) *ScrapeHandler {
	return &ScrapeHandler{fetcher: fetcher, ingestor: ingestor, defaultURL: defaultURL, logger: logger}
}

// RegisterRoutes registers scrape routes on the given mux.
func (h *ScrapeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/scrape", h.handle)
}

// ScrapeRequest is the request body for manual scraping. Headers is a JSON
// object encoded as a string, replacing the default browser-like headers
// when present.
type ScrapeRequest struct {
	URL     string `json:"url"`
	Headers string `json:"headers"`
}

// ScrapeResponse confirms a completed scrape.
type ScrapeResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	DocumentID string `json:"document_id"`
	URL        string `json:"url"`
}

func (h *ScrapeHandler) handle(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("requisição inválida: %v", err))
		return
	}

	pageURL := req.URL
	if pageURL == "" {
		pageURL = h.defaultURL
	}
	if pageURL == "" {
		writeError(w, http.StatusBadRequest, "nenhuma URL fornecida e nenhuma URL padrão configurada")
		return
	}

	var customHeaders map[string]string
	if req.Headers != "" {
		if err := json.Unmarshal([]byte(req.Headers), &customHeaders); err != nil {
			h.logger.Warn("invalid custom headers, using defaults", "error", err)
			customHeaders = nil
		}
	}

	h.logger.Info("manual scrape requested", "url", pageURL)

	page, err := h.fetcher.Fetch(pageURL, customHeaders)
	if err != nil {
		h.logger.Error("scrape failed", "url", pageURL, "error", err)
		status := http.StatusInternalServerError
		resp := ErrorResponse{Status: "error", Message: err.Error()}
		switch {
		case errors.Is(err, scraper.ErrFetchFailed):
			status = http.StatusBadGateway
			resp.Tip = scrapeBlockedTip
		case errors.Is(err, scraper.ErrContentTooShort):
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, resp)
		return
	}

	metadata := map[string]string{
		"url":          page.URL,
		"text_length":  strconv.Itoa(len(page.Text)),
		"status_code":  strconv.Itoa(page.StatusCode),
		"content_type": page.ContentType,
	}
	docID, err := h.ingestor.Ingest(r.Context(), "scrape:"+page.URL, page.Title, metadata, page.Text, "")
	if err != nil {
		h.logger.Error("scrape ingestion failed", "url", pageURL, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info("scrape stored", "url", pageURL, "document_id", docID)

	writeJSON(w, http.StatusOK, ScrapeResponse{
		Status:     "success",
		Message:    "Scraping concluído com sucesso",
		DocumentID: docID.String(),
		URL:        pageURL,
	})
}

// parseRequest accepts either JSON or form-encoded bodies; the original
// clients send multipart forms.
func (h *ScrapeHandler) parseRequest(r *http.Request) (ScrapeRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/json":
		var req ScrapeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return ScrapeRequest{}, fmt.Errorf("decode body: %w", err)
		}
		return req, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			return ScrapeRequest{}, fmt.Errorf("parse multipart form: %w", err)
		}
	default:
		if err := r.ParseForm(); err != nil {
			return ScrapeRequest{}, fmt.Errorf("parse form: %w", err)
		}
	}
	return ScrapeRequest{
		URL:     r.FormValue("url"),
		Headers: r.FormValue("headers"),
	}, nil
}
