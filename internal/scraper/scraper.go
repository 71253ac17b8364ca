// Package scraper fetches web pages and extracts their main textual
// content for ingestion.
package scraper

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"
)

var (
	// ErrContentTooShort indicates the extracted text is below the minimum
	// useful length, usually an anti-bot block or an empty page.
	ErrContentTooShort = errors.New("extracted text too short")

	// ErrFetchFailed indicates the HTTP fetch itself failed.
	ErrFetchFailed = errors.New("fetch failed")
)

// minContentChars is the minimum extracted text length accepted.
const minContentChars = 100

// defaultHeaders mimic a regular browser request; several sites serve
// stripped or blocked responses to obvious bots.
var defaultHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/122.0 Safari/537.36 RAGBot/1.0",
	"Accept-Language":           "pt-BR,pt;q=0.9,en;q=0.8",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"DNT":                       "1",
	"Upgrade-Insecure-Requests": "1",
}

// Page is a fetched and extracted web page.
type Page struct {
	URL         string
	Title       string
	Text        string
	StatusCode  int
	ContentType string
}

// Scraper fetches pages with browser-like headers and extracts their main
// content, preferring readability extraction with a tag-based fallback.
type Scraper struct {
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Scraper. A nil logger falls back to slog.Default().
func New(timeout time.Duration, logger *slog.Logger) *Scraper {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{timeout: timeout, logger: logger}
}

// Fetch downloads a page and extracts its title and main text.
// customHeaders, when non-nil, replace the default browser-like headers.
// Redirects are followed; the request is bounded by the configured timeout.
func (s *Scraper) Fetch(pageURL string, customHeaders map[string]string) (Page, error) {
	if _, err := url.ParseRequestURI(pageURL); err != nil {
		return Page{}, fmt.Errorf("invalid URL %q: %w", pageURL, err)
	}

	headers := defaultHeaders
	if customHeaders != nil {
		headers = customHeaders
	}

	s.logger.Info("scraping page", "url", pageURL)

	c := colly.NewCollector()
	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		for k, v := range headers {
			r.Headers.Set(k, v)
		}
	})

	var (
		body        []byte
		statusCode  int
		contentType string
		fetchErr    error
	)
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		statusCode = r.StatusCode
		contentType = r.Headers.Get("Content-Type")
	})
	c.OnError(func(r *colly.Response, err error) {
		statusCode = r.StatusCode
		fetchErr = err
	})

	if err := c.Visit(pageURL); err != nil {
		return Page{}, fmt.Errorf("%w: %s: %v", ErrFetchFailed, pageURL, err)
	}
	c.Wait()

	if fetchErr != nil {
		return Page{}, fmt.Errorf("%w: %s (status %d): %v", ErrFetchFailed, pageURL, statusCode, fetchErr)
	}

	s.logger.Debug("page fetched", "url", pageURL, "status", statusCode, "bytes", len(body))

	title, text := s.extract(pageURL, body)
	text = cleanLines(text)

	if len([]rune(text)) < minContentChars {
		return Page{}, fmt.Errorf("%w: %d chars from %s", ErrContentTooShort, len([]rune(text)), pageURL)
	}

	s.logger.Info("page extracted", "url", pageURL, "title", title, "chars", len(text))

	return Page{
		URL:         pageURL,
		Title:       title,
		Text:        text,
		StatusCode:  statusCode,
		ContentType: contentType,
	}, nil
}

// extract pulls the title and main text out of a fetched page. Readability
// handles article-like pages well; pages it cannot parse fall back to a
// goquery pass over semantic tags, then paragraphs.
func (s *Scraper) extract(pageURL string, body []byte) (title, text string) {
	parsed, _ := url.Parse(pageURL)

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err == nil && len(strings.TrimSpace(article.TextContent)) >= minContentChars {
		title = strings.TrimSpace(article.Title)
		text = article.TextContent
	}

	doc, qerr := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if qerr != nil {
		return title, text
	}

	if title == "" {
		title = extractTitle(doc)
	}
	if text == "" {
		s.logger.Debug("readability extraction insufficient, using fallback", "url", pageURL, "error", err)
		text = extractFallback(doc)
	}
	return title, text
}

// extractTitle prefers the first h1, then the document title.
func extractTitle(doc *goquery.Document) string {
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return "Página sem título"
}

// extractFallback strips boilerplate elements and tries semantic containers
// before falling back to paragraphs, then the whole body text.
func extractFallback(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, header, iframe, noscript").Remove()

	for _, tag := range []string{"article", "main", "section"} {
		content := strings.TrimSpace(doc.Find(tag).First().Text())
		if len([]rune(content)) > 200 {
			return content
		}
	}

	var parts []string
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		p := strings.TrimSpace(sel.Text())
		if len([]rune(p)) > 50 {
			parts = append(parts, p)
		}
	})
	if len(parts) > 0 {
		return strings.Join(parts, "\n\n")
	}

	return strings.TrimSpace(doc.Text())
}

// cleanLines trims every line and drops blank ones.
func cleanLines(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
