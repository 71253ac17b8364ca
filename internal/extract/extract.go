// Package extract converts uploaded files into plain text for chunking.
package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"golang.org/x/text/encoding/charmap"
)

var (
	// ErrUnsupportedFormat indicates the file extension is not handled.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrEmptyFile indicates the file produced no usable text.
	ErrEmptyFile = errors.New("document contains no text")
)

// Text extracts plain text from an uploaded file based on its extension.
// Plain-text formats pass through, CSV is rendered as readable rows, and
// HTML goes through main-content extraction.
func Text(content []byte, filename string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))

	var (
		text string
		err  error
	)
	switch ext {
	case "txt", "md", "markdown", "log":
		text = decode(content)
	case "json":
		text = decode(content)
	case "csv":
		text, err = fromCSV(content)
	case "html", "htm":
		text, err = fromHTML(content)
	default:
		return "", fmt.Errorf("%w: .%s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", filename, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyFile, filename)
	}
	return text, nil
}

// decode interprets bytes as UTF-8, falling back to Latin-1 when the
// content is not valid UTF-8. Uploads from Windows tools often arrive in
// a legacy encoding.
func decode(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(content)
	if err != nil {
		return string(content)
	}
	return string(decoded)
}

// fromCSV renders CSV rows as pipe-separated lines so table structure
// survives chunking.
func fromCSV(content []byte) (string, error) {
	reader := csv.NewReader(strings.NewReader(decode(content)))
	reader.FieldsPerRecord = -1

	var lines []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse csv: %w", err)
		}
		for i, field := range record {
			record[i] = strings.TrimSpace(field)
		}
		lines = append(lines, strings.Join(record, " | "))
	}
	return strings.Join(lines, "\n"), nil
}

// fromHTML extracts the main content from an HTML upload, stripping
// boilerplate the same way scraped pages are handled.
func fromHTML(content []byte) (string, error) {
	base, _ := url.Parse("file:///upload")
	article, err := readability.FromReader(bytes.NewReader(content), base)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return article.TextContent, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, nav, footer, header, iframe, noscript").Remove()
	return doc.Text(), nil
}
