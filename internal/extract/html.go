package extract

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLLoader extracts visible text from HTML documents using goquery.
// Script, style, and boilerplate navigation elements are dropped; the
// document title is prepended so it is searchable.
type HTMLLoader struct{}

var _ Loader = (*HTMLLoader)(nil)

// strippedSelectors are removed before text extraction.
const strippedSelectors = "script, style, noscript, nav, header, footer, aside"

var blankLines = regexp.MustCompile(`\n{3,}`)

// NewHTMLLoader creates an HTML loader.
func NewHTMLLoader() *HTMLLoader {
	return &HTMLLoader{}
}

// Extract parses the file and returns its visible text.
func (l *HTMLLoader) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	doc, err := goquery.NewDocumentFromReader(file)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find(strippedSelectors).Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())

	var sb strings.Builder
	if title != "" {
		sb.WriteString(title)
		sb.WriteString("\n\n")
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}

	// Walk block-level elements so text from adjacent blocks does not
	// run together.
	body.Find("p, h1, h2, h3, h4, h5, h6, li, td, th, pre, blockquote, figcaption").
		Each(func(_ int, sel *goquery.Selection) {
			text := strings.TrimSpace(sel.Text())
			if text != "" {
				sb.WriteString(text)
				sb.WriteString("\n\n")
			}
		})

	text := sb.String()
	if strings.TrimSpace(text) == title || strings.TrimSpace(text) == "" {
		// No block elements matched; fall back to the flattened body text.
		flat := strings.TrimSpace(body.Text())
		if flat != "" {
			text = text + flat
		}
	}

	return strings.TrimSpace(blankLines.ReplaceAllString(text, "\n\n")), nil
}

// Supports reports the extensions handled by this loader.
func (l *HTMLLoader) Supports(ext string) bool {
	return ext == ".html" || ext == ".htm"
}
