package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFLoader extracts text from PDF files using pdfcpu. Content streams
// are extracted per page into a scratch directory and concatenated in
// page order. Scanned PDFs without a text layer yield empty text; the
// registry's image-text fallback covers those when an OCR loader is
// registered.
type PDFLoader struct {
	conf *model.Configuration
}

var _ Loader = (*PDFLoader)(nil)

// NewPDFLoader creates a PDF loader.
func NewPDFLoader() *PDFLoader {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFLoader{conf: conf}
}

// Extract returns the text content of all pages.
func (l *PDFLoader) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF: %w", err)
	}
	pageCount := pdfCtx.PageCount
	if pageCount == 0 {
		return "", nil
	}
	if pdfCtx.Encrypt != nil {
		return "", fmt.Errorf("PDF is encrypted")
	}

	outDir, err := os.MkdirTemp("", "localsearch-pdf-*")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(path, outDir, nil, l.conf); err != nil {
		return "", fmt.Errorf("failed to extract PDF content: %w", err)
	}

	// pdfcpu writes one content file per page; read them back in page
	// order so chunk offsets stay stable across runs.
	pageTexts := make(map[int]string)
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(entry.Name(), "Content_page_%d", &pageNum); err != nil {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err != nil {
			continue
		}
		pageTexts[pageNum] = string(content)
	}

	var sb strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		text := strings.TrimSpace(pageTexts[pageNum])
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

// Supports reports the extensions handled by this loader.
func (l *PDFLoader) Supports(ext string) bool {
	return ext == ".pdf"
}
