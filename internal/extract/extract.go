package extract

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnsupportedType indicates a file extension outside pdf/txt.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrEmptyContent indicates the file produced no usable text.
	ErrEmptyContent = errors.New("document is empty or unreadable")
)

// Text extracts UTF-8 plain text from a file on disk based on its
// original filename extension. Only .pdf and .txt are supported.
func Text(filename, path string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return pdfText(path)
	case ".txt":
		return txtText(path)
	default:
		return "", ErrUnsupportedType
	}
}

func txtText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read txt: %w", err)
	}
	text := normalizeText(string(data))
	if text == "" {
		return "", ErrEmptyContent
	}
	return text, nil
}

func pdfText(path string) (string, error) {
	// Try pdftotext first (better support for complex PDFs)
	text, err := pdfTextWithPdftotext(path)
	if err == nil && text != "" {
		return text, nil
	}
	// Fallback to Go library
	return pdfTextWithGoLib(path)
}

// pdfTextWithPdftotext uses the system pdftotext tool (poppler-utils)
func pdfTextWithPdftotext(path string) (string, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return "", fmt.Errorf("pdftotext not found: %w", err)
	}
	cmd := exec.Command("pdftotext", "-layout", "-enc", "UTF-8", path, "-")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	text := normalizeText(string(output))
	if text == "" {
		return "", ErrEmptyContent
	}
	return text, nil
}

// pdfTextWithGoLib uses the Go PDF library (fallback)
func pdfTextWithGoLib(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()
	totalPages := reader.NumPage()
	var sb strings.Builder
	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// Skip problematic pages instead of failing entirely
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}
	text := normalizeText(sb.String())
	if text == "" {
		return "", ErrEmptyContent
	}
	return text, nil
}

// normalizeText strips BOM, control and zero-width characters, collapses
// runs of spaces within each line, and preserves paragraph breaks.
func normalizeText(text string) string {
	text = strings.TrimPrefix(text, "\uFEFF")
	text = strings.ToValidUTF8(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n':
			sb.WriteRune(r)
		case r == '\u200B', r == '\u2060', r == '\u00AD':
			// zero-width and soft hyphen
		case r == ' ', r == '\t', r == '\u00A0':
			sb.WriteRune(' ')
		case unicode.IsControl(r):
			// drop
		default:
			sb.WriteRune(r)
		}
	}
	lines := strings.Split(sb.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	out := strings.Join(lines, "\n")
	// Collapse runs of 3+ blank lines into a single paragraph break.
	for strings.Contains(out, "\n\n\n") {
		out = strings.ReplaceAll(out, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(out)
}
