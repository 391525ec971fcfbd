package ingestion

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	// MinExtractedTextLength is the default minimum of non-whitespace characters for a usable document
	MinExtractedTextLength = 50
	// MaxDocumentChars is the default number of characters kept per batch document
	MaxDocumentChars = 2000
	// BinarySampleSize is the number of bytes to sample for binary detection
	BinarySampleSize = 1000
	// BinaryThreshold is the proportion of non-printable characters that indicates binary data
	BinaryThreshold = 0.3
)

// ExtractText extracts plain text from PDF or TXT content.
// Any failure yields an empty string.
func ExtractText(name string, data []byte) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		if IsBinaryData(string(data)) {
			return ""
		}
		return string(data)
	case ".pdf":
		text, err := extractPDF(data)
		if err != nil {
			return ""
		}
		return text
	default:
		return ""
	}
}

// extractPDF reads the text layer with the pure Go reader and falls back
// to pdftotext when that yields nothing.
func extractPDF(data []byte) (string, error) {
	text, err := readPDF(data)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}

	fallback, ferr := pdftotext(data)
	if ferr != nil {
		if err != nil {
			return "", err
		}
		return "", ferr
	}
	return fallback, nil
}

func readPDF(data []byte) (text string, err error) {
	// The reader panics on some malformed documents.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}
	return buf.String(), nil
}

// pdftotext shells out to poppler when it is installed
func pdftotext(data []byte) (string, error) {
	bin, err := exec.LookPath("pdftotext")
	if err != nil {
		return "", fmt.Errorf("PDF extraction fallback requires 'pdftotext' (install poppler-utils): %w", err)
	}

	cmd := exec.Command(bin, "-layout", "-", "-")
	cmd.Stdin = bytes.NewReader(data)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	return string(output), nil
}

// IsBinaryData checks if content appears to be binary (PDF/ZIP markers)
func IsBinaryData(content string) bool {
	if len(content) == 0 {
		return false
	}

	// Check for PDF magic number
	if strings.HasPrefix(content, "%PDF-") {
		return true
	}

	// Check for ZIP magic number
	if len(content) >= 2 && content[:2] == "PK" {
		return true
	}

	// Check for high proportion of non-printable characters
	sampleSize := min(BinarySampleSize, len(content))
	nonPrintable := 0
	for i := 0; i < sampleSize; i++ {
		ch := content[i]
		if ch < 32 && ch != '\n' && ch != '\r' && ch != '\t' {
			nonPrintable++
		}
	}

	return float64(nonPrintable)/float64(sampleSize) > BinaryThreshold
}
