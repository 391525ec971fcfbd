package ingestion

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fmuoria/agent-studio/internal/models"
)

// Status tells whether a document made it into the batch
type Status int

const (
	// Extracted documents carry usable text
	Extracted Status = iota
	// Skipped documents carry the reason they were dropped
	Skipped
)

func (s Status) String() string {
	if s == Extracted {
		return "extracted"
	}
	return "skipped"
}

// Extraction is the per-document outcome of ingestion
type Extraction struct {
	Name   string
	Status Status
	Text   string
	Reason string
}

// TextFunc turns raw document bytes into text, returning "" on failure
type TextFunc func(name string, data []byte) string

// Options bounds ingestion
type Options struct {
	// MinContentChars is the non-whitespace minimum before truncation.
	// Zero selects MinExtractedTextLength, a negative value keeps every document.
	MinContentChars int
	// MaxDocumentChars is how many characters of each document are kept
	MaxDocumentChars int
	// MaxEntryBytes caps the decompressed size of a single entry
	MaxEntryBytes int64
	// Text overrides ExtractText
	Text TextFunc
}

// DefaultOptions returns the standard thresholds
func DefaultOptions() Options {
	return Options{
		MinContentChars:  MinExtractedTextLength,
		MaxDocumentChars: MaxDocumentChars,
		MaxEntryBytes:    10 << 20,
		Text:             ExtractText,
	}
}

func (o Options) withDefaults() Options {
	if o.Text == nil {
		o.Text = ExtractText
	}
	if o.MinContentChars == 0 {
		o.MinContentChars = MinExtractedTextLength
	}
	if o.MaxDocumentChars <= 0 {
		o.MaxDocumentChars = MaxDocumentChars
	}
	return o
}

func skip(name, reason string) Extraction {
	return Extraction{Name: name, Status: Skipped, Reason: reason}
}

// ExtractDocuments extracts and filters the text of every entry, keeping entry order
func ExtractDocuments(entries []Entry, opts Options, log *zap.Logger) []Extraction {
	if log == nil {
		log = zap.NewNop()
	}
	opts = opts.withDefaults()

	results := make([]Extraction, 0, len(entries))
	for _, e := range entries {
		text := opts.Text(e.Name, e.Data)
		if count := NonWhitespaceCount(text); count < opts.MinContentChars {
			reason := fmt.Sprintf("only %d non-whitespace characters extracted", count)
			log.Warn("skipping document", zap.String("entry", e.Name), zap.String("reason", reason))
			results = append(results, skip(e.Name, reason))
			continue
		}

		results = append(results, Extraction{
			Name:   e.Name,
			Status: Extracted,
			Text:   Truncate(text, opts.MaxDocumentChars),
		})
	}
	return results
}

// Usable returns the extracted documents in order
func Usable(results []Extraction) []models.Document {
	docs := make([]models.Document, 0, len(results))
	for _, r := range results {
		if r.Status == Extracted {
			docs = append(docs, models.Document{Name: r.Name, Text: r.Text})
		}
	}
	return docs
}

// SkippedNames lists skipped documents as "name: reason"
func SkippedNames(results []Extraction) []string {
	var names []string
	for _, r := range results {
		if r.Status == Skipped {
			names = append(names, r.Name+": "+r.Reason)
		}
	}
	return names
}

// NonWhitespaceCount counts the characters of s that are not whitespace
func NonWhitespaceCount(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// Truncate keeps the first limit characters of s
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
