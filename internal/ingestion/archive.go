package ingestion

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"go.uber.org/zap"
)

// DocumentExtension is the file extension of entries accepted from a bundle
const DocumentExtension = ".pdf"

// Entry is a raw document taken from a bundle
type Entry struct {
	Name string
	Data []byte
}

// IsDocumentName reports whether name looks like a bundle document
func IsDocumentName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), DocumentExtension)
}

// ExtractArchive reads an in-memory ZIP bundle.
// See ExtractZip for the entry rules.
func ExtractArchive(data []byte, opts Options, log *zap.Logger) ([]Entry, []Extraction, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open bundle: %w", err)
	}
	entries, skipped := ExtractZip(zr, opts, log)
	return entries, skipped, nil
}

// ExtractZip returns every non-directory entry whose name ends in .pdf, in
// archive listing order. Entries are named by their cleaned path inside the archive. Entries that cannot be decompressed or exceed the
// size limit are skipped and reported instead of failing the whole bundle.
func ExtractZip(zr *zip.Reader, opts Options, log *zap.Logger) ([]Entry, []Extraction) {
	if log == nil {
		log = zap.NewNop()
	}
	opts = opts.withDefaults()

	var entries []Entry
	var skipped []Extraction

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		if !IsDocumentName(f.Name) {
			continue
		}

		name := entryName(f.Name)
		data, err := readEntry(f, opts.MaxEntryBytes)
		if err != nil {
			log.Warn("skipping bundle entry", zap.String("entry", f.Name), zap.String("reason", err.Error()))
			skipped = append(skipped, skip(name, err.Error()))
			continue
		}

		entries = append(entries, Entry{Name: name, Data: data})
	}

	log.Debug("bundle extracted", zap.Int("documents", len(entries)), zap.Int("skipped", len(skipped)))
	return entries, skipped
}

// entryName is the cleaned in-archive path of a member. The folder is kept
// so that team-a/cv.pdf and team-b/cv.pdf stay two distinct documents.
func entryName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.TrimLeft(path.Clean("/"+name), "/")
}

func readEntry(f *zip.File, limit int64) ([]byte, error) {
	if limit > 0 && f.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("entry exceeds %d bytes", limit)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open entry: %w", err)
	}
	defer rc.Close()

	// The header size can lie, so bound the read as well.
	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress entry: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("entry exceeds %d bytes", limit)
	}
	return data, nil
}
