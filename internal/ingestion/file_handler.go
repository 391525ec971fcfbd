package ingestion

import (
	"archive/zip"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// FileHandler spools uploaded bundles to a scratch directory while they are read
type FileHandler struct {
	spoolDir string
	maxBytes int64
	log      *zap.Logger
}

// NewFileHandler creates a new file handler. An empty spoolDir uses the OS temp dir.
func NewFileHandler(spoolDir string, maxBytes int64, log *zap.Logger) *FileHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileHandler{
		spoolDir: spoolDir,
		maxBytes: maxBytes,
		log:      log,
	}
}

// WithSpooledBundle copies content to a temporary file, opens it as a ZIP
// and runs fn. The temporary file is removed when WithSpooledBundle returns,
// whether fn succeeds, fails or panics.
func (fh *FileHandler) WithSpooledBundle(content io.Reader, fn func(*zip.Reader) error) (err error) {
	if fh.spoolDir != "" {
		if err := os.MkdirAll(fh.spoolDir, 0o755); err != nil {
			return fmt.Errorf("failed to create spool directory: %w", err)
		}
	}

	file, err := os.CreateTemp(fh.spoolDir, "bundle-*.zip")
	if err != nil {
		return fmt.Errorf("failed to create spool file: %w", err)
	}
	spoolPath := file.Name()
	defer func() {
		file.Close()
		if rmErr := os.Remove(spoolPath); rmErr != nil && !os.IsNotExist(rmErr) {
			fh.log.Warn("failed to remove spool file", zap.String("path", spoolPath), zap.Error(rmErr))
		}
	}()

	src := content
	if fh.maxBytes > 0 {
		src = io.LimitReader(content, fh.maxBytes+1)
	}
	size, err := io.Copy(file, src)
	if err != nil {
		return fmt.Errorf("failed to write spool file: %w", err)
	}
	if fh.maxBytes > 0 && size > fh.maxBytes {
		return fmt.Errorf("bundle exceeds %d bytes", fh.maxBytes)
	}

	zr, err := zip.NewReader(file, size)
	if err != nil {
		return fmt.Errorf("failed to open bundle: %w", err)
	}

	fh.log.Debug("bundle spooled", zap.String("path", spoolPath), zap.Int64("bytes", size))
	return fn(zr)
}
