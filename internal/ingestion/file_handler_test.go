package ingestion

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func spoolFiles(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read spool dir: %v", err)
	}
	return files
}

func TestNewFileHandler(t *testing.T) {
	fh := NewFileHandler("test_spool", 1024, nil)
	if fh == nil {
		t.Fatal("Expected non-nil FileHandler")
	}

	if fh.spoolDir != "test_spool" {
		t.Errorf("Expected spoolDir 'test_spool', got '%s'", fh.spoolDir)
	}
	if fh.log == nil {
		t.Error("Expected a no-op logger when none is given")
	}
}

func TestWithSpooledBundle(t *testing.T) {
	tmpDir := t.TempDir()
	fh := NewFileHandler(tmpDir, 0, nil)

	data := buildZip(t, zipFile{name: "ana.pdf", body: "Ana"}, zipFile{name: "notes.txt", body: "x"})

	var names []string
	err := fh.WithSpooledBundle(bytes.NewReader(data), func(zr *zip.Reader) error {
		if len(spoolFiles(t, tmpDir)) != 1 {
			t.Errorf("Expected the bundle to be spooled while fn runs")
		}
		entries, _ := ExtractZip(zr, DefaultOptions(), nil)
		for _, e := range entries {
			names = append(names, e.Name)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithSpooledBundle failed: %v", err)
	}

	if len(names) != 1 || names[0] != "ana.pdf" {
		t.Errorf("Expected [ana.pdf], got %v", names)
	}
	if left := spoolFiles(t, tmpDir); len(left) != 0 {
		t.Errorf("Expected spool dir to be empty, found %d files", len(left))
	}
}

func TestWithSpooledBundle_CleansUpOnFailure(t *testing.T) {
	tests := []struct {
		name     string
		content  []byte
		maxBytes int64
		fnErr    error
		wantErr  string
	}{
		{
			name:    "callback error",
			content: nil,
			fnErr:   errors.New("entry read failed"),
			wantErr: "entry read failed",
		},
		{
			name:    "not a zip",
			content: []byte("plain text upload"),
			wantErr: "failed to open bundle",
		},
		{
			name:     "too large",
			content:  bytes.Repeat([]byte("x"), 64),
			maxBytes: 16,
			wantErr:  "exceeds 16 bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			fh := NewFileHandler(tmpDir, tt.maxBytes, nil)

			content := tt.content
			if content == nil {
				content = buildZip(t, zipFile{name: "ana.pdf", body: "Ana"})
			}

			err := fh.WithSpooledBundle(bytes.NewReader(content), func(*zip.Reader) error {
				return tt.fnErr
			})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
			if left := spoolFiles(t, tmpDir); len(left) != 0 {
				t.Errorf("Expected spool dir to be empty, found %d files", len(left))
			}
		})
	}
}

func TestWithSpooledBundle_CleansUpOnPanic(t *testing.T) {
	tmpDir := t.TempDir()
	fh := NewFileHandler(tmpDir, 0, nil)
	data := buildZip(t, zipFile{name: "ana.pdf", body: "Ana"})

	func() {
		defer func() {
			if recover() == nil {
				t.Errorf("Expected panic to propagate")
			}
		}()
		_ = fh.WithSpooledBundle(bytes.NewReader(data), func(*zip.Reader) error {
			panic("boom")
		})
	}()

	if left := spoolFiles(t, tmpDir); len(left) != 0 {
		t.Errorf("Expected spool dir to be empty after panic, found %d files", len(left))
	}
}
