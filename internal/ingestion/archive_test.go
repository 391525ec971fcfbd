package ingestion

import (
	"archive/zip"
	"bytes"
	"fmt"
	"hash/crc32"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type zipFile struct {
	name string
	body string
}

func buildZip(t *testing.T, files ...zipFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		fw, err := w.Create(f.name)
		require.NoError(t, err)
		if !strings.HasSuffix(f.name, "/") {
			_, err = fw.Write([]byte(f.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// corruptEntry flips the stored CRC of the named entry so reading it fails the checksum
func corruptEntry(t *testing.T, data []byte, name string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		var body bytes.Buffer
		_, err = body.ReadFrom(rc)
		require.NoError(t, err)
		rc.Close()

		header := f.FileHeader
		header.Method = zip.Store
		header.CRC32 = crc32.ChecksumIEEE(body.Bytes())
		header.CompressedSize64 = uint64(body.Len())
		header.UncompressedSize64 = uint64(body.Len())
		if f.Name == name {
			header.CRC32 ^= 0xffffffff
		}
		fw, err := w.CreateRaw(&header)
		require.NoError(t, err)
		_, err = fw.Write(body.Bytes())
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtractArchive_FiltersDocuments(t *testing.T) {
	tests := []struct {
		name      string
		files     []zipFile
		wantNames []string
	}{
		{
			name: "pdfs and other files",
			files: []zipFile{
				{name: "ana.pdf", body: "a"},
				{name: "notes.txt", body: "n"},
				{name: "luis.PDF", body: "l"},
				{name: "photo.jpg", body: "p"},
				{name: "eva.Pdf", body: "e"},
			},
			wantNames: []string{"ana.pdf", "luis.PDF", "eva.Pdf"},
		},
		{
			name: "directories are ignored",
			files: []zipFile{
				{name: "cvs/"},
				{name: "odd.pdf/"},
				{name: "cvs/juan.pdf", body: "j"},
			},
			wantNames: []string{"cvs/juan.pdf"},
		},
		{
			name: "same file name in different folders",
			files: []zipFile{
				{name: "a/cv.pdf", body: "a"},
				{name: "b/cv.pdf", body: "b"},
				{name: "./c/../cv.pdf", body: "c"},
			},
			wantNames: []string{"a/cv.pdf", "b/cv.pdf", "cv.pdf"},
		},
		{
			name:      "no documents",
			files:     []zipFile{{name: "readme.md", body: "r"}},
			wantNames: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, skipped, err := ExtractArchive(buildZip(t, tt.files...), DefaultOptions(), nil)
			require.NoError(t, err)
			assert.Empty(t, skipped)

			var names []string
			for _, e := range entries {
				names = append(names, e.Name)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestEntryName(t *testing.T) {
	tests := map[string]string{
		"cv.pdf":            "cv.pdf",
		"team-a/cv.pdf":     "team-a/cv.pdf",
		"/abs/cv.pdf":       "abs/cv.pdf",
		"../../etc/cv.pdf":  "etc/cv.pdf",
		`win\folder\cv.pdf`: "win/folder/cv.pdf",
	}
	for in, want := range tests {
		assert.Equal(t, want, entryName(in), in)
	}
}

func TestExtractArchive_ManyEntriesKeepOrder(t *testing.T) {
	var files []zipFile
	var want []string
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("cv-%02d.pdf", 19-i)
		files = append(files, zipFile{name: name, body: name}, zipFile{name: fmt.Sprintf("x-%d.doc", i), body: "x"})
		want = append(want, name)
	}

	entries, _, err := ExtractArchive(buildZip(t, files...), DefaultOptions(), nil)
	require.NoError(t, err)
	require.Len(t, entries, len(want))
	for i, e := range entries {
		assert.Equal(t, want[i], e.Name)
		assert.Equal(t, want[i], string(e.Data))
	}
}

func TestExtractArchive_CorruptEntryIsSkipped(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	data := buildZip(t,
		zipFile{name: "ana.pdf", body: "ana"},
		zipFile{name: "broken.pdf", body: "broken"},
		zipFile{name: "luis.pdf", body: "luis"},
	)
	data = corruptEntry(t, data, "broken.pdf")

	entries, skipped, err := ExtractArchive(data, DefaultOptions(), zap.New(core))
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "ana.pdf", entries[0].Name)
	assert.Equal(t, "luis.pdf", entries[1].Name)

	require.Len(t, skipped, 1)
	assert.Equal(t, "broken.pdf", skipped[0].Name)
	assert.Equal(t, Skipped, skipped[0].Status)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "broken.pdf", logs.All()[0].ContextMap()["entry"])
}

func TestExtractArchive_EntrySizeLimit(t *testing.T) {
	data := buildZip(t,
		zipFile{name: "small.pdf", body: "tiny"},
		zipFile{name: "large.pdf", body: strings.Repeat("x", 64)},
	)

	opts := DefaultOptions()
	opts.MaxEntryBytes = 16
	entries, skipped, err := ExtractArchive(data, opts, nil)
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, "small.pdf", entries[0].Name)
	require.Len(t, skipped, 1)
	assert.Contains(t, skipped[0].Reason, "exceeds 16 bytes")
}

func TestExtractArchive_NotAZip(t *testing.T) {
	_, _, err := ExtractArchive([]byte("definitely not a zip"), DefaultOptions(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open bundle")
}
