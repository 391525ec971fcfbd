package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("AS_TEST_PRIMARY", "")
	t.Setenv("AS_TEST_SECONDARY", " 'from-env' ")
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "key")
	require.NoError(t, os.WriteFile(keyFile, []byte("  from-file \n"), 0o600))
	emptyFile := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(emptyFile, []byte("   "), 0o600))

	tests := []struct {
		name    string
		src     Source
		want    string
		wantErr error
	}{
		{name: "inline value", src: Source{Name: "api key", Value: " inline "}, want: "inline"},
		{name: "file wins over value", src: Source{Name: "api key", Value: "inline", File: keyFile}, want: "from-file"},
		{name: "missing", src: Source{Name: "api key"}, wantErr: ErrNotConfigured},
		{name: "empty file", src: Source{Name: "api key", File: emptyFile}, wantErr: ErrNotConfigured},
		{name: "empty file does not fall through", src: Source{Name: "api key", File: emptyFile, Env: []string{"AS_TEST_SECONDARY"}}, wantErr: ErrNotConfigured},
		{name: "quoted value", src: Source{Name: "api key", Value: `"sk-quoted"`}, want: "sk-quoted"},
		{name: "lone quote is kept", src: Source{Name: "api key", Value: `"sk`}, want: `"sk`},
		{name: "value wins over env", src: Source{Name: "api key", Value: "inline", Env: []string{"AS_TEST_SECONDARY"}}, want: "inline"},
		{name: "first set env", src: Source{Name: "api key", Env: []string{"AS_TEST_PRIMARY", "AS_TEST_SECONDARY"}}, want: "from-env"},
		{name: "env unset", src: Source{Name: "api key", Env: []string{"AS_TEST_PRIMARY"}}, wantErr: ErrNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.src)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadNamesVariables(t *testing.T) {
	t.Setenv("AS_TEST_A", "")
	t.Setenv("AS_TEST_B", "")
	_, err := Load(Source{Name: "llm api key", Env: []string{"AS_TEST_A", "AS_TEST_B"}})
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Contains(t, err.Error(), "AS_TEST_A or AS_TEST_B")
}

func TestLoadUnreadableFile(t *testing.T) {
	_, err := Load(Source{Name: "maps key", File: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading maps key")
}
