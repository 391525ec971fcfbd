package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"AGENT_STUDIO_LLM_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "GOOGLE_CLOUD_PROJECT", "GOOGLE_CLOUD_LOCATION", "GOOGLE_MAPS_API_KEY"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearCredentialEnv(t)

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 8, cfg.LLM.MaxToolSteps)
	assert.Equal(t, 50, cfg.HR.MinContentChars)
	assert.Equal(t, 30*time.Minute, cfg.Server.SessionTTL)
	assert.Equal(t, 2000, cfg.HR.MaxDocumentChars)
	assert.Equal(t, 2500, cfg.HR.MaxSingleCVChars)
	assert.Equal(t, int64(10<<20), cfg.HR.MaxEntryBytes)
	assert.Equal(t, 75, cfg.HR.Fallback.Score)
	assert.Equal(t, "Candidato", cfg.HR.Fallback.NamePrefix)
	assert.Equal(t, "Analizado", cfg.HR.Fallback.Recommendation)
	assert.Equal(t, "npx", cfg.Maps.Command)
	assert.Equal(t, []string{"-y", "@modelcontextprotocol/server-google-maps"}, cfg.Maps.Args)
	assert.Equal(t, 120*time.Second, cfg.Server.RequestTimeout)
}

func TestLoadFromFile(t *testing.T) {
	clearCredentialEnv(t)

	path := filepath.Join(t.TempDir(), "agent-studio.yaml")
	content := `
llm:
  provider: Gemini
  model: gemini-2.5-flash
hr:
  fallback:
    score: 60
    name-prefix: Candidate
server:
  request-timeout: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, 60, cfg.HR.Fallback.Score)
	assert.Equal(t, "Candidate", cfg.HR.Fallback.NamePrefix)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	// Untouched keys keep their defaults
	assert.Equal(t, 50, cfg.HR.MinContentChars)
}

func TestLoadProviderDefaultModel(t *testing.T) {
	clearCredentialEnv(t)

	for provider, model := range map[string]string{
		ProviderOpenAI: "gpt-4o",
		ProviderGemini: "gemini-2.0-flash",
		ProviderVertex: "gemini-1.5-flash",
	} {
		t.Run(provider, func(t *testing.T) {
			v := viper.New()
			v.Set("llm.provider", provider)
			cfg, err := Load(v)
			require.NoError(t, err)
			assert.Equal(t, model, cfg.LLM.Model)
		})
	}
}

func TestValidate(t *testing.T) {
	clearCredentialEnv(t)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "unknown provider", mutate: func(c *Config) { c.LLM.Provider = "llama" }, wantErr: "unsupported llm.provider"},
		{name: "no tool steps", mutate: func(c *Config) { c.LLM.MaxToolSteps = 0 }, wantErr: "max-tool-steps"},
		{name: "negative threshold", mutate: func(c *Config) { c.HR.MinContentChars = -1 }, wantErr: "min-content-chars"},
		{name: "zero threshold", mutate: func(c *Config) { c.HR.MinContentChars = 0 }, wantErr: "min-content-chars"},
		{name: "negative session ttl", mutate: func(c *Config) { c.Server.SessionTTL = -time.Second }, wantErr: "session-ttl"},
		{name: "zero truncation", mutate: func(c *Config) { c.HR.MaxDocumentChars = 0 }, wantErr: "max-document-chars"},
		{name: "zero entry size", mutate: func(c *Config) { c.HR.MaxEntryBytes = 0 }, wantErr: "max-entry-bytes"},
		{name: "inverted score range", mutate: func(c *Config) { c.HR.ScoreMin = 100; c.HR.ScoreMax = 0 }, wantErr: "score-min"},
		{name: "fallback score out of range", mutate: func(c *Config) { c.HR.Fallback.Score = 101 }, wantErr: "hr.fallback.score"},
		{name: "blank fallback name", mutate: func(c *Config) { c.HR.Fallback.NamePrefix = " " }, wantErr: "name-prefix"},
		{name: "blank maps command", mutate: func(c *Config) { c.Maps.Command = "" }, wantErr: "maps.command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(viper.New())
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRequireLLMCredentials(t *testing.T) {
	clearCredentialEnv(t)

	t.Run("missing key", func(t *testing.T) {
		cfg, err := Load(viper.New())
		require.NoError(t, err)

		err = cfg.RequireLLMCredentials()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingCredential))
	})

	t.Run("key from environment", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-test")
		cfg, err := Load(viper.New())
		require.NoError(t, err)

		require.NoError(t, cfg.RequireLLMCredentials())
		key, err := cfg.LLMAPIKey()
		require.NoError(t, err)
		assert.Equal(t, "sk-test", key)
	})

	t.Run("key file wins", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-env")
		path := filepath.Join(t.TempDir(), "key")
		require.NoError(t, os.WriteFile(path, []byte("sk-file\n"), 0o600))

		cfg, err := Load(viper.New())
		require.NoError(t, err)
		cfg.LLM.APIKeyFile = path

		key, err := cfg.LLMAPIKey()
		require.NoError(t, err)
		assert.Equal(t, "sk-file", key)
	})

	t.Run("vendor key follows the provider", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-openai")
		t.Setenv("GEMINI_API_KEY", "gemini-key")

		tests := []struct {
			provider string
			want     string
		}{
			{provider: ProviderOpenAI, want: "sk-openai"},
			{provider: ProviderGemini, want: "gemini-key"},
		}
		for _, tt := range tests {
			v := viper.New()
			v.Set("llm.provider", tt.provider)
			cfg, err := Load(v)
			require.NoError(t, err)

			key, err := cfg.LLMAPIKey()
			require.NoError(t, err)
			assert.Equal(t, tt.want, key, tt.provider)
		}
	})

	t.Run("gemini ignores the openai key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-openai")
		v := viper.New()
		v.Set("llm.provider", ProviderGemini)
		cfg, err := Load(v)
		require.NoError(t, err)

		err = cfg.RequireLLMCredentials()
		assert.ErrorIs(t, err, ErrMissingCredential)
		assert.Contains(t, err.Error(), "GEMINI_API_KEY")

		t.Setenv("GOOGLE_API_KEY", "google-key")
		key, err := cfg.LLMAPIKey()
		require.NoError(t, err)
		assert.Equal(t, "google-key", key)
	})

	t.Run("application variable wins over vendor ones", func(t *testing.T) {
		t.Setenv("AGENT_STUDIO_LLM_API_KEY", "app-key")
		t.Setenv("GEMINI_API_KEY", "gemini-key")
		v := viper.New()
		v.Set("llm.provider", ProviderGemini)
		cfg, err := Load(v)
		require.NoError(t, err)

		key, err := cfg.LLMAPIKey()
		require.NoError(t, err)
		assert.Equal(t, "app-key", key)
	})

	t.Run("vertex needs a project", func(t *testing.T) {
		cfg, err := Load(viper.New())
		require.NoError(t, err)
		cfg.LLM.Provider = ProviderVertex

		err = cfg.RequireLLMCredentials()
		assert.True(t, errors.Is(err, ErrMissingCredential))

		cfg.LLM.Vertex.Project = "my-project"
		assert.NoError(t, cfg.RequireLLMCredentials())
	})
}

func TestMapsAPIKey(t *testing.T) {
	clearCredentialEnv(t)

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	_, err = cfg.MapsAPIKey()
	assert.True(t, errors.Is(err, ErrMissingCredential))

	t.Setenv("GOOGLE_MAPS_API_KEY", "maps-key")
	cfg, err = Load(viper.New())
	require.NoError(t, err)
	key, err := cfg.MapsAPIKey()
	require.NoError(t, err)
	assert.Equal(t, "maps-key", key)
}

func TestConfigDir(t *testing.T) {
	t.Setenv("APPDATA", "")
	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(dir, filepath.Join(".config", AppName)))

	t.Setenv("APPDATA", filepath.Join("C:", "Users", "ana", "AppData"))
	dir, err = ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("C:", "Users", "ana", "AppData", AppName), dir)
}
