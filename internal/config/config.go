package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fmuoria/agent-studio/internal/secrets"
)

// AppName is used for the config file name and the per-user config directory
const AppName = "agent-studio"

// ErrMissingCredential is returned when a credential required to build an agent is absent
var ErrMissingCredential = errors.New("missing credential")

// Supported LLM providers
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderVertex = "vertex"
)

// providerKeyEnv lists, per provider, the vendor environment variables
// consulted when llm.api-key and llm.api-key-file are both empty
var providerKeyEnv = map[string][]string{
	ProviderOpenAI: {"OPENAI_API_KEY"},
	ProviderGemini: {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

var defaultModels = map[string]string{
	ProviderOpenAI: "gpt-4o",
	ProviderGemini: "gemini-2.0-flash",
	ProviderVertex: "gemini-1.5-flash",
}

// Config holds application configuration
type Config struct {
	LLM    LLMConfig    `mapstructure:"llm"`
	HR     HRConfig     `mapstructure:"hr"`
	Maps   MapsConfig   `mapstructure:"maps"`
	Server ServerConfig `mapstructure:"server"`
	Gmail  GmailConfig  `mapstructure:"gmail"`
}

// LLMConfig selects and parameterizes the chat completion backend
type LLMConfig struct {
	Provider     string       `mapstructure:"provider"`
	Model        string       `mapstructure:"model"`
	BaseURL      string       `mapstructure:"base-url"`
	APIKey       string       `mapstructure:"api-key"`
	APIKeyFile   string       `mapstructure:"api-key-file"`
	Temperature  float64      `mapstructure:"temperature"`
	MaxToolSteps int          `mapstructure:"max-tool-steps"`
	MaxLogLength int          `mapstructure:"max-log-length"`
	Vertex       VertexConfig `mapstructure:"vertex"`
}

// VertexConfig holds Google Cloud settings for the vertex provider
type VertexConfig struct {
	Project  string `mapstructure:"project"`
	Location string `mapstructure:"location"`
}

// HRConfig holds the CV screening thresholds and fallback values
type HRConfig struct {
	MinContentChars  int            `mapstructure:"min-content-chars"`
	MaxDocumentChars int            `mapstructure:"max-document-chars"`
	MaxSingleCVChars int            `mapstructure:"max-single-cv-chars"`
	MaxEntryBytes    int64          `mapstructure:"max-entry-bytes"`
	ScoreMin         int            `mapstructure:"score-min"`
	ScoreMax         int            `mapstructure:"score-max"`
	Fallback         FallbackConfig `mapstructure:"fallback"`
}

// FallbackConfig describes the placeholder records used when a reply cannot be parsed
type FallbackConfig struct {
	Score          int    `mapstructure:"score"`
	NamePrefix     string `mapstructure:"name-prefix"`
	Recommendation string `mapstructure:"recommendation"`
}

// MapsConfig describes how to spawn the maps tool server
type MapsConfig struct {
	Command    string   `mapstructure:"command"`
	Args       []string `mapstructure:"args"`
	APIKey     string   `mapstructure:"api-key"`
	APIKeyFile string   `mapstructure:"api-key-file"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Listen         string        `mapstructure:"listen"`
	MaxUploadBytes int64         `mapstructure:"max-upload-bytes"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	SessionTTL     time.Duration `mapstructure:"session-ttl"`
}

// GmailConfig points at the OAuth client and token files used for Gmail ingestion
type GmailConfig struct {
	CredentialsFile string `mapstructure:"credentials-file"`
	TokenFile       string `mapstructure:"token-file"`
}

// SetDefaults registers default values and environment bindings on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.base-url", "https://api.openai.com/v1")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max-tool-steps", 8)
	v.SetDefault("llm.max-log-length", 200)
	v.SetDefault("llm.vertex.location", "us-central1")

	v.SetDefault("hr.min-content-chars", 50)
	v.SetDefault("hr.max-document-chars", 2000)
	v.SetDefault("hr.max-single-cv-chars", 2500)
	v.SetDefault("hr.max-entry-bytes", 10<<20)
	v.SetDefault("hr.score-min", 0)
	v.SetDefault("hr.score-max", 100)
	v.SetDefault("hr.fallback.score", 75)
	v.SetDefault("hr.fallback.name-prefix", "Candidato")
	v.SetDefault("hr.fallback.recommendation", "Analizado")

	v.SetDefault("maps.command", "npx")
	v.SetDefault("maps.args", []string{"-y", "@modelcontextprotocol/server-google-maps"})

	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.max-upload-bytes", 32<<20)
	v.SetDefault("server.request-timeout", 120*time.Second)
	v.SetDefault("server.session-ttl", 30*time.Minute)

	v.SetDefault("gmail.credentials-file", "credentials.json")
	v.SetDefault("gmail.token-file", "token.json")

	// Errors are impossible here: BindEnv only fails without a key.
	_ = v.BindEnv("llm.api-key", "AGENT_STUDIO_LLM_API_KEY")
	_ = v.BindEnv("llm.vertex.project", "GOOGLE_CLOUD_PROJECT")
	_ = v.BindEnv("llm.vertex.location", "GOOGLE_CLOUD_LOCATION")
	_ = v.BindEnv("maps.api-key", "GOOGLE_MAPS_API_KEY")
}

// ConfigDir returns the per-user configuration directory.
// On Windows: %APPDATA%/agent-studio
// On Unix: ~/.config/agent-studio
func ConfigDir() (string, error) {
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, AppName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", AppName), nil
}

// Load reads configuration from v, which already has its file and flags attached
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if strings.TrimSpace(cfg.LLM.Model) == "" {
		cfg.LLM.Model = defaultModels[cfg.LLM.Provider]
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderVertex:
	default:
		return fmt.Errorf("unsupported llm.provider %q", c.LLM.Provider)
	}

	if c.LLM.MaxToolSteps <= 0 {
		return fmt.Errorf("llm.max-tool-steps must be positive")
	}

	if c.HR.MinContentChars <= 0 || c.HR.MaxDocumentChars <= 0 || c.HR.MaxSingleCVChars <= 0 {
		return fmt.Errorf("hr.min-content-chars, hr.max-document-chars and hr.max-single-cv-chars must be positive")
	}

	if c.Server.SessionTTL < 0 {
		return fmt.Errorf("server.session-ttl must not be negative")
	}

	if c.HR.MaxEntryBytes <= 0 {
		return fmt.Errorf("hr.max-entry-bytes must be positive")
	}

	if c.HR.ScoreMin >= c.HR.ScoreMax {
		return fmt.Errorf("hr.score-min must be lower than hr.score-max")
	}

	if c.HR.Fallback.Score < c.HR.ScoreMin || c.HR.Fallback.Score > c.HR.ScoreMax {
		return fmt.Errorf("hr.fallback.score %d is outside [%d, %d]", c.HR.Fallback.Score, c.HR.ScoreMin, c.HR.ScoreMax)
	}

	if strings.TrimSpace(c.HR.Fallback.NamePrefix) == "" {
		return fmt.Errorf("hr.fallback.name-prefix is required")
	}

	if strings.TrimSpace(c.Maps.Command) == "" {
		return fmt.Errorf("maps.command is required")
	}

	return nil
}

// LLMAPIKey resolves the chat completion credential. Vendor variables are
// only read for the selected provider, so OPENAI_API_KEY never reaches Gemini.
func (c *Config) LLMAPIKey() (string, error) {
	return credential(secrets.Source{
		Name:  "llm api key",
		File:  c.LLM.APIKeyFile,
		Value: c.LLM.APIKey,
		Env:   providerKeyEnv[c.LLM.Provider],
	})
}

// MapsAPIKey resolves the maps tool server credential
func (c *Config) MapsAPIKey() (string, error) {
	return credential(secrets.Source{Name: "google maps api key", Value: c.Maps.APIKey, File: c.Maps.APIKeyFile})
}

// RequireLLMCredentials checks that the selected provider can be constructed
func (c *Config) RequireLLMCredentials() error {
	if c.LLM.Provider == ProviderVertex {
		if strings.TrimSpace(c.LLM.Vertex.Project) == "" {
			return fmt.Errorf("llm.vertex.project (GOOGLE_CLOUD_PROJECT): %w", ErrMissingCredential)
		}
		return nil
	}
	_, err := c.LLMAPIKey()
	return err
}

func credential(src secrets.Source) (string, error) {
	value, err := secrets.Load(src)
	if err != nil {
		if errors.Is(err, secrets.ErrNotConfigured) {
			return "", fmt.Errorf("%w: %w", ErrMissingCredential, err)
		}
		return "", err
	}
	return value, nil
}
