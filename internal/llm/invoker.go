package llm

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/fmuoria/agent-studio/internal/config"
	"github.com/fmuoria/agent-studio/internal/logger"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewInvoker builds the provider selected by cfg. The returned closer releases
// provider resources and is always non-nil on success.
func NewInvoker(ctx context.Context, cfg *config.Config, log *zap.Logger) (Invoker, io.Closer, error) {
	if err := cfg.RequireLLMCredentials(); err != nil {
		return nil, nil, err
	}
	log = logger.WithCommonFields(log, cfg.LLM.Provider, cfg.LLM.Model)

	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		key, err := cfg.LLMAPIKey()
		if err != nil {
			return nil, nil, err
		}
		p := NewOpenAIProvider(OpenAIOptions{
			BaseURL:      cfg.LLM.BaseURL,
			APIKey:       key,
			Model:        cfg.LLM.Model,
			Temperature:  cfg.LLM.Temperature,
			MaxToolSteps: cfg.LLM.MaxToolSteps,
			MaxLogLength: cfg.LLM.MaxLogLength,
		}, log)
		return p, nopCloser{}, nil

	case config.ProviderGemini:
		key, err := cfg.LLMAPIKey()
		if err != nil {
			return nil, nil, err
		}
		p, err := NewGeminiProvider(ctx, GeminiOptions{
			APIKey:       key,
			Model:        cfg.LLM.Model,
			Temperature:  cfg.LLM.Temperature,
			MaxToolSteps: cfg.LLM.MaxToolSteps,
			MaxLogLength: cfg.LLM.MaxLogLength,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return p, nopCloser{}, nil

	case config.ProviderVertex:
		p, err := NewVertexProvider(ctx, VertexOptions{
			Project:      cfg.LLM.Vertex.Project,
			Location:     cfg.LLM.Vertex.Location,
			Model:        cfg.LLM.Model,
			Temperature:  cfg.LLM.Temperature,
			MaxToolSteps: cfg.LLM.MaxToolSteps,
			MaxLogLength: cfg.LLM.MaxLogLength,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	}

	return nil, nil, fmt.Errorf("unsupported llm provider %q", cfg.LLM.Provider)
}
