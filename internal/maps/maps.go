// Package maps answers geographic questions with an agent backed by the maps tool server.
package maps

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fmuoria/agent-studio/internal/agent"
	"github.com/fmuoria/agent-studio/internal/catalog"
	"github.com/fmuoria/agent-studio/internal/config"
	"github.com/fmuoria/agent-studio/internal/llm"
	"github.com/fmuoria/agent-studio/internal/mcptools"
	"github.com/fmuoria/agent-studio/internal/tools"
)

// APIKeyEnv is the variable the tool server reads its credential from
const APIKeyEnv = "GOOGLE_MAPS_API_KEY"

// ExampleQuestion is the sample query shown by the CLI
const ExampleQuestion = "Find the 5 best restaurants near Plaza de Bolívar in Pereira, Colombia"

// toolServer is a running tool server session
type toolServer interface {
	Tools(ctx context.Context) (*tools.Set, error)
	Close() error
}

// launcher starts a tool server
type launcher func(ctx context.Context, spec mcptools.ServerSpec) (toolServer, error)

// Assistant runs maps questions
type Assistant struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	invoker llm.Invoker
	launch  launcher
	log     *zap.Logger
}

// New creates an assistant that spawns the configured tool server per question
func New(cfg *config.Config, cat *catalog.Catalog, invoker llm.Invoker, version string, log *zap.Logger) *Assistant {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assistant{
		cfg:     cfg,
		catalog: cat,
		invoker: invoker,
		log:     log,
		launch: func(ctx context.Context, spec mcptools.ServerSpec) (toolServer, error) {
			return mcptools.Launch(ctx, spec, version, log)
		},
	}
}

// CheckCredentials verifies that both the model and the tool server can authenticate
func CheckCredentials(cfg *config.Config) (string, error) {
	if err := cfg.RequireLLMCredentials(); err != nil {
		return "", err
	}
	return cfg.MapsAPIKey()
}

// Run answers question. The tool server lives for the duration of the call.
func (a *Assistant) Run(ctx context.Context, question string) (answer string, err error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("%w: question is required", agent.ErrInvalidRequest)
	}
	key, err := CheckCredentials(a.cfg)
	if err != nil {
		return "", err
	}

	server, err := a.launch(ctx, mcptools.ServerSpec{
		Command: a.cfg.Maps.Command,
		Args:    a.cfg.Maps.Args,
		Env:     []string{APIKeyEnv + "=" + key},
	})
	if err != nil {
		return "", fmt.Errorf("failed to start maps tool server: %w", err)
	}
	defer func() {
		if cerr := server.Close(); cerr != nil {
			a.log.Warn("maps tool server did not close cleanly", zap.Error(cerr))
		}
	}()

	set, err := server.Tools(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list maps tools: %w", err)
	}
	a.log.Info("maps tools ready", zap.Strings("tools", set.Names()))

	runner, err := a.catalog.Build(catalog.Maps, a.invoker, set)
	if err != nil {
		return "", err
	}
	answer, err = runner.Run(ctx, question)
	if err != nil {
		return "", &agent.UpstreamError{Op: "maps question", Err: err}
	}
	return answer, nil
}
