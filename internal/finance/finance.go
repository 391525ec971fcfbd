// Package finance answers financial questions with a three-agent team or a single agent.
package finance

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fmuoria/agent-studio/internal/agent"
	"github.com/fmuoria/agent-studio/internal/catalog"
	"github.com/fmuoria/agent-studio/internal/llm"
)

// Mode selects the orchestration
type Mode string

const (
	// ModeTeam runs a researcher, an analyst and a synthesizer under a leader
	ModeTeam Mode = "team"
	// ModeSingle runs one agent holding every tool
	ModeSingle Mode = "single"
)

// ParseMode accepts "team" or "single"; empty means team
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeTeam:
		return ModeTeam, nil
	case ModeSingle:
		return ModeSingle, nil
	}
	return "", fmt.Errorf("%w: unknown finance mode %q", agent.ErrInvalidRequest, s)
}

// Examples are sample queries shown by the CLI
var Examples = []string{
	"Analyze Apple stock and its recent news",
	"Bitcoin: current trends and the ROI of a $1000 investment",
	"Compare Tesla and Ford: financials and news",
	"Bancolombia: complete analysis and economic impact",
	"Microsoft: performance and outlook",
	"Nvidia vs AMD: technical and financial comparison",
}

// Analyst runs finance queries
type Analyst struct {
	catalog *catalog.Catalog
	invoker llm.Invoker
	log     *zap.Logger
}

// New creates a finance analyst
func New(cat *catalog.Catalog, invoker llm.Invoker, log *zap.Logger) *Analyst {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyst{catalog: cat, invoker: invoker, log: log}
}

// Analyze answers query with the selected orchestration
func (a *Analyst) Analyze(ctx context.Context, query string, mode Mode) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("%w: query is required", agent.ErrInvalidRequest)
	}

	profile := catalog.FinanceTeam
	if mode == ModeSingle {
		profile = catalog.FinanceSingle
	}

	runner, err := a.catalog.Build(profile, a.invoker, nil)
	if err != nil {
		return "", err
	}

	a.log.Info("running finance analysis", zap.String("mode", string(mode)))
	answer, err := runner.Run(ctx, query)
	if err != nil {
		a.log.Error("finance analysis failed", zap.Error(err))
		return "", &agent.UpstreamError{Op: "finance analysis", Err: err}
	}
	return answer, nil
}
