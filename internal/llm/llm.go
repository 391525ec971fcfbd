// Package llm holds the agent invoker port, its providers and the agent/team runners built on it.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fmuoria/agent-studio/internal/logger"
	"github.com/fmuoria/agent-studio/internal/tools"
)

// ErrToolLoop is returned when the model keeps requesting tools past the step limit
var ErrToolLoop = errors.New("tool call limit reached without a final answer")

// DefaultMaxToolSteps bounds the tool loop when no limit is configured
const DefaultMaxToolSteps = 8

const defaultMaxLogLength = 200

// Request is one invocation of the model
type Request struct {
	// Instructions become the system message
	Instructions string
	Prompt       string
	// Tools the model may call; nil means none
	Tools *tools.Set
}

// Invoker sends a prompt, with optional capabilities, and returns the final text
type Invoker interface {
	Invoke(ctx context.Context, req Request) (string, error)
}

// InvokerFunc adapts a function to Invoker
type InvokerFunc func(ctx context.Context, req Request) (string, error)

// Invoke calls f
func (f InvokerFunc) Invoke(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Runner answers a prompt, either as a single agent or as a team
type Runner interface {
	Run(ctx context.Context, prompt string) (string, error)
}

// MarkdownInstruction is appended to agents that answer in markdown
const MarkdownInstruction = "Format your answer in markdown."

// Agent binds instructions and tools to an invoker
type Agent struct {
	Name         string
	Instructions string
	Tools        *tools.Set
	Markdown     bool
	Invoker      Invoker
}

// SystemPrompt returns the instructions sent with every run
func (a *Agent) SystemPrompt() string {
	instructions := strings.TrimSpace(a.Instructions)
	if !a.Markdown {
		return instructions
	}
	if instructions == "" {
		return MarkdownInstruction
	}
	return instructions + "\n\n" + MarkdownInstruction
}

// Run invokes the model once with the agent configuration
func (a *Agent) Run(ctx context.Context, prompt string) (string, error) {
	if a.Invoker == nil {
		return "", fmt.Errorf("agent %q has no invoker", a.Name)
	}
	out, err := a.Invoker.Invoke(ctx, Request{
		Instructions: a.SystemPrompt(),
		Prompt:       prompt,
		Tools:        a.Tools,
	})
	if err != nil {
		return "", fmt.Errorf("agent %s: %w", a.Name, err)
	}
	return out, nil
}

// Mode selects how team members see the task
type Mode string

const (
	// ModeCoordinate gives every member the original task
	ModeCoordinate Mode = "coordinate"
	// ModeCollaborate gives each member the contributions made before it
	ModeCollaborate Mode = "collaborate"
)

// Team runs its members one after another and lets a leader write the answer
type Team struct {
	Name         string
	Instructions string
	Members      []*Agent
	Mode         Mode
	Markdown     bool
	Invoker      Invoker
}

type contribution struct {
	member string
	answer string
}

// Run executes the members sequentially, then the leader
func (t *Team) Run(ctx context.Context, prompt string) (string, error) {
	if len(t.Members) == 0 {
		return "", fmt.Errorf("team %q has no members", t.Name)
	}

	contributions := make([]contribution, 0, len(t.Members))
	for _, m := range t.Members {
		task := prompt
		if t.Mode == ModeCollaborate && len(contributions) > 0 {
			task = withContributions(prompt, contributions)
		}
		answer, err := m.Run(ctx, task)
		if err != nil {
			return "", fmt.Errorf("team %s: %w", t.Name, err)
		}
		contributions = append(contributions, contribution{member: m.Name, answer: answer})
	}

	leader := &Agent{
		Name:         t.Name,
		Instructions: t.Instructions,
		Markdown:     t.Markdown,
		Invoker:      t.Invoker,
	}
	return leader.Run(ctx, withContributions(prompt, contributions)+
		"\n\nCombine the contributions above into one final answer to the task.")
}

func withContributions(prompt string, contributions []contribution) string {
	var sb strings.Builder
	sb.WriteString("## TASK\n")
	sb.WriteString(prompt)
	sb.WriteString("\n\n## TEAM CONTRIBUTIONS\n")
	for _, c := range contributions {
		sb.WriteString("### ")
		sb.WriteString(c.member)
		sb.WriteString("\n")
		sb.WriteString(strings.TrimSpace(c.answer))
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// logRequest and logResponse keep provider debug output uniform
func logRequest(log *zap.Logger, req Request, step, maxLen int) {
	log.Debug("llm request",
		zap.Int("step", step),
		zap.Int("prompt_length", utf8.RuneCountInString(req.Prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(req.Prompt, maxLen)),
		zap.Strings("tools", req.Tools.Names()),
	)
}

func logResponse(log *zap.Logger, text string, maxLen int) {
	log.Debug("llm response",
		zap.Int("response_length", utf8.RuneCountInString(text)),
		zap.String("response_preview", logger.TruncateForLog(text, maxLen)),
	)
}

func logToolCall(log *zap.Logger, name, result string, maxLen int) {
	log.Debug("tool call",
		zap.String("tool", name),
		zap.String("result_preview", logger.TruncateForLog(result, maxLen)),
	)
}
