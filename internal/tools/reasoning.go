package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type scratchpad struct {
	mu      sync.Mutex
	entries []string
}

func (s *scratchpad) append(entry string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return strings.Join(s.entries, "\n\n")
}

type thought struct {
	Title      string  `json:"title"`
	Thought    string  `json:"thought"`
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
}

type analysis struct {
	Title      string  `json:"title"`
	Result     string  `json:"result"`
	Analysis   string  `json:"analysis"`
	NextAction string  `json:"next_action"`
	Confidence float64 `json:"confidence"`
}

// Reasoning returns think and analyze. Both write to one scratchpad that is
// echoed back so the model sees its own chain of steps.
func Reasoning() []Capability {
	pad := &scratchpad{}
	return []Capability{
		{
			Name:        "think",
			Description: "Use as a scratchpad to reason about the problem step by step before answering.",
			Schema: ObjectSchema(
				Param{Name: "title", Type: "string", Description: "Short title of the step", Required: true},
				Param{Name: "thought", Type: "string", Description: "Detailed reasoning for this step", Required: true},
				Param{Name: "action", Type: "string", Description: "What to do next"},
				Param{Name: "confidence", Type: "number", Description: "Confidence between 0 and 1"},
			),
			Call: func(_ context.Context, args map[string]any) (string, error) {
				var in thought
				if err := decodeArgs(args, &in); err != nil {
					return "", err
				}
				if strings.TrimSpace(in.Thought) == "" {
					return "", fmt.Errorf("thought is required")
				}
				var sb strings.Builder
				fmt.Fprintf(&sb, "## Thought: %s\n%s", in.Title, in.Thought)
				if in.Action != "" {
					fmt.Fprintf(&sb, "\nAction: %s", in.Action)
				}
				if in.Confidence > 0 {
					fmt.Fprintf(&sb, "\nConfidence: %.2f", in.Confidence)
				}
				return pad.append(sb.String()), nil
			},
		},
		{
			Name:        "analyze",
			Description: "Analyze the result of a previous step and decide whether to continue or answer.",
			Schema: ObjectSchema(
				Param{Name: "title", Type: "string", Description: "Short title of the analysis", Required: true},
				Param{Name: "result", Type: "string", Description: "Outcome being analyzed", Required: true},
				Param{Name: "analysis", Type: "string", Description: "What the outcome means", Required: true},
				Param{Name: "next_action", Type: "string", Description: "continue, validate or final_answer"},
				Param{Name: "confidence", Type: "number", Description: "Confidence between 0 and 1"},
			),
			Call: func(_ context.Context, args map[string]any) (string, error) {
				var in analysis
				if err := decodeArgs(args, &in); err != nil {
					return "", err
				}
				if strings.TrimSpace(in.Analysis) == "" {
					return "", fmt.Errorf("analysis is required")
				}
				var sb strings.Builder
				fmt.Fprintf(&sb, "## Analysis: %s\nResult: %s\n%s", in.Title, in.Result, in.Analysis)
				if in.NextAction != "" {
					fmt.Fprintf(&sb, "\nNext action: %s", in.NextAction)
				}
				if in.Confidence > 0 {
					fmt.Fprintf(&sb, "\nConfidence: %.2f", in.Confidence)
				}
				return pad.append(sb.String()), nil
			},
		},
	}
}
