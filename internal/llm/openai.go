package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultOpenAIBaseURL is used when no base URL is configured
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// Message is one entry of an OpenAI-compatible conversation
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a function invocation requested by the model
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the tool name and its JSON-encoded arguments
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolSpec advertises one capability to the model
type ToolSpec struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

// FunctionSpec describes a callable function
type FunctionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// ChatRequest is an OpenAI-compatible chat completion request
type ChatRequest struct {
	Model       string     `json:"model"`
	Messages    []Message  `json:"messages"`
	Tools       []ToolSpec `json:"tools,omitempty"`
	Temperature float64    `json:"temperature"`
}

// ChatResponse is an OpenAI-compatible chat completion response
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is a single completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage reports token consumption
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// OpenAIOptions configures an OpenAI-compatible provider
type OpenAIOptions struct {
	BaseURL      string
	APIKey       string
	Model        string
	Temperature  float64
	MaxToolSteps int
	MaxLogLength int
	HTTPClient   *http.Client
}

// OpenAIProvider talks to any endpoint implementing /chat/completions
type OpenAIProvider struct {
	httpClient *http.Client
	opts       OpenAIOptions
	log        *zap.Logger
}

// NewOpenAIProvider creates the provider. A nil HTTP client gets a default with a long timeout.
func NewOpenAIProvider(opts OpenAIOptions, log *zap.Logger) *OpenAIProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultOpenAIBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.MaxToolSteps <= 0 {
		opts.MaxToolSteps = DefaultMaxToolSteps
	}
	if opts.MaxLogLength <= 0 {
		opts.MaxLogLength = defaultMaxLogLength
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OpenAIProvider{httpClient: client, opts: opts, log: log}
}

// Invoke runs the conversation, executing requested tools until the model answers in text
func (p *OpenAIProvider) Invoke(ctx context.Context, req Request) (string, error) {
	messages := make([]Message, 0, 4)
	if req.Instructions != "" {
		messages = append(messages, Message{Role: "system", Content: req.Instructions})
	}
	messages = append(messages, Message{Role: "user", Content: req.Prompt})

	specs := toolSpecs(req)

	for step := 0; step < p.opts.MaxToolSteps; step++ {
		logRequest(p.log, req, step, p.opts.MaxLogLength)

		resp, err := p.chat(ctx, ChatRequest{
			Model:       p.opts.Model,
			Messages:    messages,
			Tools:       specs,
			Temperature: p.opts.Temperature,
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("no choices in response")
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			logResponse(p.log, msg.Content, p.opts.MaxLogLength)
			return msg.Content, nil
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			result := p.callTool(ctx, req, call)
			messages = append(messages, Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
				Name:       call.Function.Name,
			})
		}
	}

	return "", ErrToolLoop
}

func (p *OpenAIProvider) callTool(ctx context.Context, req Request, call ToolCall) string {
	args := map[string]any{}
	if strings.TrimSpace(call.Function.Arguments) != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return errorJSON(fmt.Errorf("invalid arguments for %s: %w", call.Function.Name, err))
		}
	}
	result := req.Tools.Call(ctx, call.Function.Name, args)
	logToolCall(p.log, call.Function.Name, result, p.opts.MaxLogLength)
	return result
}

func (p *OpenAIProvider) chat(ctx context.Context, chatReq ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.opts.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.opts.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.opts.APIKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(data, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	p.log.Debug("llm usage",
		zap.Int("prompt_tokens", chatResp.Usage.PromptTokens),
		zap.Int("completion_tokens", chatResp.Usage.CompletionTokens),
	)
	return &chatResp, nil
}

func toolSpecs(req Request) []ToolSpec {
	caps := req.Tools.All()
	if len(caps) == 0 {
		return nil
	}
	specs := make([]ToolSpec, 0, len(caps))
	for _, c := range caps {
		specs = append(specs, ToolSpec{
			Type: "function",
			Function: FunctionSpec{
				Name:        c.Name,
				Description: c.Description,
				Parameters:  c.Schema,
			},
		})
	}
	return specs
}

func errorJSON(err error) string {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(data)
}
