package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured for the Gemini API
const DefaultGeminiModel = "gemini-2.0-flash"

// contentGenerator is the part of the genai client the provider needs
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiOptions configures the Gemini API provider
type GeminiOptions struct {
	APIKey       string
	Model        string
	Temperature  float64
	MaxToolSteps int
	MaxLogLength int
}

// GeminiProvider invokes models through the Gemini API
type GeminiProvider struct {
	generator contentGenerator
	opts      GeminiOptions
	log       *zap.Logger
}

// NewGeminiProvider creates a genai client for the Gemini API backend
func NewGeminiProvider(ctx context.Context, opts GeminiOptions, log *zap.Logger) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return newGeminiProvider(client.Models, opts, log), nil
}

func newGeminiProvider(generator contentGenerator, opts GeminiOptions, log *zap.Logger) *GeminiProvider {
	if opts.Model == "" {
		opts.Model = DefaultGeminiModel
	}
	if opts.MaxToolSteps <= 0 {
		opts.MaxToolSteps = DefaultMaxToolSteps
	}
	if opts.MaxLogLength <= 0 {
		opts.MaxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &GeminiProvider{generator: generator, opts: opts, log: log}
}

// Invoke sends the prompt and resolves function calls until the model returns text
func (p *GeminiProvider) Invoke(ctx context.Context, req Request) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(p.opts.Temperature)),
	}
	if req.Instructions != "" {
		config.SystemInstruction = genai.NewContentFromText(req.Instructions, genai.RoleUser)
	}
	if decls := geminiDeclarations(req); len(decls) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	contents := genai.Text(req.Prompt)

	for step := 0; step < p.opts.MaxToolSteps; step++ {
		logRequest(p.log, req, step, p.opts.MaxLogLength)

		resp, err := p.generator.GenerateContent(ctx, p.opts.Model, contents, config)
		if err != nil {
			return "", fmt.Errorf("failed to generate content: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return "", fmt.Errorf("no response candidates returned")
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			text := resp.Text()
			logResponse(p.log, text, p.opts.MaxLogLength)
			return text, nil
		}

		contents = append(contents, resp.Candidates[0].Content)
		responses := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			result := req.Tools.Call(ctx, call.Name, call.Args)
			logToolCall(p.log, call.Name, result, p.opts.MaxLogLength)
			responses = append(responses, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       call.ID,
				Name:     call.Name,
				Response: map[string]any{"output": result},
			}})
		}
		contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: responses})
	}

	return "", ErrToolLoop
}

func geminiDeclarations(req Request) []*genai.FunctionDeclaration {
	caps := req.Tools.All()
	decls := make([]*genai.FunctionDeclaration, 0, len(caps))
	for _, c := range caps {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 c.Name,
			Description:          c.Description,
			ParametersJsonSchema: c.Schema,
		})
	}
	return decls
}
