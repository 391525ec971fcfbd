package llm

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"go.uber.org/zap"
)

const (
	// DefaultVertexModel is used when no model is configured for Vertex AI
	DefaultVertexModel = "gemini-1.5-flash"
	// DefaultVertexLocation is used when no region is configured
	DefaultVertexLocation = "us-central1"
)

// chatSession is the slice of genai.ChatSession the provider uses
type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// chatStarter opens a chat for one invocation
type chatStarter func(instructions string, tools []*genai.Tool) chatSession

// VertexOptions configures the Vertex AI provider
type VertexOptions struct {
	Project      string
	Location     string
	Model        string
	Temperature  float64
	MaxToolSteps int
	MaxLogLength int
}

// VertexProvider wraps the Vertex AI Gemini API
type VertexProvider struct {
	client *genai.Client
	start  chatStarter
	opts   VertexOptions
	log    *zap.Logger
}

// NewVertexProvider creates a Vertex AI client for the configured project
func NewVertexProvider(ctx context.Context, opts VertexOptions, log *zap.Logger) (*VertexProvider, error) {
	if opts.Project == "" {
		return nil, fmt.Errorf("vertex project is not set")
	}
	if opts.Location == "" {
		opts.Location = DefaultVertexLocation
	}
	if opts.Model == "" {
		opts.Model = DefaultVertexModel
	}

	client, err := genai.NewClient(ctx, opts.Project, opts.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	p := newVertexProvider(nil, opts, log)
	p.client = client
	p.start = func(instructions string, tools []*genai.Tool) chatSession {
		model := client.GenerativeModel(opts.Model)
		model.SetTemperature(float32(opts.Temperature))
		model.SetTopK(40)
		model.SetTopP(0.95)
		model.SetMaxOutputTokens(8192)
		if instructions != "" {
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(instructions)}}
		}
		model.Tools = tools
		return model.StartChat()
	}
	return p, nil
}

func newVertexProvider(start chatStarter, opts VertexOptions, log *zap.Logger) *VertexProvider {
	if opts.MaxToolSteps <= 0 {
		opts.MaxToolSteps = DefaultMaxToolSteps
	}
	if opts.MaxLogLength <= 0 {
		opts.MaxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &VertexProvider{start: start, opts: opts, log: log}
}

// Invoke runs a chat turn and answers any function calls the model makes
func (v *VertexProvider) Invoke(ctx context.Context, req Request) (string, error) {
	var tools []*genai.Tool
	if caps := req.Tools.All(); len(caps) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(caps))
		for _, c := range caps {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        c.Name,
				Description: c.Description,
				Parameters:  vertexSchema(c.Schema),
			})
		}
		tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	chat := v.start(req.Instructions, tools)
	parts := []genai.Part{genai.Text(req.Prompt)}

	for step := 0; step < v.opts.MaxToolSteps; step++ {
		logRequest(v.log, req, step, v.opts.MaxLogLength)

		resp, err := chat.SendMessage(ctx, parts...)
		if err != nil {
			return "", fmt.Errorf("failed to generate content: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return "", fmt.Errorf("no response candidates returned")
		}

		var text strings.Builder
		parts = parts[:0]
		for _, part := range resp.Candidates[0].Content.Parts {
			switch p := part.(type) {
			case genai.Text:
				text.WriteString(string(p))
			case genai.FunctionCall:
				result := req.Tools.Call(ctx, p.Name, p.Args)
				logToolCall(v.log, p.Name, result, v.opts.MaxLogLength)
				parts = append(parts, genai.FunctionResponse{
					Name:     p.Name,
					Response: map[string]any{"output": result},
				})
			}
		}

		if len(parts) == 0 {
			logResponse(v.log, text.String(), v.opts.MaxLogLength)
			return text.String(), nil
		}
	}

	return "", ErrToolLoop
}

// Close closes the Vertex AI client
func (v *VertexProvider) Close() error {
	if v.client == nil {
		return nil
	}
	return v.client.Close()
}

var vertexTypes = map[string]genai.Type{
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"boolean": genai.TypeBoolean,
	"array":   genai.TypeArray,
	"object":  genai.TypeObject,
}

// vertexSchema converts a JSON Schema document into the typed Vertex schema.
// Keywords without a Vertex equivalent are dropped.
func vertexSchema(doc map[string]any) *genai.Schema {
	if doc == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := doc["type"].(string); ok {
		s.Type = vertexTypes[t]
	}
	if d, ok := doc["description"].(string); ok {
		s.Description = d
	}
	if items, ok := doc["items"].(map[string]any); ok {
		s.Items = vertexSchema(items)
	}
	if props, ok := doc["properties"].(map[string]any); ok && len(props) > 0 {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if prop, ok := raw.(map[string]any); ok {
				s.Properties[name] = vertexSchema(prop)
			}
		}
	}
	s.Required = stringList(doc["required"])
	s.Enum = stringList(doc["enum"])
	return s
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
