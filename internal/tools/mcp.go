package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolSession is the part of an MCP client session used to expose remote tools
type ToolSession interface {
	ListTools(ctx context.Context, params *mcp.ListToolsParams) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)
}

// FromMCP lists the tools of session and wraps each one as a capability
func FromMCP(ctx context.Context, session ToolSession) ([]Capability, error) {
	var caps []Capability
	params := &mcp.ListToolsParams{}
	for {
		res, err := session.ListTools(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("list tools: %w", err)
		}
		for _, t := range res.Tools {
			if t == nil {
				continue
			}
			schema, err := toSchema(t.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("tool %q: %w", t.Name, err)
			}
			caps = append(caps, Capability{
				Name:        t.Name,
				Description: t.Description,
				Schema:      schema,
				Call:        remoteCall(session, t.Name),
			})
		}
		if res.NextCursor == "" {
			return caps, nil
		}
		params = &mcp.ListToolsParams{Cursor: res.NextCursor}
	}
}

func remoteCall(session ToolSession, name string) Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
		if err != nil {
			return "", fmt.Errorf("call %s: %w", name, err)
		}
		text := joinText(res.Content)
		if res.IsError {
			if text == "" {
				text = "tool reported an error"
			}
			return "", errors.New(text)
		}
		return text, nil
	}
}

func joinText(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// toSchema normalizes whatever the client decoded into a plain JSON object
func toSchema(v any) (map[string]any, error) {
	if v == nil {
		return ObjectSchema(), nil
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode input schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode input schema: %w", err)
	}
	return m, nil
}
