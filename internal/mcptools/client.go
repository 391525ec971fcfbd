// Package mcptools connects to tool servers speaking the Model Context Protocol.
package mcptools

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fmuoria/agent-studio/internal/tools"
)

// ClientName identifies this application to tool servers
const ClientName = "agent-studio"

// ServerSpec describes a tool server started as a child process
type ServerSpec struct {
	Command string
	Args    []string
	// Env is appended to the current environment
	Env []string
}

// Client is a live session with one tool server
type Client struct {
	session *mcp.ClientSession
	log     *zap.Logger
}

// Launch starts the server process and connects to it over stdio.
// The process is stopped by Close.
func Launch(ctx context.Context, spec ServerSpec, version string, log *zap.Logger) (*Client, error) {
	if strings.TrimSpace(spec.Command) == "" {
		return nil, fmt.Errorf("tool server command is required")
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Stderr = os.Stderr

	if log != nil {
		log.Info("starting tool server", zap.String("command", spec.Command), zap.Strings("args", spec.Args))
	}
	return Connect(ctx, &mcp.CommandTransport{Command: cmd}, version, log)
}

// Connect opens a session over an existing transport
func Connect(ctx context.Context, transport mcp.Transport, version string, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}

	client := mcp.NewClient(&mcp.Implementation{Name: ClientName, Version: version}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to tool server: %w", err)
	}
	return &Client{session: session, log: log}, nil
}

// Tools lists the server tools as a capability set
func (c *Client) Tools(ctx context.Context) (*tools.Set, error) {
	caps, err := tools.FromMCP(ctx, c.session)
	if err != nil {
		return nil, err
	}
	set, err := tools.NewSet(caps...)
	if err != nil {
		return nil, err
	}
	c.log.Debug("tool server ready", zap.Strings("tools", set.Names()))
	return set, nil
}

// Close ends the session and stops the server
func (c *Client) Close() error {
	if err := c.session.Close(); err != nil {
		return fmt.Errorf("close tool server: %w", err)
	}
	return nil
}
