package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmuoria/agent-studio/internal/llm"
	"github.com/fmuoria/agent-studio/internal/tools"
)

func TestLoadEmbedded(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	for _, name := range []string{HRBatch, HRTeam, HROptimizer, HRInterviewer, HRChat, HROffer, HRLinkedIn, FinanceTeam, FinanceSingle, Maps} {
		_, ok := c.Profile(name)
		assert.True(t, ok, name)
	}

	team, _ := c.Profile(HRTeam)
	require.True(t, team.IsTeam())
	assert.Equal(t, llm.ModeCoordinate, team.Mode)
	require.Len(t, team.Members, 2)
	assert.Equal(t, []string{"reasoning"}, team.Members[0].Tools)
	assert.Equal(t, []string{"calculator"}, team.Members[1].Tools)

	finance, _ := c.Profile(FinanceTeam)
	assert.Len(t, finance.Members, 3)

	offer, _ := c.Profile(HROffer)
	assert.Empty(t, offer.Tools)
	assert.False(t, offer.Markdown)
}

func TestParseRejectsInvalidProfiles(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "unknown tool", yaml: "profiles:\n  - name: a\n    tools: [stock_prices]\n", wantErr: "unknown tool group"},
		{name: "duplicate", yaml: "profiles:\n  - name: a\n  - name: a\n", wantErr: "duplicate profile"},
		{name: "missing name", yaml: "profiles:\n  - instructions: x\n", wantErr: "name is required"},
		{name: "unknown field", yaml: "profiles:\n  - name: a\n    model: gpt\n", wantErr: "failed to parse"},
		{name: "bad mode", yaml: "profiles:\n  - name: t\n    mode: route\n    members:\n      - name: m\n", wantErr: "unknown mode"},
		{name: "mode on agent", yaml: "profiles:\n  - name: a\n    mode: coordinate\n", wantErr: "only valid for teams"},
		{name: "leader with tools", yaml: "profiles:\n  - name: t\n    tools: [calculator]\n    members:\n      - name: m\n", wantErr: "leader has no tools"},
		{name: "nested team", yaml: "profiles:\n  - name: t\n    members:\n      - name: m\n        members:\n          - name: x\n", wantErr: "cannot have members"},
		{name: "bad member tool", yaml: "profiles:\n  - name: t\n    members:\n      - name: m\n        tools: [web]\n", wantErr: "unknown tool group"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuild(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	var requests []llm.Request
	invoker := llm.InvokerFunc(func(_ context.Context, req llm.Request) (string, error) {
		requests = append(requests, req)
		return "ok", nil
	})

	t.Run("agent", func(t *testing.T) {
		requests = nil
		runner, err := c.Build(HRBatch, invoker, nil)
		require.NoError(t, err)
		require.IsType(t, &llm.Agent{}, runner)

		agent := runner.(*llm.Agent)
		assert.Contains(t, agent.Tools.Names(), "think")
		assert.Contains(t, agent.Tools.Names(), "multiply")

		_, err = runner.Run(context.Background(), "task")
		require.NoError(t, err)
		require.Len(t, requests, 1)
		assert.Contains(t, requests[0].Instructions, llm.MarkdownInstruction)
	})

	t.Run("team", func(t *testing.T) {
		requests = nil
		runner, err := c.Build(FinanceTeam, invoker, nil)
		require.NoError(t, err)
		team, ok := runner.(*llm.Team)
		require.True(t, ok)
		assert.Len(t, team.Members, 3)

		_, err = runner.Run(context.Background(), "NVDA vs AMD")
		require.NoError(t, err)
		assert.Len(t, requests, 4, "three members and the leader")
	})

	t.Run("extra tools", func(t *testing.T) {
		geocode := tools.Capability{
			Name: "maps_geocode",
			Call: func(context.Context, map[string]any) (string, error) { return "{}", nil },
		}
		extra, err := tools.NewSet(geocode)
		require.NoError(t, err)

		runner, err := c.Build(Maps, invoker, extra)
		require.NoError(t, err)
		assert.Equal(t, []string{"maps_geocode"}, runner.(*llm.Agent).Tools.Names())
	})

	t.Run("fresh tools per build", func(t *testing.T) {
		a, err := c.Build(HRChat, invoker, nil)
		require.NoError(t, err)
		b, err := c.Build(HRChat, invoker, nil)
		require.NoError(t, err)
		assert.NotSame(t, a.(*llm.Agent).Tools, b.(*llm.Agent).Tools)
	})

	t.Run("unknown profile", func(t *testing.T) {
		_, err := c.Build("nope", invoker, nil)
		assert.ErrorContains(t, err, "unknown profile")
	})
}
