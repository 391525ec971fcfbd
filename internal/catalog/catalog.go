// Package catalog turns the embedded agent profiles into runnable agents and teams.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fmuoria/agent-studio/internal/llm"
	"github.com/fmuoria/agent-studio/internal/tools"
)

// Profile names used by the application
const (
	HRBatch       = "hr-batch"
	HRTeam        = "hr-team"
	HROptimizer   = "hr-optimizer"
	HRInterviewer = "hr-interviewer"
	HRChat        = "hr-chat"
	HROffer       = "hr-offer"
	HRLinkedIn    = "hr-linkedin"
	FinanceTeam   = "finance-team"
	FinanceSingle = "finance-single"
	Maps          = "maps"
)

//go:embed profiles.yaml
var profilesYAML []byte

// Profile describes an agent, or a team when Members is set
type Profile struct {
	Name         string    `yaml:"name"`
	Instructions string    `yaml:"instructions"`
	Tools        []string  `yaml:"tools"`
	Markdown     bool      `yaml:"markdown"`
	Mode         llm.Mode  `yaml:"mode"`
	Members      []Profile `yaml:"members"`
}

// IsTeam reports whether the profile runs members under a leader
func (p Profile) IsTeam() bool {
	return len(p.Members) > 0
}

type document struct {
	Profiles []Profile `yaml:"profiles"`
}

// Catalog is a validated set of profiles
type Catalog struct {
	profiles map[string]Profile
	names    []string
}

// Load parses the embedded profiles
func Load() (*Catalog, error) {
	return Parse(profilesYAML)
}

// Parse reads profiles from YAML and validates them
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}

	c := &Catalog{profiles: make(map[string]Profile, len(doc.Profiles))}
	for _, p := range doc.Profiles {
		if err := validate(p, false); err != nil {
			return nil, err
		}
		if _, dup := c.profiles[p.Name]; dup {
			return nil, fmt.Errorf("duplicate profile %q", p.Name)
		}
		c.profiles[p.Name] = p
		c.names = append(c.names, p.Name)
	}
	return c, nil
}

func validate(p Profile, member bool) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("profile name is required")
	}
	for _, name := range p.Tools {
		if _, ok := tools.Builtin(name); !ok {
			return fmt.Errorf("profile %q: unknown tool group %q (known: %s)", p.Name, name, strings.Join(tools.BuiltinNames(), ", "))
		}
	}
	if !p.IsTeam() {
		if p.Mode != "" {
			return fmt.Errorf("profile %q: mode is only valid for teams", p.Name)
		}
		return nil
	}

	if member {
		return fmt.Errorf("profile %q: team members cannot have members", p.Name)
	}
	if len(p.Tools) > 0 {
		return fmt.Errorf("profile %q: a team leader has no tools", p.Name)
	}
	switch p.Mode {
	case "", llm.ModeCoordinate, llm.ModeCollaborate:
	default:
		return fmt.Errorf("profile %q: unknown mode %q", p.Name, p.Mode)
	}
	for _, m := range p.Members {
		if err := validate(m, true); err != nil {
			return fmt.Errorf("profile %q: %w", p.Name, err)
		}
	}
	return nil
}

// Names lists the profiles in file order
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Profile returns the named profile
func (c *Catalog) Profile(name string) (Profile, bool) {
	p, ok := c.profiles[name]
	return p, ok
}

// Build creates a runner for the named profile. Every call gets fresh tool
// instances. Extra tools are added to the agent, or to every team member.
func (c *Catalog) Build(name string, invoker llm.Invoker, extra *tools.Set) (llm.Runner, error) {
	p, ok := c.profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q", name)
	}

	if !p.IsTeam() {
		return buildAgent(p, invoker, extra)
	}

	team := &llm.Team{
		Name:         p.Name,
		Instructions: p.Instructions,
		Mode:         p.Mode,
		Markdown:     p.Markdown,
		Invoker:      invoker,
	}
	if team.Mode == "" {
		team.Mode = llm.ModeCoordinate
	}
	for _, m := range p.Members {
		agent, err := buildAgent(m, invoker, extra)
		if err != nil {
			return nil, err
		}
		team.Members = append(team.Members, agent)
	}
	return team, nil
}

func buildAgent(p Profile, invoker llm.Invoker, extra *tools.Set) (*llm.Agent, error) {
	set, err := tools.NewSet()
	if err != nil {
		return nil, err
	}
	for _, group := range p.Tools {
		caps, _ := tools.Builtin(group)
		for _, c := range caps {
			if err := set.Add(c); err != nil {
				return nil, fmt.Errorf("profile %q: %w", p.Name, err)
			}
		}
	}
	for _, c := range extra.All() {
		if err := set.Add(c); err != nil {
			return nil, fmt.Errorf("profile %q: %w", p.Name, err)
		}
	}

	return &llm.Agent{
		Name:         p.Name,
		Instructions: p.Instructions,
		Tools:        set,
		Markdown:     p.Markdown,
		Invoker:      invoker,
	}, nil
}
