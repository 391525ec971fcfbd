// Package tools defines the named capabilities an agent may call while answering.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// Handler executes a tool call with the arguments chosen by the model
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Capability is a named action exposed to the model
type Capability struct {
	Name        string
	Description string
	// Schema is a JSON Schema object describing the arguments
	Schema map[string]any
	Call   Handler
}

// Param describes one argument of a local capability
type Param struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// ObjectSchema builds the JSON Schema object for params
func ObjectSchema(params ...Param) map[string]any {
	properties := make(map[string]any, len(params))
	required := []string{}
	for _, p := range params {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// Set is an ordered collection of capabilities with unique names
type Set struct {
	caps  []Capability
	index map[string]int
}

// NewSet builds a set, rejecting duplicate names
func NewSet(caps ...Capability) (*Set, error) {
	s := &Set{index: make(map[string]int, len(caps))}
	for _, c := range caps {
		if err := s.Add(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends a capability
func (s *Set) Add(c Capability) error {
	if c.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if c.Call == nil {
		return fmt.Errorf("tool %q has no handler", c.Name)
	}
	if _, exists := s.index[c.Name]; exists {
		return fmt.Errorf("duplicate tool %q", c.Name)
	}
	if s.index == nil {
		s.index = make(map[string]int)
	}
	s.index[c.Name] = len(s.caps)
	s.caps = append(s.caps, c)
	return nil
}

// Len returns the number of capabilities; a nil set is empty
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.caps)
}

// All returns the capabilities in insertion order
func (s *Set) All() []Capability {
	if s == nil {
		return nil
	}
	return append([]Capability(nil), s.caps...)
}

// Names lists capability names in insertion order
func (s *Set) Names() []string {
	names := make([]string, 0, s.Len())
	for _, c := range s.All() {
		names = append(names, c.Name)
	}
	return names
}

// Lookup finds a capability by name
func (s *Set) Lookup(name string) (Capability, bool) {
	if s == nil {
		return Capability{}, false
	}
	i, ok := s.index[name]
	if !ok {
		return Capability{}, false
	}
	return s.caps[i], true
}

// Call runs the named capability. Failures are returned as a JSON error
// document so the model can read them and recover.
func (s *Set) Call(ctx context.Context, name string, args map[string]any) string {
	c, ok := s.Lookup(name)
	if !ok {
		return errorResult(fmt.Errorf("unknown tool %q", name))
	}
	out, err := c.Call(ctx, args)
	if err != nil {
		return errorResult(err)
	}
	return out
}

func errorResult(err error) string {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(data)
}

// decodeArgs maps loosely typed model arguments onto a struct
func decodeArgs(args map[string]any, out any) error {
	cfg := &mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return err
	}
	if err := decoder.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func jsonResult(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

var builtins = map[string]func() []Capability{
	"calculator": Calculator,
	"reasoning":  Reasoning,
}

// Builtin returns a fresh instance of the named capability group
func Builtin(name string) ([]Capability, bool) {
	factory, ok := builtins[name]
	if !ok {
		return nil, false
	}
	return factory(), true
}

// BuiltinNames lists the known capability groups, sorted
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
