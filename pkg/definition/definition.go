// Package definition describes tickfsm machines in YAML and builds them
// through a registry of state kinds and named guards
package definition

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition is the declarative form of a machine
type Definition struct {
	Name        string                 `yaml:"name"`
	Initial     string                 `yaml:"initial"`
	States      []StateDefinition      `yaml:"states"`
	Transitions []TransitionDefinition `yaml:"transitions"`
}

// StateDefinition declares one state and the kind used to construct it
type StateDefinition struct {
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"`
	Params Params `yaml:"params"`
}

// TransitionDefinition declares one edge. Guard names a guard from the
// registry; empty means always allow.
type TransitionDefinition struct {
	From        string `yaml:"from"`
	To          string `yaml:"to"`
	Guard       string `yaml:"guard"`
	Description string `yaml:"description"`
}

// Load reads and validates a definition from a YAML file
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path) //nolint:gosec // caller chooses the path
	if err != nil {
		return nil, invalid(fmt.Errorf("%w: %w", ErrUnreadableDefinition, err), "file %q", path)
	}

	return Parse(data)
}

// LoadFS reads and validates a definition from fsys, e.g. an embed.FS
func LoadFS(fsys fs.FS, path string) (*Definition, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, invalid(fmt.Errorf("%w: %w", ErrUnreadableDefinition, err), "fs path %q", path)
	}

	return Parse(data)
}

// Parse decodes and validates a YAML definition. Unknown fields are rejected.
func Parse(data []byte) (*Definition, error) {
	var def Definition

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, invalid(ErrNameRequired, "empty document")
		}
		return nil, invalid(fmt.Errorf("%w: %w", ErrMalformedDefinition, err), "yaml")
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}

	return &def, nil
}

// Marshal encodes the definition as YAML
func (d *Definition) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

// Validate checks the definition's structure. Kinds and guard names are
// checked against a registry by Apply.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return invalid(ErrNameRequired, "name")
	}

	if d.Initial == "" {
		return invalid(ErrInitialStateRequired, "initial")
	}

	if len(d.States) == 0 {
		return invalid(ErrStateRequired, "states")
	}

	stateNames := make(map[string]bool)
	for i, state := range d.States {
		if state.Name == "" {
			return invalid(ErrStateNameRequired, "state %d", i)
		}

		if stateNames[state.Name] {
			return invalid(ErrDuplicateStateName, "state %s", state.Name)
		}
		stateNames[state.Name] = true

		if state.Kind == "" {
			return invalid(ErrStateKindRequired, "state %s", state.Name)
		}
	}

	if !stateNames[d.Initial] {
		return invalid(ErrInitialStateNotFound, "initial %s", d.Initial)
	}

	edges := make(map[[2]string]bool)
	for i, transition := range d.Transitions {
		if transition.From == "" {
			return invalid(ErrTransitionFromRequired, "transition %d", i)
		}

		if transition.To == "" {
			return invalid(ErrTransitionToRequired, "transition %d", i)
		}

		if !stateNames[transition.From] {
			return invalid(ErrTransitionFromNotFound, "transition %d: %s", i, transition.From)
		}

		if !stateNames[transition.To] {
			return invalid(ErrTransitionToNotFound, "transition %d: %s", i, transition.To)
		}

		edge := [2]string{transition.From, transition.To}
		if edges[edge] {
			return invalid(ErrDuplicateTransition, "transition %d: %s->%s", i, transition.From, transition.To)
		}
		edges[edge] = true
	}

	return nil
}

// Reachable returns the states reachable from the initial state, in
// declaration order
func (d *Definition) Reachable() []string {
	adjacency := make(map[string][]string)
	for _, t := range d.Transitions {
		adjacency[t.From] = append(adjacency[t.From], t.To)
	}

	seen := map[string]bool{d.Initial: true}
	queue := []string{d.Initial}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[current] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}

	var out []string
	for _, s := range d.States {
		if seen[s.Name] {
			out = append(out, s.Name)
		}
	}
	return out
}
