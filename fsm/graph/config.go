package graph

import (
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes a machine: its states, the transitions between them and
// the state that is current after construction. A state may carry its own
// Config, which is built into a nested machine.
type Config struct {
	Name        string             `json:"name"        yaml:"name"`
	Initial     string             `json:"initial"     yaml:"initial"`
	States      []StateConfig      `json:"states"      yaml:"states"`
	Transitions []TransitionConfig `json:"transitions" yaml:"transitions"`
}

// StateConfig describes one state. When Machine is set the state is a nested
// machine whose name defaults to the state's name.
type StateConfig struct {
	Name    string  `json:"name"              yaml:"name"`
	Machine *Config `json:"machine,omitempty" yaml:"machine,omitempty"`
}

// TransitionConfig describes a transition. After and When are combined with
// AND; a transition with neither begins on the first update of its source
// state. Duration is in seconds; zero ends the transition on the tick after
// it begins.
type TransitionConfig struct {
	Name     string  `json:"name"     yaml:"name"`
	From     string  `json:"from"     yaml:"from"`
	To       string  `json:"to"       yaml:"to"`
	After    float64 `json:"after"    yaml:"after"`
	When     string  `json:"when"     yaml:"when"`
	Duration float64 `json:"duration" yaml:"duration"`
}

// TransitionName returns the configured name, or "<from>-><to>".
func (t TransitionConfig) TransitionName() string {
	if t.Name != "" {
		return t.Name
	}

	return t.From + "->" + t.To
}

// LoadConfig reads and validates a graph from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Intentional path-based loading
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file %q: %w", path, err)
	}

	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes parses and validates a graph from YAML bytes.
func LoadConfigFromBytes(data []byte) (*Config, error) {
	var config Config

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadConfigFromFS reads a graph from fsys, typically an embed.FS.
func LoadConfigFromFS(fsys fs.FS, path string) (*Config, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph from FS: %w", err)
	}

	return LoadConfigFromBytes(data)
}

// Validate checks the graph and every nested graph. Condition names are
// checked by Build, which knows the available conditions.
func (c *Config) Validate() error {
	if c.Name == "" {
		return ErrConfigNameRequired
	}

	return c.validate()
}

func (c *Config) validate() error {
	if c.Initial == "" {
		return ErrInitialStateRequired
	}

	if len(c.States) == 0 {
		return ErrStateRequired
	}

	names := make(map[string]bool, len(c.States))

	for _, state := range c.States {
		if state.Name == "" {
			return ErrStateNameRequired
		}

		if names[state.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateStateName, state.Name)
		}

		names[state.Name] = true

		if state.Machine != nil {
			if err := state.Machine.validate(); err != nil {
				return wrapStateError(state.Name, err)
			}
		}
	}

	if !names[c.Initial] {
		return fmt.Errorf("%w: %s", ErrInitialStateNotFound, c.Initial)
	}

	for i, transition := range c.Transitions {
		if !names[transition.From] {
			return fmt.Errorf("transition %d: %w: %s", i, ErrTransitionFromNotFound, transition.From)
		}

		if !names[transition.To] {
			return fmt.Errorf("transition %d: %w: %s", i, ErrTransitionToNotFound, transition.To)
		}

		if transition.After < 0 || transition.Duration < 0 {
			return fmt.Errorf("transition %s: %w", transition.TransitionName(), ErrNegativeDuration)
		}
	}

	return nil
}

// Reachable returns the states reachable from the initial state through
// transitions, the initial state included. Forced switches are not counted.
func (c *Config) Reachable() map[string]bool {
	reachable := map[string]bool{c.Initial: true}

	queue := []string{c.Initial}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, transition := range c.Transitions {
			if transition.From == current && !reachable[transition.To] {
				reachable[transition.To] = true
				queue = append(queue, transition.To)
			}
		}
	}

	return reachable
}
