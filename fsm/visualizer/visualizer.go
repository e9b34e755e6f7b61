// Package visualizer renders machines as Mermaid state diagrams, either
// from a graph definition or from a live machine.
package visualizer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/amp-labs/amp-fsm/fsm"
	"github.com/amp-labs/amp-fsm/fsm/graph"
)

// Visualizer errors.
var (
	ErrConfigNil      = errors.New("config cannot be nil")
	ErrMachineNil     = errors.New("machine cannot be nil")
	ErrNoInitialState = errors.New("config must have an initial state")
)

const indentUnit = "    "

// GenerateMermaid converts a graph to a Mermaid state diagram.
func GenerateMermaid(config *graph.Config) (string, error) {
	return GenerateMermaidWithOptions(config, DefaultOptions())
}

// GenerateMermaidFromFile loads a graph from a YAML file and renders it.
func GenerateMermaidFromFile(path string) (string, error) {
	config, err := graph.LoadConfig(path)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}

	return GenerateMermaid(config)
}

// GenerateMermaidWithOptions renders a graph with custom options. Nested
// machines are drawn as composite states.
func GenerateMermaidWithOptions(config *graph.Config, opts Options) (string, error) {
	if config == nil {
		return "", ErrConfigNil
	}

	if config.Initial == "" {
		return "", ErrNoInitialState
	}

	d := newDiagram(opts)
	d.writeConfig(config, 1)

	return d.finish(), nil
}

// GenerateMermaidFromMachine renders the registry of a live machine. States
// are listed in natural order; transitions in the order they were added.
func GenerateMermaidFromMachine(m *fsm.Machine, opts Options) (string, error) {
	if m == nil {
		return "", ErrMachineNil
	}

	d := newDiagram(opts)
	d.writeMachine(m, 1)

	return d.finish(), nil
}

type diagram struct {
	opts      Options
	sb        strings.Builder
	highlight map[string]bool
	classes   []string
}

func newDiagram(opts Options) *diagram {
	d := &diagram{
		opts:      opts,
		highlight: make(map[string]bool, len(opts.HighlightPath)),
	}

	for _, state := range opts.HighlightPath {
		d.highlight[state] = true
	}

	d.sb.WriteString("```mermaid\n")
	d.sb.WriteString("stateDiagram-v2\n")

	if opts.Direction != "" {
		d.line(1, "direction "+opts.Direction)
	}

	return d
}

func (d *diagram) line(depth int, text string) {
	d.sb.WriteString(strings.Repeat(indentUnit, depth))
	d.sb.WriteString(text)
	d.sb.WriteString("\n")
}

func (d *diagram) edge(depth int, from, to, label string) {
	if label == "" {
		d.line(depth, fmt.Sprintf("%s --> %s", from, to))

		return
	}

	d.line(depth, fmt.Sprintf("%s --> %s: %s", from, to, label))
}

func (d *diagram) writeConfig(config *graph.Config, depth int) {
	d.edge(depth, "[*]", config.Initial, "")

	byFrom := make(map[string][]graph.TransitionConfig)
	for _, transition := range config.Transitions {
		byFrom[transition.From] = append(byFrom[transition.From], transition)
	}

	for _, state := range config.States {
		if d.highlight[state.Name] {
			d.classes = append(d.classes, fmt.Sprintf("class %s highlighted", state.Name))
		}

		if state.Machine != nil {
			d.line(depth, fmt.Sprintf("state %s {", state.Name))
			d.writeConfig(state.Machine, depth+1)
			d.line(depth, "}")
		} else {
			d.line(depth, state.Name)
		}

		for _, transition := range byFrom[state.Name] {
			d.edge(depth, state.Name, transition.To, d.configLabel(transition))
		}
	}
}

func (d *diagram) configLabel(transition graph.TransitionConfig) string {
	label := transition.TransitionName()

	if !d.opts.ShowConditions {
		return label
	}

	var details []string

	if transition.After > 0 {
		details = append(details, "after "+formatSeconds(transition.After))
	}

	if transition.When != "" {
		details = append(details, "when "+transition.When)
	}

	if transition.Duration > 0 {
		details = append(details, "for "+formatSeconds(transition.Duration))
	}

	if len(details) == 0 {
		return label
	}

	return label + " [" + strings.Join(details, ", ") + "]"
}

func (d *diagram) writeMachine(m *fsm.Machine, depth int) {
	if def := m.Default(); def != nil {
		d.edge(depth, "[*]", def.Name(), "")
	}

	for _, name := range m.Names() {
		state := m.Get(name)

		switch {
		case d.highlight[name]:
			d.classes = append(d.classes, fmt.Sprintf("class %s highlighted", name))
		case d.opts.ShowCurrent && state == m.Current():
			d.classes = append(d.classes, fmt.Sprintf("class %s current", name))
		}

		if nested, ok := state.(*fsm.MachineState); ok {
			d.line(depth, fmt.Sprintf("state %s {", name))
			d.writeMachine(nested.Inner(), depth+1)
			d.line(depth, "}")
		} else {
			d.line(depth, name)
		}

		for _, transition := range state.Transitions() {
			if transition.To() == nil {
				continue
			}

			d.edge(depth, name, transition.To().Name(), transition.Name())
		}
	}
}

func (d *diagram) finish() string {
	if len(d.classes) > 0 {
		d.sb.WriteString("\n")

		for _, class := range d.classes {
			d.line(1, class)
		}
	}

	d.sb.WriteString("\n")
	d.line(1, "classDef current fill:#e1f5ff,stroke:#01579b,stroke-width:2px")
	d.line(1, "classDef highlighted fill:#fff9c4,stroke:#f57f17,stroke-width:3px")
	d.sb.WriteString("```\n")

	return d.sb.String()
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'g', -1, 64) + "s"
}
