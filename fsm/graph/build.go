package graph

import (
	"fmt"

	"github.com/amp-labs/amp-fsm/fsm"
	"github.com/amp-labs/amp-fsm/logger"
)

// Condition is a named begin predicate referenced by a transition's when
// clause. from is the transition's source state.
type Condition func(from fsm.State) bool

// Conditions maps when clause names to predicates.
type Conditions map[string]Condition

// Build validates cfg and constructs the machine it describes. Every state,
// the initial one included, is registered with Add. Nested graphs become
// nested machines wrapped with AsState. opts apply to every machine built,
// nested ones included.
//
// The returned machine has not been started.
func Build(cfg *Config, conds Conditions, opts ...fsm.Option) (*fsm.Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := checkConditions(cfg, conds); err != nil {
		return nil, err
	}

	return build(cfg.Name, cfg, conds, opts), nil
}

// MustBuild is like Build but panics on error.
func MustBuild(cfg *Config, conds Conditions, opts ...fsm.Option) *fsm.Machine {
	m, err := Build(cfg, conds, opts...)
	if err != nil {
		panic(err)
	}

	return m
}

func checkConditions(cfg *Config, conds Conditions) error {
	for _, state := range cfg.States {
		if state.Machine != nil {
			if err := checkConditions(state.Machine, conds); err != nil {
				return wrapStateError(state.Name, err)
			}
		}
	}

	for _, transition := range cfg.Transitions {
		if transition.When == "" {
			continue
		}

		if _, ok := conds[transition.When]; !ok {
			return logger.AnnotateError(
				fmt.Errorf("transition %s: %w: %s", transition.TransitionName(), ErrUnknownCondition, transition.When),
				"condition", transition.When)
		}
	}

	return nil
}

func build(name string, cfg *Config, conds Conditions, opts []fsm.Option) *fsm.Machine {
	states := make(map[string]fsm.State, len(cfg.States))

	for _, sc := range cfg.States {
		if sc.Machine == nil {
			states[sc.Name] = fsm.NewState(sc.Name)

			continue
		}

		childName := sc.Machine.Name
		if childName == "" {
			childName = sc.Name
		}

		states[sc.Name] = build(childName, sc.Machine, conds, opts).AsNamedState(sc.Name)
	}

	for _, tc := range cfg.Transitions {
		from := states[tc.From]

		var topts []fsm.TransitionOption

		if tc.After > 0 {
			topts = append(topts, fsm.BeginAfter(tc.After))
		}

		if tc.When != "" {
			cond := conds[tc.When]
			topts = append(topts, fsm.BeginWhen(func() bool { return cond(from) }))
		}

		if tc.After == 0 && tc.When == "" {
			topts = append(topts, fsm.BeginAfter(0))
		}

		topts = append(topts, fsm.Duration(tc.Duration))

		fsm.Link(tc.TransitionName(), from, states[tc.To], topts...)
	}

	m := fsm.New(name, states[cfg.Initial], opts...)

	for _, sc := range cfg.States {
		m.Add(sc.Name, states[sc.Name])
	}

	return m
}
