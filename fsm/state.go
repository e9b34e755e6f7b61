package fsm

import (
	"slices"
	"weak"
)

// StateOption configures a BaseState.
type StateOption func(*BaseState)

// OnEnter sets a hook run after the elapsed time has been reset.
func OnEnter(fn func(prev State)) StateOption {
	return func(s *BaseState) {
		s.onEnter = fn
	}
}

// OnExit sets a hook run when the state is left.
func OnExit(fn func(next State)) StateOption {
	return func(s *BaseState) {
		s.onExit = fn
	}
}

// OnUpdate sets a hook run after the elapsed time has been advanced.
func OnUpdate(fn func(deltaTime float64)) StateOption {
	return func(s *BaseState) {
		s.onUpdate = fn
	}
}

// BaseState is the default State implementation. Types that embed it and
// override Enter or Update should call through to keep Time accurate.
type BaseState struct {
	name        string
	time        float64
	transitions []Transition
	owner       weak.Pointer[Machine]

	onEnter  func(prev State)
	onExit   func(next State)
	onUpdate func(deltaTime float64)
}

var _ State = (*BaseState)(nil)

// NewState creates a state with the given name.
func NewState(name string, opts ...StateOption) *BaseState {
	s := &BaseState{name: name}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *BaseState) Name() string {
	return s.name
}

func (s *BaseState) Time() float64 {
	return s.time
}

func (s *BaseState) Enter(prev State) {
	s.time = 0

	if s.onEnter != nil {
		s.onEnter(prev)
	}
}

func (s *BaseState) Exit(next State) {
	if s.onExit != nil {
		s.onExit(next)
	}
}

func (s *BaseState) Update(deltaTime float64) {
	s.time += deltaTime

	if s.onUpdate != nil {
		s.onUpdate(deltaTime)
	}
}

// Transitions returns the outgoing transitions in insertion order. The slice
// is shared with the state and must not be modified.
func (s *BaseState) Transitions() []Transition {
	return s.transitions
}

func (s *BaseState) AddTransition(t Transition) {
	if t == nil {
		return
	}

	s.transitions = append(s.transitions, t)
}

// RemoveTransition removes the first occurrence of t.
func (s *BaseState) RemoveTransition(t Transition) {
	idx := slices.Index(s.transitions, t)
	if idx < 0 {
		return
	}

	s.transitions = slices.Delete(s.transitions, idx, idx+1)
}

func (s *BaseState) Machine() *Machine {
	return s.owner.Value()
}

func (s *BaseState) SetMachine(m *Machine) {
	s.owner = weak.Make(m)
}
