package fsm

import (
	"facette.io/natsort"
)

// Option configures a Machine.
type Option func(*Machine)

// WithObserver registers an observer for lifecycle notifications.
func WithObserver(o Observer) Option {
	return func(m *Machine) {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
}

// Machine arbitrates a registry of named states. It tracks exactly one
// current state and at most one in-progress transition.
type Machine struct {
	name   string
	time   float64
	states map[string]State

	current State
	def     State

	inTransition bool
	transition   Transition

	observers []Observer
}

// New creates a machine whose default state becomes current immediately.
// The default state is not added to the registry; call Add for that.
func New(name string, defaultState State, opts ...Option) *Machine {
	m := &Machine{
		states: make(map[string]State),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.Reset(name, defaultState)

	return m
}

func (m *Machine) Name() string {
	return m.name
}

// Time returns the seconds accumulated through Update since creation or the
// last time the machine was entered as a nested state.
func (m *Machine) Time() float64 {
	return m.time
}

// Current returns the current state, or nil once the machine is stopped.
func (m *Machine) Current() State {
	return m.current
}

func (m *Machine) Default() State {
	return m.def
}

// SetDefault changes the state used by ResetToDefault without switching.
func (m *Machine) SetDefault(s State) {
	m.def = s
}

func (m *Machine) InTransition() bool {
	return m.inTransition
}

// CurrentTransition returns the in-progress transition, or nil.
func (m *Machine) CurrentTransition() Transition {
	return m.transition
}

// Reset reinitializes the machine's name and default state, making the
// default current. An in-progress transition is cancelled. No Enter or Exit
// is called on states.
func (m *Machine) Reset(name string, defaultState State) {
	m.cancelTransition()

	m.name = name
	m.current = defaultState
	m.def = defaultState

	if defaultState != nil {
		defaultState.SetMachine(m)
	}
}

// ResetToDefault makes the default state current without calling Enter or Exit.
func (m *Machine) ResetToDefault() {
	m.Reset(m.name, m.def)
}

// Start enters the current state with no predecessor. Hosts call it once on
// a top-level machine; nested machines are entered by their parent.
func (m *Machine) Start() {
	if m.current != nil {
		m.current.Enter(nil)
	}
}

// Add registers target under name. An existing entry is never replaced.
func (m *Machine) Add(name string, target State) {
	if target == nil || m.Contains(name) {
		return
	}

	m.states[name] = target
	target.SetMachine(m)
}

// Remove unregisters name unless it is absent or names the current state.
// The current state is matched by its Name and by the registered instance.
func (m *Machine) Remove(name string) {
	if m.current != nil && name == m.current.Name() {
		return
	}

	target, ok := m.states[name]
	if !ok || target == m.current {
		return
	}

	m.release(target)
	delete(m.states, name)
}

// Get returns the state registered under name, or nil.
func (m *Machine) Get(name string) State {
	return m.states[name]
}

func (m *Machine) Contains(name string) bool {
	return m.Get(name) != nil
}

func (m *Machine) Len() int {
	return len(m.states)
}

// Names returns the registered names in natural sort order.
func (m *Machine) Names() []string {
	names := make([]string, 0, len(m.states))
	for name := range m.states {
		names = append(names, name)
	}

	natsort.Sort(names)

	return names
}

// SwitchTo makes target current outside of the transition machinery.
// Switching to a state with the current state's name is a no-op unless
// force is set. An in-progress transition is exited before switching.
func (m *Machine) SwitchTo(target State, force bool) {
	if target == nil {
		return
	}

	if !force && m.current != nil && target.Name() == m.current.Name() {
		return
	}

	m.cancelTransition()

	old := m.current
	m.current = target

	if old != nil {
		old.Exit(target)
	}

	target.Enter(old)

	for _, o := range m.observers {
		o.StateChanged(m, old, target, true)
	}
}

// SwitchToName resolves name through Get and switches to it.
func (m *Machine) SwitchToName(name string, force bool) {
	m.SwitchTo(m.Get(name), force)
}

// Update advances the machine by one tick.
//
// While a transition is in progress the current state does not update: the
// transition is either committed (if it should end) or updated. Otherwise
// the current state updates and the first of its transitions whose
// ShouldBegin holds is entered.
func (m *Machine) Update(deltaTime float64) {
	m.time += deltaTime

	for _, o := range m.observers {
		o.Ticked(m, deltaTime)
	}

	if m.inTransition {
		m.updateTransition(deltaTime)

		return
	}

	if m.current == nil {
		return
	}

	m.current.Update(deltaTime)

	// Update hooks may have switched or stopped the machine.
	if m.current == nil || m.inTransition {
		return
	}

	for _, t := range m.current.Transitions() {
		if t.ShouldBegin() {
			t.Enter()

			m.inTransition = true
			m.transition = t

			for _, o := range m.observers {
				o.TransitionBegan(m, t)
			}

			return
		}
	}
}

func (m *Machine) updateTransition(deltaTime float64) {
	t := m.transition
	if t == nil {
		return
	}

	if !t.ShouldEnd() {
		t.Update(deltaTime)

		return
	}

	t.Exit()

	m.inTransition = false
	m.transition = nil

	m.commit(t)

	for _, o := range m.observers {
		o.TransitionEnded(m, t)
	}
}

// commit moves the machine to t's destination.
func (m *Machine) commit(t Transition) {
	old := m.current

	if old != nil {
		old.Exit(t.To())
	}

	m.current = t.To()

	if m.current != nil {
		m.current.Enter(t.From())
	}

	for _, o := range m.observers {
		o.StateChanged(m, old, m.current, false)
	}
}

// cancelTransition exits an in-progress transition without committing it.
func (m *Machine) cancelTransition() {
	t := m.transition

	m.inTransition = false
	m.transition = nil

	if t == nil {
		return
	}

	t.Exit()

	for _, o := range m.observers {
		o.TransitionCancelled(m, t)
	}
}

// Stop empties the registry and clears the current state and transition.
// Every state's back-reference to this machine is cleared; no Enter or Exit
// is called. Reset must be called before the machine is used again.
func (m *Machine) Stop() {
	m.inTransition = false
	m.transition = nil
	m.current = nil

	for name, s := range m.states {
		m.release(s)
		delete(m.states, name)
	}

	if m.def != nil {
		m.release(m.def)
	}

	for _, o := range m.observers {
		o.Stopped(m)
	}
}

// Shutdown exits the in-progress transition and the current state, then
// stops the machine.
func (m *Machine) Shutdown() {
	m.cancelTransition()

	if m.current != nil {
		m.current.Exit(nil)
	}

	m.Stop()
}

// release clears s's back-reference if it still points at m. A state that
// was registered with another machine since keeps that association.
func (m *Machine) release(s State) {
	if s.Machine() == m {
		s.SetMachine(nil)
	}
}
