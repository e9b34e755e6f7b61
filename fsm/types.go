package fsm

// State is a named behavioral unit with an enter/exit/update lifecycle and
// an ordered list of outgoing transitions.
type State interface {
	Name() string

	// Time returns the seconds accumulated through Update since the last Enter.
	Time() float64

	// Enter is called when the state becomes current. prev is nil on the
	// initial entry.
	Enter(prev State)

	// Exit is called when the state stops being current. next is nil on the
	// final exit.
	Exit(next State)

	// Update advances the state. deltaTime must not be negative.
	Update(deltaTime float64)

	Transitions() []Transition
	AddTransition(t Transition)
	RemoveTransition(t Transition)

	// Machine returns the machine the state is registered with, or nil.
	Machine() *Machine

	// SetMachine records the hosting machine. It must not keep the machine alive.
	SetMachine(m *Machine)
}

// Transition is a directed edge between two states of the same machine.
type Transition interface {
	Name() string
	From() State
	To() State

	Enter()
	Exit()
	Update(deltaTime float64)

	// ShouldBegin reports whether the transition may start. It is only
	// evaluated while From is the current state.
	ShouldBegin() bool

	// ShouldEnd reports whether an in-progress transition has finished.
	ShouldEnd() bool

	// Progress is a presentation hint; the machine never reads it.
	Progress() float64
}
