package fsm

// MachineState adapts a Machine to the State contract so it can be
// registered as a child of another machine. Outgoing transitions and the
// parent back-reference belong to the adapter; time, enter/exit propagation
// and updates are delegated to the wrapped machine.
type MachineState struct {
	*BaseState

	machine *Machine
}

var _ State = (*MachineState)(nil)

// AsState returns an adapter that lets m be nested inside another machine.
// The adapter is named after m at the time of the call.
func (m *Machine) AsState() *MachineState {
	return m.AsNamedState(m.name)
}

// AsNamedState is like AsState but gives the adapter its own name, which
// should match the key it is registered under in the parent. The name does
// not follow later Resets of m.
func (m *Machine) AsNamedState(name string) *MachineState {
	return &MachineState{
		BaseState: NewState(name),
		machine:   m,
	}
}

// Inner returns the wrapped machine.
func (s *MachineState) Inner() *Machine {
	return s.machine
}

func (s *MachineState) Time() float64 {
	return s.machine.time
}

// Enter resets the machine's elapsed time and enters its current state with
// the parent's previous state.
func (s *MachineState) Enter(prev State) {
	s.machine.time = 0

	if s.machine.current != nil {
		s.machine.current.Enter(prev)
	}
}

// Exit cancels the machine's in-progress transition, then exits its current
// state with the parent's next state.
func (s *MachineState) Exit(next State) {
	s.machine.cancelTransition()

	if s.machine.current != nil {
		s.machine.current.Exit(next)
	}
}

func (s *MachineState) Update(deltaTime float64) {
	s.machine.Update(deltaTime)
}
