package fsm

// Observer receives lifecycle notifications from a Machine. Observers run
// synchronously inside the tick and must not mutate the machine.
type Observer interface {
	// Ticked is called at the start of every Update.
	Ticked(m *Machine, deltaTime float64)

	// StateChanged is called after from.Exit and to.Enter have run. forced is
	// true when the change came from SwitchTo rather than a transition.
	StateChanged(m *Machine, from, to State, forced bool)

	TransitionBegan(m *Machine, t Transition)

	// TransitionEnded is called after a transition has been committed.
	TransitionEnded(m *Machine, t Transition)

	// TransitionCancelled is called when a transition is exited without
	// being committed.
	TransitionCancelled(m *Machine, t Transition)

	Stopped(m *Machine)
}

// NopObserver implements Observer with no-ops. Embed it to implement only
// the notifications you care about.
type NopObserver struct{}

var _ Observer = NopObserver{}

func (NopObserver) Ticked(*Machine, float64)                 {}
func (NopObserver) StateChanged(*Machine, State, State, bool) {}
func (NopObserver) TransitionBegan(*Machine, Transition)     {}
func (NopObserver) TransitionEnded(*Machine, Transition)     {}
func (NopObserver) TransitionCancelled(*Machine, Transition) {}
func (NopObserver) Stopped(*Machine)                         {}

// stateName returns s's name, or an empty string for nil.
func stateName(s State) string {
	if s == nil {
		return ""
	}

	return s.Name()
}
