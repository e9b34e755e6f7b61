package fsm

// TransitionOption configures a BaseTransition.
type TransitionOption func(*BaseTransition)

// BeginWhen adds a predicate that must hold for the transition to begin.
// Multiple begin predicates are combined with AND.
func BeginWhen(fn func() bool) TransitionOption {
	return func(t *BaseTransition) {
		if fn != nil {
			t.begin = append(t.begin, fn)
		}
	}
}

// BeginAfter lets the transition begin once its source state has been
// current for at least seconds.
func BeginAfter(seconds float64) TransitionOption {
	return func(t *BaseTransition) {
		t.begin = append(t.begin, func() bool {
			return t.from != nil && t.from.Time() >= seconds
		})
	}
}

// EndWhen sets the predicate that finishes an in-progress transition.
func EndWhen(fn func() bool) TransitionOption {
	return func(t *BaseTransition) {
		t.end = fn
	}
}

// Duration finishes the transition once it has been updated for at least
// seconds. Progress reports the completed fraction.
func Duration(seconds float64) TransitionOption {
	return func(t *BaseTransition) {
		t.duration = seconds
	}
}

// OnBegin sets a hook run when the transition is entered.
func OnBegin(fn func()) TransitionOption {
	return func(t *BaseTransition) {
		t.onBegin = fn
	}
}

// OnEnd sets a hook run when the transition is exited, whether it completed
// or was cancelled.
func OnEnd(fn func()) TransitionOption {
	return func(t *BaseTransition) {
		t.onEnd = fn
	}
}

// BaseTransition is the default Transition implementation. Without options
// it never begins; once begun it ends on the first check unless a Duration
// or EndWhen is set.
type BaseTransition struct {
	name     string
	from     State
	to       State
	elapsed  float64
	duration float64
	active   bool

	begin   []func() bool
	end     func() bool
	onBegin func()
	onEnd   func()
}

var _ Transition = (*BaseTransition)(nil)

// NewTransition creates a transition between two states. It is not attached
// to from; use Link or from.AddTransition.
func NewTransition(name string, from, to State, opts ...TransitionOption) *BaseTransition {
	t := &BaseTransition{
		name: name,
		from: from,
		to:   to,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Link creates a transition and appends it to from's transition list.
func Link(name string, from, to State, opts ...TransitionOption) *BaseTransition {
	t := NewTransition(name, from, to, opts...)

	if from != nil {
		from.AddTransition(t)
	}

	return t
}

func (t *BaseTransition) Name() string {
	return t.name
}

func (t *BaseTransition) From() State {
	return t.from
}

func (t *BaseTransition) To() State {
	return t.to
}

// Elapsed returns the seconds accumulated since Enter.
func (t *BaseTransition) Elapsed() float64 {
	return t.elapsed
}

// Active reports whether the transition is between Enter and Exit.
func (t *BaseTransition) Active() bool {
	return t.active
}

func (t *BaseTransition) Enter() {
	t.elapsed = 0
	t.active = true

	if t.onBegin != nil {
		t.onBegin()
	}
}

func (t *BaseTransition) Exit() {
	t.active = false

	if t.onEnd != nil {
		t.onEnd()
	}
}

func (t *BaseTransition) Update(deltaTime float64) {
	t.elapsed += deltaTime
}

func (t *BaseTransition) ShouldBegin() bool {
	if len(t.begin) == 0 {
		return false
	}

	for _, fn := range t.begin {
		if !fn() {
			return false
		}
	}

	return true
}

func (t *BaseTransition) ShouldEnd() bool {
	if t.end != nil {
		return t.end()
	}

	return t.elapsed >= t.duration
}

func (t *BaseTransition) Progress() float64 {
	if t.duration <= 0 {
		if t.ShouldEnd() {
			return 1
		}

		return 0
	}

	return min(max(t.elapsed/t.duration, 0), 1)
}
