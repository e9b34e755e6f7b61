// Package fsmtest provides states, transitions and observers that record
// every lifecycle call, for asserting call order in state machine tests.
package fsmtest

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/amp-labs/amp-fsm/fsm"
	"github.com/stretchr/testify/require"
)

// Event kinds recorded by the helpers in this package.
const (
	KindEnter     = "enter"
	KindExit      = "exit"
	KindUpdate    = "update"
	KindBegin     = "begin"
	KindEnd       = "end"
	KindStep      = "step"
	KindChanged   = "changed"
	KindCancelled = "cancelled"
	KindStopped   = "stopped"
)

// Event is one recorded call. Peer is the other state involved (prev for
// enter, next for exit, destination for changed) or empty.
type Event struct {
	Kind    string
	Subject string
	Peer    string
}

func (e Event) String() string {
	if e.Peer == "" {
		return e.Kind + "(" + e.Subject + ")"
	}

	return e.Kind + "(" + e.Subject + "," + e.Peer + ")"
}

// Enter builds the event recorded when subject is entered from prev.
func Enter(subject, prev string) Event { return Event{Kind: KindEnter, Subject: subject, Peer: prev} }

// Exit builds the event recorded when subject is exited towards next.
func Exit(subject, next string) Event { return Event{Kind: KindExit, Subject: subject, Peer: next} }

// Begin builds the event recorded when a transition is entered.
func Begin(transition string) Event { return Event{Kind: KindBegin, Subject: transition} }

// End builds the event recorded when a transition is exited.
func End(transition string) Event { return Event{Kind: KindEnd, Subject: transition} }

// Log collects events in call order. It is safe for concurrent use so that
// one log can be shared across machines ticked by a world.
type Log struct {
	mut    sync.Mutex
	events []Event
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

func (l *Log) record(kind, subject, peer string) {
	l.mut.Lock()
	defer l.mut.Unlock()

	l.events = append(l.events, Event{Kind: kind, Subject: subject, Peer: peer})
}

// Events returns a copy of the recorded events.
func (l *Log) Events() []Event {
	l.mut.Lock()
	defer l.mut.Unlock()

	out := make([]Event, len(l.events))
	copy(out, l.events)

	return out
}

// Filter returns the recorded events whose kind is one of kinds.
func (l *Log) Filter(kinds ...string) []Event {
	var out []Event

	for _, e := range l.Events() {
		for _, k := range kinds {
			if e.Kind == k {
				out = append(out, e)

				break
			}
		}
	}

	return out
}

// Lifecycle returns enter, exit, begin and end events, which is what most
// ordering assertions care about.
func (l *Log) Lifecycle() []Event {
	return l.Filter(KindEnter, KindExit, KindBegin, KindEnd)
}

// Count returns how many events of kind were recorded for subject.
func (l *Log) Count(kind, subject string) int {
	n := 0

	for _, e := range l.Events() {
		if e.Kind == kind && e.Subject == subject {
			n++
		}
	}

	return n
}

// Reset discards all recorded events.
func (l *Log) Reset() {
	l.mut.Lock()
	defer l.mut.Unlock()

	l.events = nil
}

func (l *Log) String() string {
	events := l.Events()
	parts := make([]string, len(events))

	for i, e := range events {
		parts[i] = e.String()
	}

	return strings.Join(parts, " ")
}

// RequireLifecycle fails the test unless the log's lifecycle events equal want.
func RequireLifecycle(t *testing.T, log *Log, want ...Event) {
	t.Helper()

	require.Equal(t, fmt.Sprint(want), fmt.Sprint(log.Lifecycle()), "lifecycle sequence")
}

func name(s fsm.State) string {
	if s == nil {
		return ""
	}

	return s.Name()
}

// State is a BaseState that records Enter, Exit and Update calls.
type State struct {
	*fsm.BaseState

	log *Log
}

var _ fsm.State = (*State)(nil)

// NewState creates a recording state.
func NewState(log *Log, stateName string, opts ...fsm.StateOption) *State {
	return &State{
		BaseState: fsm.NewState(stateName, opts...),
		log:       log,
	}
}

func (s *State) Enter(prev fsm.State) {
	s.log.record(KindEnter, s.Name(), name(prev))
	s.BaseState.Enter(prev)
}

func (s *State) Exit(next fsm.State) {
	s.log.record(KindExit, s.Name(), name(next))
	s.BaseState.Exit(next)
}

func (s *State) Update(deltaTime float64) {
	s.log.record(KindUpdate, s.Name(), "")
	s.BaseState.Update(deltaTime)
}

// Transition is a BaseTransition that records Enter, Exit and Update calls.
type Transition struct {
	*fsm.BaseTransition

	log *Log
}

var _ fsm.Transition = (*Transition)(nil)

// Link creates a recording transition and appends it to from.
func Link(log *Log, transitionName string, from, to fsm.State, opts ...fsm.TransitionOption) *Transition {
	t := &Transition{
		BaseTransition: fsm.NewTransition(transitionName, from, to, opts...),
		log:            log,
	}

	if from != nil {
		from.AddTransition(t)
	}

	return t
}

func (t *Transition) Enter() {
	t.log.record(KindBegin, t.Name(), "")
	t.BaseTransition.Enter()
}

func (t *Transition) Exit() {
	t.log.record(KindEnd, t.Name(), "")
	t.BaseTransition.Exit()
}

func (t *Transition) Update(deltaTime float64) {
	t.log.record(KindStep, t.Name(), "")
	t.BaseTransition.Update(deltaTime)
}

// Observer records machine notifications into a log.
type Observer struct {
	fsm.NopObserver

	log *Log
}

var _ fsm.Observer = (*Observer)(nil)

// NewObserver creates a recording observer.
func NewObserver(log *Log) *Observer {
	return &Observer{log: log}
}

func (o *Observer) StateChanged(_ *fsm.Machine, from, to fsm.State, _ bool) {
	o.log.record(KindChanged, name(from), name(to))
}

func (o *Observer) TransitionCancelled(_ *fsm.Machine, t fsm.Transition) {
	o.log.record(KindCancelled, t.Name(), "")
}

func (o *Observer) Stopped(m *fsm.Machine) {
	o.log.record(KindStopped, m.Name(), "")
}
