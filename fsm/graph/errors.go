package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigNameRequired indicates that a top-level graph has no name.
	ErrConfigNameRequired = errors.New("config name is required")
	// ErrInitialStateRequired indicates that a graph has no initial state.
	ErrInitialStateRequired = errors.New("initial state is required")
	// ErrStateRequired indicates that a graph declares no states.
	ErrStateRequired = errors.New("at least one state is required")
	// ErrStateNameRequired indicates that a state has an empty name.
	ErrStateNameRequired = errors.New("state name is required")
	// ErrDuplicateStateName indicates that two states in one graph share a name.
	ErrDuplicateStateName = errors.New("duplicate state name")
	// ErrInitialStateNotFound indicates that the initial state is not declared.
	ErrInitialStateNotFound = errors.New("initial state does not exist")
	// ErrTransitionFromNotFound indicates that a transition's source is not declared.
	ErrTransitionFromNotFound = errors.New("transition from state does not exist")
	// ErrTransitionToNotFound indicates that a transition's target is not declared.
	ErrTransitionToNotFound = errors.New("transition to state does not exist")
	// ErrNegativeDuration indicates a negative after or duration value.
	ErrNegativeDuration = errors.New("durations must not be negative")
	// ErrUnknownCondition indicates a when clause with no matching Condition.
	ErrUnknownCondition = errors.New("unknown condition")
)

// StateError wraps an error raised inside a nested machine with the name of
// the state that owns it.
type StateError struct {
	State string
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state %s: %v", e.State, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

func wrapStateError(state string, err error) error {
	if err == nil {
		return nil
	}

	return &StateError{
		State: state,
		Err:   err,
	}
}
