// Package fsm implements a tick-driven hierarchical finite state machine.
//
// A Machine owns a name-keyed registry of States and arbitrates exactly one
// current state and at most one in-progress Transition. The host calls
// Machine.Update once per frame with the elapsed time; all Enter/Exit calls
// triggered by that tick happen before Update returns.
//
// Machines nest through MachineState, an adapter that satisfies State by
// delegating to the wrapped Machine:
//
//	inner := fsm.New("combat", aim)
//	outer := fsm.New("guard", idle)
//	outer.Add("combat", inner.AsState())
//
// A Machine is not safe for concurrent use. Registry misuse (unknown names,
// duplicate adds, removing the current state) is silently ignored.
package fsm
