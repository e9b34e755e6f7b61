package fsm_test

import (
	"testing"

	"github.com/amp-labs/amp-fsm/fsm"
	"github.com/amp-labs/amp-fsm/fsm/fsmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newIdleRun builds the Idle/Run machine used by several tests: Idle is the
// default and Idle->Run begins after two seconds and ends immediately.
func newIdleRun(log *fsmtest.Log) (*fsm.Machine, *fsmtest.State, *fsmtest.State, *fsmtest.Transition) {
	idle := fsmtest.NewState(log, "Idle")
	run := fsmtest.NewState(log, "Run")
	tr := fsmtest.Link(log, "T", idle, run, fsm.BeginAfter(2.0))

	m := fsm.New("M", idle)
	m.Add("Idle", idle)
	m.Add("Run", run)

	return m, idle, run, tr
}

func TestTimedTransitionCommitsOnThirdTick(t *testing.T) {
	t.Parallel()

	log := fsmtest.NewLog()
	m, idle, run, tr := newIdleRun(log)

	m.Update(1.0)
	assert.False(t, m.InTransition())
	assert.InDelta(t, 1.0, idle.Time(), 1e-9)
	assert.Empty(t, log.Lifecycle())

	m.Update(1.0)
	assert.True(t, m.InTransition())
	assert.Same(t, tr, m.CurrentTransition())
	assert.Same(t, idle, m.Current())
	fsmtest.RequireLifecycle(t, log, fsmtest.Begin("T"))

	m.Update(1.0)
	assert.False(t, m.InTransition())
	assert.Nil(t, m.CurrentTransition())
	assert.Same(t, run, m.Current())

	fsmtest.RequireLifecycle(t, log,
		fsmtest.Begin("T"),
		fsmtest.End("T"),
		fsmtest.Exit("Idle", "Run"),
		fsmtest.Enter("Run", "Idle"),
	)

	assert.Equal(t, 1, log.Count(fsmtest.KindExit, "Idle"))
	assert.Equal(t, 1, log.Count(fsmtest.KindEnter, "Run"))
	assert.InDelta(t, 3.0, m.Time(), 1e-9)
}

func TestSwitchToSameNameIsIdempotent(t *testing.T) {
	t.Parallel()

	log := fsmtest.NewLog()
	m, idle, _, _ := newIdleRun(log)

	m.SwitchToName("Idle", false)
	m.SwitchTo(fsm.NewState("Idle"), false)

	assert.Empty(t, log.Lifecycle())
	assert.Same(t, idle, m.Current())
}

func TestSwitchToForced(t *testing.T) {
	t.Parallel()

	log := fsmtest.NewLog()
	m, idle, _, _ := newIdleRun(log)

	m.SwitchTo(idle, true)

	fsmtest.RequireLifecycle(t, log,
		fsmtest.Exit("Idle", "Idle"),
		fsmtest.Enter("Idle", "Idle"),
	)
}

func TestSwitchToExitsThenEnters(t *testing.T) {
	t.Parallel()

	log := fsmtest.NewLog()
	m, _, run, _ := newIdleRun(log)

	m.SwitchToName("Run", false)
	assert.Same(t, run, m.Current())

	fsmtest.RequireLifecycle(t, log,
		fsmtest.Exit("Idle", "Run"),
		fsmtest.Enter("Run", "Idle"),
	)

	// Unknown names and nil targets are ignored.
	log.Reset()
	m.SwitchToName("Missing", true)
	m.SwitchTo(nil, true)
	assert.Empty(t, log.Events())
	assert.Same(t, run, m.Current())
}

func TestSwitchToFromStoppedMachine(t *testing.T) {
	t.Parallel()

	log := fsmtest.NewLog()
	m, _, run, _ := newIdleRun(log)

	m.Stop()
	m.SwitchTo(run, false)

	assert.Same(t, run, m.Current())
	fsmtest.RequireLifecycle(t, log, fsmtest.Enter("Run", ""))
}

func TestSwitchToCancelsTransition(t *testing.T) {
	t.Parallel()

	log := fsmtest.NewLog()
	idle := fsmtest.NewState(log, "Idle")
	run := fsmtest.NewState(log, "Run")
	dead := fsmtest.NewState(log, "Dead")

	fsmtest.Link(log, "T", idle, run, fsm.BeginAfter(0), fsm.Duration(10))

	m := fsm.New("M", idle, fsm.WithObserver(fsmtest.NewObserver(log)))
	m.Add("Idle", idle)
	m.Add("Run", run)
	m.Add("Dead", dead)

	m.Update(0.1)
	require.True(t, m.InTransition())

	m.SwitchToName("Dead", true)

	assert.False(t, m.InTransition())
	assert.Nil(t, m.CurrentTransition())
	assert.Same(t, dead, m.Current())

	fsmtest.RequireLifecycle(t, log,
		fsmtest.Begin("T"),
		fsmtest.End("T"),
		fsmtest.Exit("Idle", "Dead"),
		fsmtest.Enter("Dead", "Idle"),
	)
	assert.Equal(t, 1, log.Count(fsmtest.KindCancelled, "T"))

	// The cancelled transition never commits on later ticks.
	m.Update(20)
	assert.Same(t, dead, m.Current())
	assert.Equal(t, 1, log.Count(fsmtest.KindEnd, "T"))
}

func TestFirstMatchingTransitionWins(t *testing.T) {
	t.Parallel()

	log := fsmtest.NewLog()
	idle := fsmtest.NewState(log, "Idle")
	a := fsmtest.NewState(log, "A")
	b := fsmtest.NewState(log, "B")

	always := func() bool { return true }
	fsmtest.Link(log, "T0", idle, a, fsm.BeginWhen(always), fsm.Duration(1.5))
	fsmtest.Link(log, "T1", idle, b, fsm.BeginWhen(always))

	m := fsm.New("M", idle)

	for range 4 {
		m.Update(1)
	}

	assert.Equal(t, 1, log.Count(fsmtest.KindBegin, "T0"))
	assert.Zero(t, log.Count(fsmtest.KindBegin, "T1"))
	assert.Same(t, a, m.Current())
}

func TestStateDoesNotUpdateDuringTransition(t *testing.T) {
	t.Parallel()

	log := fsmtest.NewLog()
	idle := fsmtest.NewState(log, "Idle")
	run := fsmtest.NewState(log, "Run")
	tr := fsmtest.Link(log, "T", idle, run, fsm.BeginAfter(1), fsm.Duration(2))

	m := fsm.New("M", idle)

	m.Update(1) // idle.Time() == 1, T begins
	require.True(t, m.InTransition())

	m.Update(1) // T elapsed 1
	m.Update(1) // T elapsed 2
	assert.InDelta(t, 1.0, tr.Progress(), 1e-9)
	assert.True(t, m.InTransition())

	m.Update(1) // commit

	assert.Same(t, run, m.Current())
	assert.Equal(t, 1, log.Count(fsmtest.KindUpdate, "Idle"))
	assert.Equal(t, 2, log.Count(fsmtest.KindStep, "T"))
	assert.Zero(t, log.Count(fsmtest.KindUpdate, "Run"))

	m.Update(0.5)
	assert.Equal(t, 1, log.Count(fsmtest.KindUpdate, "Run"))
	assert.InDelta(t, 0.5, run.Time(), 1e-9)
}

func TestOnlyCurrentStateTransitionsAreScanned(t *testing.T) {
	t.Parallel()

	log := fsmtest.NewLog()
	idle := fsmtest.NewState(log, "Idle")
	run := fsmtest.NewState(log, "Run")
	fsmtest.Link(log, "RunToIdle", run, idle, fsm.BeginWhen(func() bool { return true }))

	m := fsm.New("M", idle)
	m.Add("Run", run)

	m.Update(1)
	m.Update(1)

	assert.False(t, m.InTransition())
	assert.Zero(t, log.Count(fsmtest.KindBegin, "RunToIdle"))
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	idle := fsm.NewState("Idle")
	m := fsm.New("M", idle)

	assert.Same(t, m, idle.Machine())
	assert.False(t, m.Contains("Idle"), "default state is not registered implicitly")

	a := fsm.NewState("A")
	dup := fsm.NewState("A")

	m.Add("A", a)
	m.Add("A", dup)
	m.Add("B", fsm.NewState("B"))
	m.Add("nil", nil)

	assert.Same(t, a, m.Get("A"))
	assert.Nil(t, dup.Machine())
	assert.Same(t, m, a.Machine())
	assert.Equal(t, 2, m.Len())
	assert.False(t, m.Contains("nil"))

	m.Remove("A")
	m.Remove("Missing")

	assert.False(t, m.Contains("A"))
	assert.True(t, m.Contains("B"))
	assert.Nil(t, a.Machine())
	assert.Nil(t, m.Get("Missing"))
}

func TestRegistryInvariant(t *testing.T) {
	t.Parallel()

	m := fsm.New("M", fsm.NewState("Idle"))

	added := map[string]bool{}
	ops := []struct {
		add  bool
		name string
	}{
		{true, "a"}, {true, "b"}, {true, "c"}, {false, "b"},
		{true, "d"}, {false, "a"}, {false, "zz"}, {true, "b"},
	}

	for _, op := range ops {
		if op.add {
			m.Add(op.name, fsm.NewState(op.name))
			added[op.name] = true
		} else {
			m.Remove(op.name)
			delete(added, op.name)
		}
	}

	for _, name := range []string{"a", "b", "c", "d", "zz"} {
		assert.Equal(t, added[name], m.Contains(name), name)
	}
}

func TestRemoveCurrentStateIsNoop(t *testing.T) {
	t.Parallel()

	idle := fsm.NewState("Idle")
	m := fsm.New("M", idle)
	m.Add("Idle", idle)
	m.Add("Run", fsm.NewState("Run"))

	m.Remove("Idle")

	assert.Equal(t, 2, m.Len())
	assert.Same(t, idle, m.Current())
	assert.Same(t, m, idle.Machine())
}

func TestGetMissing(t *testing.T) {
	t.Parallel()

	m := fsm.New("M", fsm.NewState("Idle"))

	assert.NotPanics(t, func() {
		assert.Nil(t, m.Get("Missing"))
	})
	assert.False(t, m.Contains("Missing"))
}

func TestNamesNaturalOrder(t *testing.T) {
	t.Parallel()

	m := fsm.New("M", fsm.NewState("idle"))
	for _, name := range []string{"wave10", "wave2", "wave1", "attack"} {
		m.Add(name, fsm.NewState(name))
	}

	assert.Equal(t, []string{"attack", "wave1", "wave2", "wave10"}, m.Names())
}

func TestStopClearsBackReferences(t *testing.T) {
	t.Parallel()

	log := fsmtest.NewLog()
	m, idle, run, _ := newIdleRun(log)
	m.Update(2)
	require.True(t, m.InTransition())

	other := fsm.New("Other", fsm.NewState("x"))
	other.Add("Run", run) // last registration wins

	m.Stop()

	assert.Nil(t, m.Current())
	assert.False(t, m.InTransition())
	assert.Nil(t, m.CurrentTransition())
	assert.Zero(t, m.Len())
	assert.Nil(t, idle.Machine())
	assert.Same(t, other, run.Machine())

	// Stop does not run lifecycle hooks.
	assert.Zero(t, log.Count(fsmtest.KindExit, "Idle"))
	assert.Zero(t, log.Count(fsmtest.KindEnd, "T"))

	// A stopped machine ignores ticks until Reset.
	log.Reset()
	m.Update(1)
	assert.Empty(t, log.Events())

	m.Reset("M2", idle)
	assert.Equal(t, "M2", m.Name())
	assert.Same(t, idle, m.Current())
	assert.Same(t, m, idle.Machine())
}

func TestShutdownBalancesLifecycle(t *testing.T) {
	t.Parallel()

	log := fsmtest.NewLog()
	m, _, _, _ := newIdleRun(log)

	m.Start()

	for range 5 {
		m.Update(0.75)
	}

	m.Update(2)
	m.Shutdown()

	for _, name := range []string{"Idle", "Run"} {
		assert.Equal(t, log.Count(fsmtest.KindEnter, name), log.Count(fsmtest.KindExit, name), name)
	}

	assert.Equal(t, log.Count(fsmtest.KindBegin, "T"), log.Count(fsmtest.KindEnd, "T"))
	assert.Nil(t, m.Current())
}

func TestResetCancelsTransition(t *testing.T) {
	t.Parallel()

	log := fsmtest.NewLog()
	idle := fsmtest.NewState(log, "Idle")
	run := fsmtest.NewState(log, "Run")
	fsmtest.Link(log, "T", idle, run, fsm.BeginAfter(0), fsm.Duration(5))

	m := fsm.New("M", idle)
	m.Update(1)
	require.True(t, m.InTransition())

	m.SetDefault(run)
	m.ResetToDefault()

	assert.False(t, m.InTransition())
	assert.Same(t, run, m.Current())
	assert.Same(t, run, m.Default())
	assert.Same(t, m, run.Machine())
	assert.Equal(t, 1, log.Count(fsmtest.KindEnd, "T"))
}

func TestUpdateHookSwitchingState(t *testing.T) {
	t.Parallel()

	var m *fsm.Machine

	hit := fsm.NewState("Hit")
	idle := fsm.NewState("Idle", fsm.OnUpdate(func(float64) {
		m.SwitchTo(hit, false)
	}))
	fsm.Link("never", idle, hit, fsm.BeginWhen(func() bool { return true }))

	m = fsm.New("M", idle)
	m.Update(1)

	assert.Same(t, hit, m.Current())
	assert.False(t, m.InTransition(), "transitions of the replaced state are not scanned")
}

func TestRemoveCurrentUnderDifferentKey(t *testing.T) {
	t.Parallel()

	idle := fsm.NewState("Idle")
	m := fsm.New("M", idle)
	m.Add("resting", idle)

	m.Remove("resting")

	assert.True(t, m.Contains("resting"))
	assert.Same(t, idle, m.Current())
	assert.Same(t, m, idle.Machine())
}
