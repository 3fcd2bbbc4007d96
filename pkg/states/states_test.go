package states

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anggasct/tickfsm"
)

func TestFunc_Actions(t *testing.T) {
	log := tickfsm.NewCallLog()

	m := tickfsm.NewMachine("func")
	m.MustAddState("menu", NewFunc(func(s *Func) {
		s.OnInitialise(func(s *Func) error {
			log.Record("%s.initialise", s.Name())
			return nil
		}).OnLoadResources(func(s *Func) error {
			log.Record("%s.load", s.Name())
			return nil
		}).AddEntryAction(func(s *Func, previous tickfsm.State, payload tickfsm.Payload) error {
			log.Record("%s.enter.first", s.Name())
			return nil
		}).AddEntryAction(func(s *Func, previous tickfsm.State, payload tickfsm.Payload) error {
			log.Record("%s.enter.second(%v)", s.Name(), payload)
			return nil
		}).AddExitAction(func(s *Func, next tickfsm.State, payload tickfsm.Payload) error {
			log.Record("%s.exit(%s)", s.Name(), next.Name())
			return nil
		}).OnTick(func(s *Func, dt time.Duration) {
			log.Record("%s.tick(%s)", s.Name(), dt)
		}).OnRender(func(s *Func, dt time.Duration) {
			log.Record("%s.render(%s)", s.Name(), dt)
		}).OnShutdown(func(s *Func) error {
			log.Record("%s.shutdown", s.Name())
			return nil
		})
	}), nil)
	m.MustAddState("closing", NewFunc(nil), nil)
	m.MustAddTransition("menu", "closing")

	require.NoError(t, m.InitialiseAll())
	require.NoError(t, m.InitialiseAll())
	require.NoError(t, m.LoadResourcesAll())
	require.NoError(t, m.Activate("menu", tickfsm.NewPayload("hi")))
	require.NoError(t, m.Tick(time.Second))
	require.NoError(t, m.Render(time.Second))
	require.NoError(t, m.FireTransition("closing", tickfsm.NoPayload))
	require.NoError(t, m.Tick(time.Second))
	require.NoError(t, m.ShutdownAll())

	tickfsm.AssertCalls(t, log,
		"menu.initialise",
		"menu.load",
		"menu.enter.first",
		"menu.enter.second(hi)",
		"menu.tick(1s)",
		"menu.render(1s)",
		"menu.exit(closing)",
		"menu.shutdown",
	)

	menu, err := tickfsm.StateAs[*Func](m, "menu")
	require.NoError(t, err)
	assert.True(t, menu.Configured())
	assert.False(t, menu.Enabled())
}

func TestFunc_EntryFailureStopsChain(t *testing.T) {
	cause := errors.New("menu font missing")
	var second bool

	m := tickfsm.NewMachine("func")
	m.MustAddState("menu", NewFunc(func(s *Func) {
		s.AddEntryAction(func(*Func, tickfsm.State, tickfsm.Payload) error { return cause }).
			AddEntryAction(func(*Func, tickfsm.State, tickfsm.Payload) error { second = true; return nil })
	}), nil)

	err := m.Activate("menu", tickfsm.NoPayload)
	assert.ErrorIs(t, err, cause)
	assert.False(t, second)

	menu, _ := tickfsm.StateAs[*Func](m, "menu")
	assert.False(t, menu.Enabled())
}

func TestFunc_ExitFailureKeepsStateEnabled(t *testing.T) {
	m := tickfsm.NewMachine("func")
	m.MustAddState("menu", NewFunc(func(s *Func) {
		s.AddExitAction(func(*Func, tickfsm.State, tickfsm.Payload) error { return errors.New("unsaved") })
	}), nil)
	m.MustAddState("closing", NewFunc(nil), nil)
	m.MustAddTransition("menu", "closing")
	require.NoError(t, m.Activate("menu", tickfsm.NoPayload))

	assert.ErrorIs(t, m.FireTransition("closing", tickfsm.NoPayload), tickfsm.ErrHookFailed)
	menu, _ := tickfsm.StateAs[*Func](m, "menu")
	assert.True(t, menu.Enabled())
	tickfsm.AssertActive(t, m, "menu")
}

func newSplashMachine(t *testing.T, opts ...TimeoutOption) (*tickfsm.Machine, *TimeoutState) {
	t.Helper()

	m := tickfsm.NewMachine("splash")
	m.MustAddState("splash", NewTimeout(3*time.Second, "menu", opts...), nil)
	m.MustAddState("menu", tickfsm.RecordingFactory(tickfsm.NewCallLog()), nil)
	m.MustAddTransition("splash", "menu", tickfsm.ExpectPayload[Elapsed]())
	require.NoError(t, m.Activate("splash", tickfsm.NoPayload))

	splash, err := tickfsm.StateAs[*TimeoutState](m, "splash")
	require.NoError(t, err)
	return m, splash
}

func TestTimeoutState_FiresAfterAccumulatedTicks(t *testing.T) {
	m, splash := newSplashMachine(t)
	assert.Equal(t, 3*time.Second, splash.GetTimeout())
	assert.Equal(t, "menu", splash.Target())

	for i := 0; i < 5; i++ {
		require.NoError(t, m.Tick(500*time.Millisecond))
	}
	tickfsm.AssertActive(t, m, "splash")
	assert.Equal(t, 2500*time.Millisecond, splash.Elapsed())
	assert.Equal(t, 500*time.Millisecond, splash.Remaining())

	require.NoError(t, m.Tick(500*time.Millisecond))
	require.NoError(t, splash.Err())
	tickfsm.AssertActive(t, m, "menu")
	assert.False(t, splash.Enabled())

	menu := tickfsm.Recording(t, m, "menu")
	require.Len(t, menu.EnterPayloads(), 1)
	elapsed, err := tickfsm.PayloadAs[Elapsed](menu.EnterPayloads()[0])
	require.NoError(t, err)
	assert.Equal(t, Elapsed{State: "splash", Duration: 3 * time.Second}, elapsed)
}

func TestTimeoutState_DisabledDoesNotAdvance(t *testing.T) {
	m, splash := newSplashMachine(t)

	splash.Disable()
	for i := 0; i < 10; i++ {
		require.NoError(t, m.Tick(time.Second))
	}
	assert.Zero(t, splash.Elapsed())
	tickfsm.AssertActive(t, m, "splash")
}

func TestTimeoutState_RefusedTransition(t *testing.T) {
	payload := WithTimeoutPayload(func(*TimeoutState, time.Duration) tickfsm.Payload {
		return tickfsm.NewPayload("not elapsed")
	})

	t.Run("without retry", func(t *testing.T) {
		m, splash := newSplashMachine(t, payload)
		require.NoError(t, m.Tick(4*time.Second))
		assert.ErrorIs(t, splash.Err(), tickfsm.ErrPayloadMismatch)

		require.NoError(t, m.Tick(time.Second))
		assert.Equal(t, 4*time.Second, splash.Elapsed())
		tickfsm.AssertActive(t, m, "splash")
	})

	t.Run("with retry", func(t *testing.T) {
		m, splash := newSplashMachine(t, payload, WithRetry())
		require.NoError(t, m.Tick(4*time.Second))
		require.NoError(t, m.Tick(time.Second))
		assert.Equal(t, 5*time.Second, splash.Elapsed())
		assert.ErrorIs(t, splash.Err(), tickfsm.ErrPayloadMismatch)
	})
}

func TestTimeoutState_ReentryResets(t *testing.T) {
	m := tickfsm.NewMachine("loop")
	m.MustAddState("a", NewTimeout(time.Second, "b"), nil)
	m.MustAddState("b", NewTimeout(time.Second, "a"), nil)
	m.MustAddTransition("a", "b")
	m.MustAddTransition("b", "a")
	require.NoError(t, m.Activate("a", tickfsm.NoPayload))

	var seen []string
	for i := 0; i < 4; i++ {
		require.NoError(t, m.Tick(time.Second))
		active, err := m.ActiveState()
		require.NoError(t, err)
		seen = append(seen, active.Name())
	}
	assert.Equal(t, []string{"b", "a", "b", "a"}, seen)
}

func TestTimeoutState_TickAction(t *testing.T) {
	var total time.Duration
	m, _ := newSplashMachine(t, WithTickAction(func(s *TimeoutState, dt time.Duration) {
		total += dt
	}))

	require.NoError(t, m.Tick(time.Second))
	require.NoError(t, m.Tick(time.Second))
	assert.Equal(t, 2*time.Second, total)
}

func TestNewTimeout_Validation(t *testing.T) {
	m := tickfsm.NewMachine("invalid")

	_, err := m.AddState("a", NewTimeout(-time.Second, "b"), nil)
	assert.ErrorIs(t, err, tickfsm.ErrInvalidConfiguration)

	_, err = m.AddState("a", NewTimeout(time.Second, ""), nil)
	assert.ErrorIs(t, err, tickfsm.ErrInvalidConfiguration)
}

func TestFinalState(t *testing.T) {
	var notified string

	m := tickfsm.NewMachine("final")
	m.MustAddState("closing", tickfsm.RecordingFactory(tickfsm.NewCallLog()), nil)
	m.MustAddState("exit", NewFinal(func(s *FinalState, previous tickfsm.State, payload tickfsm.Payload) {
		notified = previous.Name()
	}), nil)
	m.MustAddTransition("closing", "exit")
	require.NoError(t, m.Activate("closing", tickfsm.NoPayload))

	exit, err := tickfsm.StateAs[*FinalState](m, "exit")
	require.NoError(t, err)
	assert.False(t, exit.Reached())

	require.NoError(t, m.FireTransition("exit", tickfsm.NewPayload(0)))
	assert.True(t, exit.Reached())
	assert.Equal(t, "closing", exit.ReachedFrom())
	assert.Equal(t, tickfsm.NewPayload(0), exit.Payload())
	assert.Equal(t, "closing", notified)

	assert.True(t, IsFinal(exit))
	closing, _ := m.GetState("closing")
	assert.False(t, IsFinal(closing))
	assert.ErrorIs(t, m.FireTransition("closing", tickfsm.NoPayload), tickfsm.ErrNoTransitionsDefined)
}

func TestFinalState_Activated(t *testing.T) {
	m := tickfsm.NewMachine("final")
	m.MustAddState("done", NewFinal(nil), nil)
	require.NoError(t, m.Activate("done", tickfsm.NoPayload))

	done, _ := tickfsm.StateAs[*FinalState](m, "done")
	assert.True(t, done.Reached())
	assert.Empty(t, done.ReachedFrom())
}
