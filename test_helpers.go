package tickfsm

import (
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"
)

// CallLog records hook invocations across several states in call order
type CallLog struct {
	mutex sync.RWMutex
	calls []string
}

// NewCallLog creates an empty call log
func NewCallLog() *CallLog {
	return &CallLog{}
}

// Record appends a formatted entry
func (l *CallLog) Record(format string, args ...any) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

// Calls returns a copy of the recorded entries
func (l *CallLog) Calls() []string {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return slices.Clone(l.calls)
}

// Reset clears the log
func (l *CallLog) Reset() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.calls = nil
}

// RecordingState is a state for testing that logs every hook into a shared
// CallLog and can be told to fail any of them
type RecordingState struct {
	*BaseState
	Log *CallLog

	FailInitialise    error
	FailLoadResources error
	FailEnter         error
	FailExit          error
	FailShutdown      error

	// OnTick runs inside Tick, e.g. to fire a transition
	OnTick func(s *RecordingState, dt time.Duration)

	mutex        sync.RWMutex
	enterPayload []Payload
	exitPayload  []Payload
	ticks        int
	renders      int
}

// RecordingFactory returns a StateFactory producing RecordingStates that
// share log
func RecordingFactory(log *CallLog) StateFactory {
	return func(m *Machine, name string, host any) (State, error) {
		return &RecordingState{
			BaseState: NewBaseState(m, name, host),
			Log:       log,
		}, nil
	}
}

func (s *RecordingState) Initialise() error {
	return s.InitialiseOnce(func() error {
		s.Log.Record("%s.initialise", s.Name())
		return s.FailInitialise
	})
}

func (s *RecordingState) LoadResources() error {
	return s.LoadResourcesOnce(func() error {
		s.Log.Record("%s.load", s.Name())
		return s.FailLoadResources
	})
}

func (s *RecordingState) Enter(previous State, payload Payload) error {
	s.Log.Record("%s.enter(%s)", s.Name(), nameOf(previous))
	s.mutex.Lock()
	s.enterPayload = append(s.enterPayload, payload)
	s.mutex.Unlock()
	if s.FailEnter != nil {
		return s.FailEnter
	}
	return s.BaseState.Enter(previous, payload)
}

func (s *RecordingState) Exit(next State, payload Payload) error {
	s.Log.Record("%s.exit(%s)", s.Name(), nameOf(next))
	s.mutex.Lock()
	s.exitPayload = append(s.exitPayload, payload)
	s.mutex.Unlock()
	if s.FailExit != nil {
		return s.FailExit
	}
	return s.BaseState.Exit(next, payload)
}

func (s *RecordingState) Tick(dt time.Duration) {
	s.mutex.Lock()
	s.ticks++
	s.mutex.Unlock()
	if s.OnTick != nil {
		s.OnTick(s, dt)
	}
}

func (s *RecordingState) Render(dt time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.renders++
}

func (s *RecordingState) Shutdown() error {
	s.Log.Record("%s.shutdown", s.Name())
	return s.FailShutdown
}

// EnterPayloads returns the payloads Enter was called with
func (s *RecordingState) EnterPayloads() []Payload {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return slices.Clone(s.enterPayload)
}

// ExitPayloads returns the payloads Exit was called with
func (s *RecordingState) ExitPayloads() []Payload {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return slices.Clone(s.exitPayload)
}

// TickCount returns how many times Tick ran
func (s *RecordingState) TickCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.ticks
}

// RenderCount returns how many times Render ran
func (s *RecordingState) RenderCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.renders
}

func nameOf(s State) string {
	if s == nil {
		return "nil"
	}
	return s.Name()
}

// TestLogger is a Logger for testing that captures all lifecycle events
type TestLogger struct {
	mutex  sync.RWMutex
	Events []LifecycleEvent
}

// NewTestLogger creates a new test logger
func NewTestLogger() *TestLogger {
	return &TestLogger{}
}

func (l *TestLogger) Log(event LifecycleEvent) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.Events = append(l.Events, event)
}

// Kinds returns the kinds of the captured events in order
func (l *TestLogger) Kinds() []EventKind {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	kinds := make([]EventKind, 0, len(l.Events))
	for _, e := range l.Events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// OfKind returns the captured events of kind
func (l *TestLogger) OfKind(kind EventKind) []LifecycleEvent {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	var out []LifecycleEvent
	for _, e := range l.Events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (l *TestLogger) Reset() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.Events = nil
}

// CreateChainMachine creates a machine with recording states A, B and C and
// the edges A->B, B->C, C->A. Nothing is activated.
func CreateChainMachine(log *CallLog, opts ...Option) *Machine {
	m := NewMachine("chain", opts...)
	for _, name := range []string{"A", "B", "C"} {
		m.MustAddState(name, RecordingFactory(log), nil)
	}
	m.MustAddTransition("A", "B")
	m.MustAddTransition("B", "C")
	m.MustAddTransition("C", "A")
	return m
}

// Recording returns the RecordingState registered under name
func Recording(t *testing.T, m *Machine, name string) *RecordingState {
	t.Helper()
	s, err := StateAs[*RecordingState](m, name)
	if err != nil {
		t.Fatalf("Expected recording state %s: %v", name, err)
	}
	return s
}

// AssertActive checks if machine's active state is expected
func AssertActive(t *testing.T, m *Machine, expected string) {
	t.Helper()
	active, err := m.ActiveState()
	if err != nil {
		t.Errorf("Expected active state %s, got error: %v", expected, err)
		return
	}
	if active.Name() != expected {
		t.Errorf("Expected active state %s, got %s", expected, active.Name())
	}
}

// AssertCalls checks the call log against the expected sequence
func AssertCalls(t *testing.T, log *CallLog, expected ...string) {
	t.Helper()
	if calls := log.Calls(); !slices.Equal(calls, expected) {
		t.Errorf("Expected calls %v, got %v", expected, calls)
	}
}
