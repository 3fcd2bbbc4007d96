package tickfsm

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MachineStatus represents the lifecycle phase of a machine
type MachineStatus int

const (
	// Machine is being set up and has no active state
	MachineIdle MachineStatus = iota
	// Machine has an active state
	MachineRunning
	// A failed transition could not be rolled back
	MachineFaulted
	// ShutdownAll has run
	MachineShutdown
)

func (s MachineStatus) String() string {
	switch s {
	case MachineIdle:
		return "idle"
	case MachineRunning:
		return "running"
	case MachineFaulted:
		return "faulted"
	case MachineShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Machine owns a set of named states, the transitions between them and the
// active state.
//
// The machine is driven from a single control loop. Its bookkeeping is
// guarded by a mutex that is never held while a hook runs, so hooks may call
// back into the machine; a transition in flight makes any other transition
// attempt fail with ErrTransitionInProgress.
type Machine struct {
	name string
	id   string

	mutex         sync.RWMutex
	states        map[string]State
	order         []string
	transitions   *transitionTable
	active        State
	status        MachineStatus
	transitioning bool

	loggers *loggerSet
	clock   func() time.Time
	newID   func() string
}

// Option configures a Machine
type Option func(*Machine)

// WithLogger adds lifecycle event sinks. Events go to every logger in order.
func WithLogger(loggers ...Logger) Option {
	return func(m *Machine) {
		m.loggers.add(loggers...)
	}
}

// WithClock sets the time source used to stamp lifecycle events
func WithClock(clock func() time.Time) Option {
	return func(m *Machine) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithIDGenerator sets the generator for machine and transition ids
func WithIDGenerator(newID func() string) Option {
	return func(m *Machine) {
		if newID != nil {
			m.newID = newID
		}
	}
}

// NewMachine creates an empty machine. name is used in diagnostics only.
func NewMachine(name string, opts ...Option) *Machine {
	m := &Machine{
		name:        name,
		states:      make(map[string]State),
		transitions: newTransitionTable(),
		status:      MachineIdle,
		loggers:     &loggerSet{},
		clock:       time.Now,
		newID:       uuid.NewString,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.id = m.newID()
	return m
}

// Name returns the machine name
func (m *Machine) Name() string {
	return m.name
}

// ID returns the unique id of this machine instance
func (m *Machine) ID() string {
	return m.id
}

// Status returns the lifecycle phase
func (m *Machine) Status() MachineStatus {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.status
}

// AddState constructs a state through factory and registers it under name.
// No lifecycle hook is called.
func (m *Machine) AddState(name string, factory StateFactory, host any) (State, error) {
	if strings.TrimSpace(name) == "" {
		return nil, NewConfigurationError("AddState", "state name cannot be empty")
	}
	if factory == nil {
		return nil, NewConfigurationError("AddState", fmt.Sprintf("factory for state '%s' is nil", name))
	}

	m.mutex.RLock()
	_, exists := m.states[name]
	m.mutex.RUnlock()
	if exists {
		return nil, NewDuplicateStateError(m.name, name)
	}

	state, err := safeBuildState(factory, m, name, host)
	if err != nil {
		return nil, &ConfigurationError{
			Component: "AddState",
			Issue:     fmt.Sprintf("factory for state '%s' failed", name),
			Err:       err,
		}
	}
	if state == nil || reflect.ValueOf(state).Kind() == reflect.Ptr && reflect.ValueOf(state).IsNil() {
		return nil, NewConfigurationError("AddState", fmt.Sprintf("factory for state '%s' returned nil", name))
	}
	if state.Name() != name {
		return nil, NewConfigurationError("AddState",
			fmt.Sprintf("factory for state '%s' returned a state named '%s'", name, state.Name()))
	}

	m.mutex.Lock()
	if _, exists := m.states[name]; exists {
		m.mutex.Unlock()
		return nil, NewDuplicateStateError(m.name, name)
	}
	m.states[name] = state
	m.order = append(m.order, name)
	m.mutex.Unlock()

	m.emit(LifecycleEvent{Kind: EventStateAdded, State: name})
	return state, nil
}

// MustAddState is like AddState but panics on error
func (m *Machine) MustAddState(name string, factory StateFactory, host any) State {
	state, err := m.AddState(name, factory, host)
	if err != nil {
		panic(err)
	}
	return state
}

// GetState returns the state registered under name
func (m *Machine) GetState(name string) (State, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	state, ok := m.states[name]
	if !ok {
		return nil, NewStateNotFoundError(m.name, name)
	}
	return state, nil
}

// StateAs returns the state registered under name as its concrete type T
func StateAs[T State](m *Machine, name string) (T, error) {
	var zero T

	state, err := m.GetState(name)
	if err != nil {
		return zero, err
	}

	typed, ok := state.(T)
	if !ok {
		return zero, NewConfigurationError("StateAs",
			fmt.Sprintf("state '%s' is %T, not %s", name, state, reflect.TypeOf((*T)(nil)).Elem()))
	}
	return typed, nil
}

// States returns every registered state in registration order
func (m *Machine) States() []State {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make([]State, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.states[name])
	}
	return out
}

// StateNames returns every registered name in registration order
func (m *Machine) StateNames() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return slices.Clone(m.order)
}

// AddTransition permits moving from one registered state to another. Each
// (from, to) pair may be registered once. A state may list itself.
func (m *Machine) AddTransition(from, to string, opts ...TransitionOption) error {
	t := &Transition{From: from, To: to}
	for _, opt := range opts {
		opt(t)
	}

	m.mutex.Lock()
	if _, ok := m.states[from]; !ok {
		m.mutex.Unlock()
		return NewStateNotFoundError(m.name, from)
	}
	if _, ok := m.states[to]; !ok {
		m.mutex.Unlock()
		return NewStateNotFoundError(m.name, to)
	}
	if err := m.transitions.add(t); err != nil {
		m.mutex.Unlock()
		return err
	}
	m.mutex.Unlock()

	m.emit(LifecycleEvent{Kind: EventTransitionAdded, From: from, To: to})
	return nil
}

// MustAddTransition is like AddTransition but panics on error
func (m *Machine) MustAddTransition(from, to string, opts ...TransitionOption) {
	if err := m.AddTransition(from, to, opts...); err != nil {
		panic(err)
	}
}

// Transitions returns the outgoing edges of from in registration order
func (m *Machine) Transitions(from string) ([]*Transition, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if _, ok := m.states[from]; !ok {
		return nil, NewStateNotFoundError(m.name, from)
	}
	return m.transitions.from(from), nil
}

// TransitionCount returns the number of outgoing edges of from
func (m *Machine) TransitionCount(from string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.transitions.count(from)
}

// HasTransition reports whether the (from, to) edge exists
func (m *Machine) HasTransition(from, to string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.transitions.find(from, to) != nil
}

// Activate seeds the initial state. The state's entry hook is called with a
// nil previous state. Activating the state that is already active is a no-op;
// activating any other state once the machine is live fails with
// ErrAlreadyStarted.
func (m *Machine) Activate(name string, payload Payload) error {
	m.mutex.Lock()
	if err := m.checkNotTerminal("Activate"); err != nil {
		m.mutex.Unlock()
		return err
	}
	if m.active != nil {
		current := m.active.Name()
		m.mutex.Unlock()
		if current == name {
			return nil
		}
		return NewMachineError(ErrCodeAlreadyStarted, m.name, "Activate",
			fmt.Sprintf("state '%s' is already active", current))
	}
	if m.transitioning {
		m.mutex.Unlock()
		return NewMachineError(ErrCodeTransitionInProgress, m.name, "Activate", "activation already in progress")
	}
	state, ok := m.states[name]
	if !ok {
		m.mutex.Unlock()
		return NewStateNotFoundError(m.name, name)
	}
	m.active = state
	m.transitioning = true
	m.mutex.Unlock()

	id := m.newID()
	if err := safeHook("Enter", name, func() error { return state.Enter(nil, payload) }); err != nil {
		m.mutex.Lock()
		m.active = nil
		m.transitioning = false
		m.mutex.Unlock()

		terr := &TransitionError{Code: ErrCodeHookFailed, To: name, Reason: "entry hook failed", Err: err}
		m.emit(LifecycleEvent{Kind: EventTransitionFailed, TransitionID: id, To: name, Payload: payload, Err: terr})
		return terr
	}

	m.mutex.Lock()
	m.status = MachineRunning
	m.transitioning = false
	m.mutex.Unlock()

	m.emit(LifecycleEvent{Kind: EventStateEntered, TransitionID: id, State: name, To: name, Payload: payload})
	m.emit(LifecycleEvent{Kind: EventActivated, TransitionID: id, State: name, To: name, Payload: payload})
	return nil
}

// ActiveState returns the active state
func (m *Machine) ActiveState() (State, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.active == nil {
		return nil, NewMachineNotStartedError(m.name, "ActiveState")
	}
	return m.active, nil
}

// IsStarted reports whether the machine has a live active state
func (m *Machine) IsStarted() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.active != nil && m.status == MachineRunning
}

// FireTransition moves the machine from the active state to target.
//
// The edge is resolved and its guard and payload expectation are checked
// first; any failure there leaves the machine untouched. Then the active
// state's exit hook runs, the active state becomes target and target's entry
// hook runs. If the entry hook fails the source state is made active again and
// re-entered; if that also fails the machine is faulted.
func (m *Machine) FireTransition(target string, payload Payload) error {
	return m.fireFrom("", target, payload)
}

// fireFrom runs a transition on behalf of source. An empty source stands for
// whichever state is active.
func (m *Machine) fireFrom(source, target string, payload Payload) error {
	m.mutex.Lock()
	if err := m.checkLive("FireTransition"); err != nil {
		m.mutex.Unlock()
		return err
	}
	if m.transitioning {
		m.mutex.Unlock()
		return NewMachineError(ErrCodeTransitionInProgress, m.name, "FireTransition",
			fmt.Sprintf("cannot move to '%s' while another transition runs", target))
	}

	from := m.active
	if source != "" && from.Name() != source {
		m.mutex.Unlock()
		return NewMachineError(ErrCodeStateNotActive, m.name, "FireTransition",
			fmt.Sprintf("state '%s' is not active (active: '%s')", source, from.Name()))
	}

	id := m.newID()
	t, err := m.resolve(from.Name(), target, payload)
	if err != nil {
		m.mutex.Unlock()
		m.reject(id, from.Name(), target, payload, err)
		return err
	}
	to := m.states[t.To]
	m.transitioning = true
	m.mutex.Unlock()

	if t.guard != nil {
		allowed, guardErr := safeEvaluateGuard(t.guard, from, to, payload)
		if !allowed {
			m.finish()
			gerr := NewGuardFailedError(from.Name(), to.Name(), t.guardName)
			gerr.Err = guardErr
			m.reject(id, from.Name(), to.Name(), payload, gerr)
			return gerr
		}
	}

	m.emit(LifecycleEvent{Kind: EventTransitionStarted, TransitionID: id, From: from.Name(), To: to.Name(), Payload: payload})

	if err := safeHook("Exit", from.Name(), func() error { return from.Exit(to, payload) }); err != nil {
		m.finish()
		terr := &TransitionError{
			Code:   ErrCodeHookFailed,
			From:   from.Name(),
			To:     to.Name(),
			Reason: "exit hook failed",
			Err:    err,
		}
		m.emit(LifecycleEvent{Kind: EventTransitionFailed, TransitionID: id, From: from.Name(), To: to.Name(), Payload: payload, Err: terr})
		return terr
	}
	m.emit(LifecycleEvent{Kind: EventStateExited, TransitionID: id, State: from.Name(), From: from.Name(), To: to.Name(), Payload: payload})

	m.mutex.Lock()
	m.active = to
	m.mutex.Unlock()

	if err := safeHook("Enter", to.Name(), func() error { return to.Enter(from, payload) }); err != nil {
		return m.rollback(id, from, to, payload, err)
	}

	m.finish()
	m.emit(LifecycleEvent{Kind: EventStateEntered, TransitionID: id, State: to.Name(), From: from.Name(), To: to.Name(), Payload: payload})
	m.emit(LifecycleEvent{Kind: EventTransitioned, TransitionID: id, From: from.Name(), To: to.Name(), Payload: payload})
	return nil
}

// resolve validates a transition attempt. The caller holds the mutex.
func (m *Machine) resolve(from, target string, payload Payload) (*Transition, error) {
	if m.transitions.count(from) == 0 {
		return nil, NewNoTransitionsError(from, target)
	}

	t := m.transitions.find(from, target)
	if t == nil {
		return nil, NewTransitionNotFoundError(from, target)
	}

	if !payload.matches(t.payloadType) {
		return nil, &TransitionError{
			Code:   ErrCodePayloadMismatch,
			From:   from,
			To:     target,
			Reason: "unexpected payload",
			Err:    &PayloadError{Expected: t.PayloadType(), Actual: payload.TypeName()},
		}
	}
	return t, nil
}

// rollback restores the source state after the target's entry hook failed
func (m *Machine) rollback(id string, from, to State, payload Payload, enterErr error) error {
	m.mutex.Lock()
	m.active = from
	m.mutex.Unlock()

	terr := &TransitionError{
		Code:   ErrCodeHookFailed,
		From:   from.Name(),
		To:     to.Name(),
		Reason: "entry hook failed",
		Err:    enterErr,
	}

	if err := safeHook("Enter", from.Name(), func() error { return from.Enter(to, payload) }); err != nil {
		m.mutex.Lock()
		m.status = MachineFaulted
		m.transitioning = false
		m.mutex.Unlock()

		terr.Reason = "entry hook failed and the source state could not be re-entered"
		terr.Err = errors.Join(enterErr, err)
		m.emit(LifecycleEvent{Kind: EventTransitionFailed, TransitionID: id, From: from.Name(), To: to.Name(), Payload: payload, Err: terr})
		return terr
	}

	terr.RolledBack = true
	m.finish()
	m.emit(LifecycleEvent{Kind: EventStateEntered, TransitionID: id, State: from.Name(), From: to.Name(), To: from.Name(), Payload: payload})
	m.emit(LifecycleEvent{Kind: EventTransitionFailed, TransitionID: id, From: from.Name(), To: to.Name(), Payload: payload, Err: terr})
	return terr
}

func (m *Machine) reject(id, from, to string, payload Payload, err error) {
	m.emit(LifecycleEvent{Kind: EventTransitionRejected, TransitionID: id, From: from, To: to, Payload: payload, Err: err})
}

func (m *Machine) finish() {
	m.mutex.Lock()
	m.transitioning = false
	m.mutex.Unlock()
}

// checkLive fails unless the machine has an active state and is usable. The
// caller holds the mutex.
func (m *Machine) checkLive(operation string) error {
	if err := m.checkNotTerminal(operation); err != nil {
		return err
	}
	if m.active == nil {
		return NewMachineNotStartedError(m.name, operation)
	}
	return nil
}

func (m *Machine) checkNotTerminal(operation string) error {
	switch m.status {
	case MachineFaulted:
		return NewMachineError(ErrCodeMachineFaulted, m.name, operation,
			"a failed transition could not be rolled back")
	case MachineShutdown:
		return NewMachineError(ErrCodeNotStarted, m.name, operation, "machine has been shut down")
	}
	return nil
}

// Tick forwards one frame to the active state if it is enabled
func (m *Machine) Tick(dt time.Duration) error {
	state, err := m.liveState("Tick")
	if err != nil {
		return err
	}
	if !state.Enabled() {
		return nil
	}
	return safeHook("Tick", state.Name(), func() error {
		state.Tick(dt)
		return nil
	})
}

// Render forwards one frame to the active state if it is enabled and visible
func (m *Machine) Render(dt time.Duration) error {
	state, err := m.liveState("Render")
	if err != nil {
		return err
	}
	if !state.Enabled() || !state.Visible() {
		return nil
	}
	return safeHook("Render", state.Name(), func() error {
		state.Render(dt)
		return nil
	})
}

func (m *Machine) liveState(operation string) (State, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if err := m.checkLive(operation); err != nil {
		return nil, err
	}
	return m.active, nil
}

// InitialiseAll runs Initialise on every state in registration order and stops
// at the first failure
func (m *Machine) InitialiseAll() error {
	for _, state := range m.States() {
		if err := safeHook("Initialise", state.Name(), state.Initialise); err != nil {
			return err
		}
		m.emit(LifecycleEvent{Kind: EventInitialised, State: state.Name()})
	}
	return nil
}

// LoadResourcesAll runs LoadResources on every state in registration order and
// stops at the first failure
func (m *Machine) LoadResourcesAll() error {
	for _, state := range m.States() {
		if err := safeHook("LoadResources", state.Name(), state.LoadResources); err != nil {
			return err
		}
		m.emit(LifecycleEvent{Kind: EventResourcesLoaded, State: state.Name()})
	}
	return nil
}

// ShutdownAll runs Shutdown on every state in reverse registration order.
// Every state is shut down even if an earlier one fails; the failures are
// joined. The machine cannot be activated or transitioned afterwards. Calling
// ShutdownAll again does nothing.
func (m *Machine) ShutdownAll() error {
	m.mutex.Lock()
	if m.status == MachineShutdown {
		m.mutex.Unlock()
		return nil
	}
	if m.transitioning {
		m.mutex.Unlock()
		return NewMachineError(ErrCodeTransitionInProgress, m.name, "ShutdownAll", "a transition is running")
	}
	m.status = MachineShutdown
	m.active = nil
	m.mutex.Unlock()

	states := m.States()
	var errs []error
	for i := len(states) - 1; i >= 0; i-- {
		state := states[i]
		err := safeHook("Shutdown", state.Name(), state.Shutdown)
		if err != nil {
			errs = append(errs, err)
		}
		m.emit(LifecycleEvent{Kind: EventShutdown, State: state.Name(), Err: err})
	}
	return errors.Join(errs...)
}

func (m *Machine) emit(event LifecycleEvent) {
	event.Machine = m.name
	event.MachineID = m.id
	event.Time = m.clock()
	m.loggers.Log(event)
}

// safeEvaluateGuard safely evaluates a guard function with panic recovery
func safeEvaluateGuard(guard GuardFunc, from, to State, payload Payload) (result bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = false
			err = fmt.Errorf("guard panic: %v", r)
		}
	}()

	return guard(from, to, payload), nil
}

// safeHook runs a lifecycle hook, converting errors and panics into a HookError
func safeHook(hook, state string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewHookError(hook, state, fmt.Errorf("panic: %v", r))
		}
	}()

	if hookErr := fn(); hookErr != nil {
		return NewHookError(hook, state, hookErr)
	}
	return nil
}

func safeBuildState(factory StateFactory, m *Machine, name string, host any) (state State, err error) {
	defer func() {
		if r := recover(); r != nil {
			state = nil
			err = fmt.Errorf("factory panic: %v", r)
		}
	}()

	return factory(m, name, host)
}
