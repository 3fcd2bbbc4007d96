package tickfsm

import (
	"sync"
	"time"
)

// State is a named unit of behavior owned by a Machine.
//
// Initialise and LoadResources are one-time steps that must be safe to call
// again. Enter and Exit are called exactly once per activation and
// deactivation. Tick and Render are forwarded by the machine every frame while
// the state is active; Tick only when Enabled, Render only when Enabled and
// Visible.
type State interface {
	Name() string
	Machine() *Machine

	Initialise() error
	LoadResources() error

	// Enter receives the state transitioned from (nil on activation) and the
	// payload the transition was fired with.
	Enter(previous State, payload Payload) error
	// Exit receives the state being transitioned to and the same payload.
	Exit(next State, payload Payload) error

	Tick(dt time.Duration)
	Render(dt time.Duration)

	Shutdown() error

	Enabled() bool
	Visible() bool
}

// StateFactory constructs a state. It receives the owning machine, the name
// the state is registered under and the host value passed to AddState.
type StateFactory func(m *Machine, name string, host any) (State, error)

// BaseState provides the bookkeeping every state needs: identity, the owning
// machine, the host value and the lifecycle flags. Concrete states embed it and
// override the hooks they care about.
type BaseState struct {
	name    string
	machine *Machine
	host    any

	mutex         sync.RWMutex
	initialised   bool
	contentLoaded bool
	enabled       bool
	visible       bool
}

// NewBaseState creates a base state with all flags cleared
func NewBaseState(m *Machine, name string, host any) *BaseState {
	return &BaseState{
		name:    name,
		machine: m,
		host:    host,
	}
}

// Name returns the registered name
func (s *BaseState) Name() string {
	return s.name
}

// Machine returns the owning machine
func (s *BaseState) Machine() *Machine {
	return s.machine
}

// Host returns the opaque host value given at registration
func (s *BaseState) Host() any {
	return s.host
}

// String implements fmt.Stringer
func (s *BaseState) String() string {
	return s.name
}

// Initialise marks the state initialised
func (s *BaseState) Initialise() error {
	return s.InitialiseOnce(nil)
}

// LoadResources marks the state's content loaded
func (s *BaseState) LoadResources() error {
	return s.LoadResourcesOnce(nil)
}

// InitialiseOnce runs fn the first time it is called and records success.
// Later calls return nil without running fn. A failed fn leaves the state
// uninitialised so the step can be retried.
func (s *BaseState) InitialiseOnce(fn func() error) error {
	return s.once(&s.initialised, fn)
}

// LoadResourcesOnce is the LoadResources counterpart of InitialiseOnce
func (s *BaseState) LoadResourcesOnce(fn func() error) error {
	return s.once(&s.contentLoaded, fn)
}

func (s *BaseState) once(flag *bool, fn func() error) error {
	s.mutex.RLock()
	done := *flag
	s.mutex.RUnlock()
	if done {
		return nil
	}

	if fn != nil {
		if err := fn(); err != nil {
			return err
		}
	}

	s.mutex.Lock()
	*flag = true
	s.mutex.Unlock()
	return nil
}

// Enter enables and shows the state
func (s *BaseState) Enter(previous State, payload Payload) error {
	s.Enable()
	s.Show()
	return nil
}

// Exit hides and disables the state
func (s *BaseState) Exit(next State, payload Payload) error {
	s.Hide()
	s.Disable()
	return nil
}

// Tick does nothing
func (s *BaseState) Tick(dt time.Duration) {}

// Render does nothing
func (s *BaseState) Render(dt time.Duration) {}

// Shutdown does nothing
func (s *BaseState) Shutdown() error {
	return nil
}

// FireTransition asks the machine to move from this state to target. It fails
// with ErrStateNotActive when this state is not the active one.
func (s *BaseState) FireTransition(target string, payload Payload) error {
	return s.machine.fireFrom(s.name, target, payload)
}

// Initialised reports whether Initialise has completed
func (s *BaseState) Initialised() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.initialised
}

// ContentLoaded reports whether LoadResources has completed
func (s *BaseState) ContentLoaded() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.contentLoaded
}

// Configured reports whether both one-time steps have completed
func (s *BaseState) Configured() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.initialised && s.contentLoaded
}

// Enabled reports whether the state receives ticks
func (s *BaseState) Enabled() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.enabled
}

// Visible reports whether the state is rendered
func (s *BaseState) Visible() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.visible
}

// Enable sets the enabled flag and returns its previous value
func (s *BaseState) Enable() bool {
	return s.swap(&s.enabled, func(bool) bool { return true })
}

// Disable clears the enabled flag and returns its previous value
func (s *BaseState) Disable() bool {
	return s.swap(&s.enabled, func(bool) bool { return false })
}

// ToggleEnabled flips the enabled flag and returns its previous value
func (s *BaseState) ToggleEnabled() bool {
	return s.swap(&s.enabled, func(v bool) bool { return !v })
}

// Show sets the visible flag and returns its previous value
func (s *BaseState) Show() bool {
	return s.swap(&s.visible, func(bool) bool { return true })
}

// Hide clears the visible flag and returns its previous value
func (s *BaseState) Hide() bool {
	return s.swap(&s.visible, func(bool) bool { return false })
}

// ToggleVisible flips the visible flag and returns its previous value
func (s *BaseState) ToggleVisible() bool {
	return s.swap(&s.visible, func(v bool) bool { return !v })
}

func (s *BaseState) swap(flag *bool, next func(bool) bool) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	prev := *flag
	*flag = next(prev)
	return prev
}
