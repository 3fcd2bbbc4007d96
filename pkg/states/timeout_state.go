package states

import (
	"sync"
	"time"

	"github.com/anggasct/tickfsm"
)

// Elapsed is the default payload a Timeout fires with
type Elapsed struct {
	State    string
	Duration time.Duration
}

// TimeoutState represents a state that transitions after a timeout. Time is
// accumulated from the deltas passed to Tick, so a disabled or inactive state
// does not advance.
type TimeoutState struct {
	*tickfsm.BaseState

	mutex   sync.RWMutex
	timeout time.Duration
	target  string
	payload func(s *TimeoutState, elapsed time.Duration) tickfsm.Payload
	retry   bool
	onTick  func(s *TimeoutState, dt time.Duration)

	elapsed time.Duration
	fired   bool
	lastErr error
}

// TimeoutOption configures a TimeoutState
type TimeoutOption func(*TimeoutState)

// WithTimeoutPayload sets the payload built when the timeout fires
func WithTimeoutPayload(build func(s *TimeoutState, elapsed time.Duration) tickfsm.Payload) TimeoutOption {
	return func(s *TimeoutState) {
		s.payload = build
	}
}

// WithRetry makes the state fire again on the next tick when the transition
// was refused
func WithRetry() TimeoutOption {
	return func(s *TimeoutState) {
		s.retry = true
	}
}

// WithTickAction runs action on every tick before the timeout is checked
func WithTickAction(action func(s *TimeoutState, dt time.Duration)) TimeoutOption {
	return func(s *TimeoutState) {
		s.onTick = action
	}
}

// NewTimeout returns a factory for states that fire a transition to target
// once timeout has accumulated
func NewTimeout(timeout time.Duration, target string, opts ...TimeoutOption) tickfsm.StateFactory {
	return func(m *tickfsm.Machine, name string, host any) (tickfsm.State, error) {
		if timeout < 0 {
			return nil, tickfsm.NewConfigurationError("TimeoutState", "timeout cannot be negative")
		}
		if target == "" {
			return nil, tickfsm.NewConfigurationError("TimeoutState", "target state is required")
		}

		s := &TimeoutState{
			BaseState: tickfsm.NewBaseState(m, name, host),
			timeout:   timeout,
			target:    target,
			payload:   defaultTimeoutPayload,
		}
		for _, opt := range opts {
			opt(s)
		}
		return s, nil
	}
}

func defaultTimeoutPayload(s *TimeoutState, elapsed time.Duration) tickfsm.Payload {
	return tickfsm.NewPayload(Elapsed{State: s.Name(), Duration: elapsed})
}

// GetTimeout returns the timeout duration
func (s *TimeoutState) GetTimeout() time.Duration {
	return s.timeout
}

// Target returns the state the timeout transitions to
func (s *TimeoutState) Target() string {
	return s.target
}

// Elapsed returns the time accumulated since the last entry
func (s *TimeoutState) Elapsed() time.Duration {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.elapsed
}

// Remaining returns the time left before the timeout fires
func (s *TimeoutState) Remaining() time.Duration {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return max(s.timeout-s.elapsed, 0)
}

// Err returns the error of the last refused transition, if any
func (s *TimeoutState) Err() error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastErr
}

// Enter resets the timer and enters the state
func (s *TimeoutState) Enter(previous tickfsm.State, payload tickfsm.Payload) error {
	s.mutex.Lock()
	s.elapsed = 0
	s.fired = false
	s.lastErr = nil
	s.mutex.Unlock()

	return s.BaseState.Enter(previous, payload)
}

// Tick advances the timer and fires the transition once it has run out
func (s *TimeoutState) Tick(dt time.Duration) {
	if s.onTick != nil {
		s.onTick(s, dt)
	}

	s.mutex.Lock()
	if s.fired {
		s.mutex.Unlock()
		return
	}
	s.elapsed += dt
	if s.elapsed < s.timeout {
		s.mutex.Unlock()
		return
	}
	s.fired = true
	elapsed := s.elapsed
	s.mutex.Unlock()

	// The machine calls Exit on this state while firing, so the lock must be released.
	err := s.FireTransition(s.target, s.payload(s, elapsed))

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastErr = err
	if err != nil && s.retry {
		s.fired = false
	}
}
