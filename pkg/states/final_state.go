package states

import (
	"sync"

	"github.com/anggasct/tickfsm"
)

// FinalState represents a terminal state. It records how it was reached and
// optionally notifies the host.
type FinalState struct {
	*tickfsm.BaseState

	mutex   sync.RWMutex
	reached bool
	from    string
	payload tickfsm.Payload
	onReach func(s *FinalState, previous tickfsm.State, payload tickfsm.Payload)
}

// NewFinal returns a factory for final states. onReach may be nil.
func NewFinal(onReach func(s *FinalState, previous tickfsm.State, payload tickfsm.Payload)) tickfsm.StateFactory {
	return func(m *tickfsm.Machine, name string, host any) (tickfsm.State, error) {
		return &FinalState{
			BaseState: tickfsm.NewBaseState(m, name, host),
			onReach:   onReach,
		}, nil
	}
}

// Enter marks the final state reached
func (s *FinalState) Enter(previous tickfsm.State, payload tickfsm.Payload) error {
	if err := s.BaseState.Enter(previous, payload); err != nil {
		return err
	}

	s.mutex.Lock()
	s.reached = true
	s.payload = payload
	s.from = ""
	if previous != nil {
		s.from = previous.Name()
	}
	s.mutex.Unlock()

	if s.onReach != nil {
		s.onReach(s, previous, payload)
	}
	return nil
}

// IsFinal returns true for final states
func (s *FinalState) IsFinal() bool {
	return true
}

// Reached reports whether the state has been entered
func (s *FinalState) Reached() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.reached
}

// ReachedFrom returns the name of the state the final state was entered from
func (s *FinalState) ReachedFrom() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.from
}

// Payload returns the payload the final state was entered with
func (s *FinalState) Payload() tickfsm.Payload {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.payload
}

// IsFinal reports whether state declares itself terminal
func IsFinal(state tickfsm.State) bool {
	f, ok := state.(interface{ IsFinal() bool })
	return ok && f.IsFinal()
}
