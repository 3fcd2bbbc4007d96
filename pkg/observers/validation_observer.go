package observers

import (
	"fmt"
	"sync"

	"github.com/anggasct/tickfsm"
)

// ValidationObserver checks machine behavior against an expected graph and
// the exit/enter protocol: every exit must be followed by an entry within the
// same transition and only one state may be active at a time
type ValidationObserver struct {
	expectedStates     map[string]bool
	visitedStates      map[string]bool
	allowedTransitions map[string]map[string]bool
	active             map[string]string
	exited             map[string]string
	violations         []string
	mutex              sync.RWMutex
}

// NewValidationObserver creates a new validation observer
func NewValidationObserver() *ValidationObserver {
	return &ValidationObserver{
		expectedStates:     make(map[string]bool),
		visitedStates:      make(map[string]bool),
		allowedTransitions: make(map[string]map[string]bool),
		active:             make(map[string]string),
		exited:             make(map[string]string),
		violations:         make([]string, 0),
	}
}

// AddExpectedState adds an expected state
func (o *ValidationObserver) AddExpectedState(stateName string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.expectedStates[stateName] = true
}

// AddAllowedTransition adds an allowed transition
func (o *ValidationObserver) AddAllowedTransition(from, to string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if _, exists := o.allowedTransitions[from]; !exists {
		o.allowedTransitions[from] = make(map[string]bool)
	}

	o.allowedTransitions[from][to] = true
}

// ExpectMachine registers every state and edge of m as expected
func (o *ValidationObserver) ExpectMachine(m *tickfsm.Machine) {
	for _, name := range m.StateNames() {
		o.AddExpectedState(name)
		edges, _ := m.Transitions(name)
		for _, t := range edges {
			o.AddAllowedTransition(t.From, t.To)
		}
	}
}

// Log implements tickfsm.Logger
func (o *ValidationObserver) Log(event tickfsm.LifecycleEvent) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	switch event.Kind {
	case tickfsm.EventStateEntered:
		if current, ok := o.active[event.MachineID]; ok && (event.From != "" || current != event.State) {
			o.addViolation("state '%s' entered while '%s' is active", event.State, current)
		}
		delete(o.exited, event.TransitionID)
		o.active[event.MachineID] = event.State
		o.visitedStates[event.State] = true

	case tickfsm.EventStateExited:
		if current := o.active[event.MachineID]; current != event.State {
			o.addViolation("state '%s' exited but '%s' is active", event.State, current)
		}
		o.exited[event.TransitionID] = event.State
		delete(o.active, event.MachineID)

	case tickfsm.EventTransitioned:
		if len(o.allowedTransitions) > 0 && !o.allowedTransitions[event.From][event.To] {
			o.addViolation("invalid transition from '%s' to '%s'", event.From, event.To)
		}

	case tickfsm.EventTransitionFailed:
		if state, ok := o.exited[event.TransitionID]; ok {
			o.addViolation("state '%s' exited without a following entry", state)
			delete(o.exited, event.TransitionID)
		}

	case tickfsm.EventShutdown:
		delete(o.active, event.MachineID)
	}
}

// addViolation records a violation. The caller holds the mutex.
func (o *ValidationObserver) addViolation(format string, args ...any) {
	o.violations = append(o.violations, fmt.Sprintf(format, args...))
}

// GetViolations returns all validation violations
func (o *ValidationObserver) GetViolations() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make([]string, len(o.violations))
	copy(result, o.violations)
	return result
}

// GetUnvisitedStates returns states that were expected but not visited
func (o *ValidationObserver) GetUnvisitedStates() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	var unvisited []string
	for state := range o.expectedStates {
		if !o.visitedStates[state] {
			unvisited = append(unvisited, state)
		}
	}

	return unvisited
}

// HasViolations returns whether any violations occurred
func (o *ValidationObserver) HasViolations() bool {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.violations) > 0
}

// Reset resets the validation state
func (o *ValidationObserver) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.visitedStates = make(map[string]bool)
	o.active = make(map[string]string)
	o.exited = make(map[string]string)
	o.violations = make([]string, 0)
}
