package tickfsm

import (
	"time"
)

// EventKind identifies a lifecycle event emitted by a Machine
type EventKind int

const (
	// EventStateAdded is emitted after a state is registered
	EventStateAdded EventKind = iota
	// EventTransitionAdded is emitted after an edge is registered
	EventTransitionAdded
	// EventActivated is emitted after the initial state has been entered
	EventActivated
	// EventTransitionStarted is emitted once an attempt passed validation
	EventTransitionStarted
	// EventStateExited is emitted after a successful exit hook
	EventStateExited
	// EventStateEntered is emitted after a successful entry hook
	EventStateEntered
	// EventTransitioned is emitted when a transition completed
	EventTransitioned
	// EventTransitionRejected is emitted when validation failed; no hook ran
	EventTransitionRejected
	// EventTransitionFailed is emitted when a hook failed during a transition
	EventTransitionFailed
	// EventInitialised is emitted per state by InitialiseAll
	EventInitialised
	// EventResourcesLoaded is emitted per state by LoadResourcesAll
	EventResourcesLoaded
	// EventShutdown is emitted per state by ShutdownAll
	EventShutdown
)

var eventKindNames = [...]string{
	EventStateAdded:         "state_added",
	EventTransitionAdded:    "transition_added",
	EventActivated:          "activated",
	EventTransitionStarted:  "transition_started",
	EventStateExited:        "state_exited",
	EventStateEntered:       "state_entered",
	EventTransitioned:       "transitioned",
	EventTransitionRejected: "transition_rejected",
	EventTransitionFailed:   "transition_failed",
	EventInitialised:        "initialised",
	EventResourcesLoaded:    "resources_loaded",
	EventShutdown:           "shutdown",
}

func (k EventKind) String() string {
	if int(k) >= 0 && int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return "unknown"
}

// LifecycleEvent describes something the machine did
type LifecycleEvent struct {
	Kind      EventKind
	Machine   string
	MachineID string
	// TransitionID correlates the events of one FireTransition or Activate call
	TransitionID string
	State        string
	From         string
	To           string
	Payload      Payload
	Err          error
	Time         time.Time
}

// Logger receives lifecycle events. Implementations must not call back into
// the machine that emitted the event.
type Logger interface {
	Log(event LifecycleEvent)
}

// LoggerFunc adapts a function to the Logger interface
type LoggerFunc func(event LifecycleEvent)

// Log calls f(event)
func (f LoggerFunc) Log(event LifecycleEvent) {
	f(event)
}

// NopLogger discards every event
type NopLogger struct{}

// Log implements Logger
func (NopLogger) Log(LifecycleEvent) {}

// loggerSet fans an event out to several loggers. A panicking logger is
// isolated from the others and from the machine.
type loggerSet struct {
	loggers []Logger
}

func (ls *loggerSet) add(loggers ...Logger) {
	for _, l := range loggers {
		if l != nil {
			ls.loggers = append(ls.loggers, l)
		}
	}
}

func (ls *loggerSet) Log(event LifecycleEvent) {
	for _, l := range ls.loggers {
		func() {
			defer func() {
				_ = recover()
			}()
			l.Log(event)
		}()
	}
}
