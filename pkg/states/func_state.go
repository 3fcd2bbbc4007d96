// Package states provides reusable state variants for tickfsm machines
package states

import (
	"sync"
	"time"

	"github.com/anggasct/tickfsm"
)

// EntryAction runs when a state is entered
type EntryAction func(s *Func, previous tickfsm.State, payload tickfsm.Payload) error

// ExitAction runs when a state is exited
type ExitAction func(s *Func, next tickfsm.State, payload tickfsm.Payload) error

// FrameAction runs on every forwarded Tick or Render
type FrameAction func(s *Func, dt time.Duration)

// StepAction runs for Initialise, LoadResources or Shutdown
type StepAction func(s *Func) error

// Func is a state assembled from closures instead of a dedicated type
type Func struct {
	*tickfsm.BaseState

	mutex          sync.RWMutex
	initialise     StepAction
	loadResources  StepAction
	shutdown       StepAction
	entryAction    EntryAction
	exitAction     ExitAction
	tickActivity   FrameAction
	renderActivity FrameAction
}

// NewFunc returns a factory for Func states. configure is called once per
// constructed state to attach its actions.
func NewFunc(configure func(s *Func)) tickfsm.StateFactory {
	return func(m *tickfsm.Machine, name string, host any) (tickfsm.State, error) {
		s := &Func{BaseState: tickfsm.NewBaseState(m, name, host)}
		if configure != nil {
			configure(s)
		}
		return s, nil
	}
}

// AddEntryAction adds an action to execute when entering the state. Actions
// run in the order added; the first failure aborts the entry.
func (s *Func) AddEntryAction(action EntryAction) *Func {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	originalAction := s.entryAction
	if originalAction == nil {
		s.entryAction = action
	} else {
		s.entryAction = func(fs *Func, previous tickfsm.State, payload tickfsm.Payload) error {
			if err := originalAction(fs, previous, payload); err != nil {
				return err
			}
			return action(fs, previous, payload)
		}
	}

	return s
}

// AddExitAction adds an action to execute when exiting the state
func (s *Func) AddExitAction(action ExitAction) *Func {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	originalAction := s.exitAction
	if originalAction == nil {
		s.exitAction = action
	} else {
		s.exitAction = func(fs *Func, next tickfsm.State, payload tickfsm.Payload) error {
			if err := originalAction(fs, next, payload); err != nil {
				return err
			}
			return action(fs, next, payload)
		}
	}

	return s
}

// OnTick sets the per-frame update
func (s *Func) OnTick(action FrameAction) *Func {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.tickActivity = action
	return s
}

// OnRender sets the per-frame draw
func (s *Func) OnRender(action FrameAction) *Func {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.renderActivity = action
	return s
}

// OnInitialise sets the one-time setup step
func (s *Func) OnInitialise(action StepAction) *Func {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.initialise = action
	return s
}

// OnLoadResources sets the one-time resource step
func (s *Func) OnLoadResources(action StepAction) *Func {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.loadResources = action
	return s
}

// OnShutdown sets the teardown step
func (s *Func) OnShutdown(action StepAction) *Func {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.shutdown = action
	return s
}

func (s *Func) Initialise() error {
	return s.InitialiseOnce(s.step(func() StepAction { return s.initialise }))
}

func (s *Func) LoadResources() error {
	return s.LoadResourcesOnce(s.step(func() StepAction { return s.loadResources }))
}

func (s *Func) Shutdown() error {
	if fn := s.step(func() StepAction { return s.shutdown }); fn != nil {
		return fn()
	}
	return nil
}

func (s *Func) step(get func() StepAction) func() error {
	s.mutex.RLock()
	action := get()
	s.mutex.RUnlock()

	if action == nil {
		return nil
	}
	return func() error { return action(s) }
}

// Enter runs the entry actions, then enables and shows the state
func (s *Func) Enter(previous tickfsm.State, payload tickfsm.Payload) error {
	s.mutex.RLock()
	action := s.entryAction
	s.mutex.RUnlock()

	if action != nil {
		if err := action(s, previous, payload); err != nil {
			return err
		}
	}
	return s.BaseState.Enter(previous, payload)
}

// Exit runs the exit actions, then hides and disables the state
func (s *Func) Exit(next tickfsm.State, payload tickfsm.Payload) error {
	s.mutex.RLock()
	action := s.exitAction
	s.mutex.RUnlock()

	if action != nil {
		if err := action(s, next, payload); err != nil {
			return err
		}
	}
	return s.BaseState.Exit(next, payload)
}

func (s *Func) Tick(dt time.Duration) {
	s.mutex.RLock()
	action := s.tickActivity
	s.mutex.RUnlock()

	if action != nil {
		action(s, dt)
	}
}

func (s *Func) Render(dt time.Duration) {
	s.mutex.RLock()
	action := s.renderActivity
	s.mutex.RUnlock()

	if action != nil {
		action(s, dt)
	}
}
