package tickfsm

import (
	"errors"
	"fmt"
)

// ErrorCode represents specific error conditions in the state machine
type ErrorCode int

const (
	// No error occurred
	ErrCodeNone ErrorCode = iota
	// State was not found in the machine
	ErrCodeStateNotFound
	// A state with the same name is already registered
	ErrCodeDuplicateState
	// The (from, to) edge is already registered
	ErrCodeDuplicateTransition
	// The active state has no outgoing edges
	ErrCodeNoTransitionsDefined
	// The target is not among the active state's edges
	ErrCodeTransitionNotFound
	// Guard condition rejected the transition
	ErrCodeGuardFailed
	// Payload does not have the shape the transition expects
	ErrCodePayloadMismatch
	// Machine has no active state yet
	ErrCodeNotStarted
	// Machine already has an active state
	ErrCodeAlreadyStarted
	// Another transition is being executed
	ErrCodeTransitionInProgress
	// The calling state is not the active state
	ErrCodeStateNotActive
	// A lifecycle hook returned an error or panicked
	ErrCodeHookFailed
	// A failed transition could not be rolled back
	ErrCodeMachineFaulted
	// Machine configuration is invalid
	ErrCodeInvalidConfiguration
)

// Sentinel errors, one per code, for use with errors.Is.
var (
	ErrStateNotFound        = errors.New("state not found")
	ErrDuplicateState       = errors.New("duplicate state")
	ErrDuplicateTransition  = errors.New("duplicate transition")
	ErrNoTransitionsDefined = errors.New("no transitions defined")
	ErrTransitionNotFound   = errors.New("transition not found")
	ErrGuardFailed          = errors.New("guard failed")
	ErrPayloadMismatch      = errors.New("payload mismatch")
	ErrNotStarted           = errors.New("machine not started")
	ErrAlreadyStarted       = errors.New("machine already started")
	ErrTransitionInProgress = errors.New("transition in progress")
	ErrStateNotActive       = errors.New("state not active")
	ErrHookFailed           = errors.New("hook failed")
	ErrMachineFaulted       = errors.New("machine faulted")
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

var sentinels = map[ErrorCode]error{
	ErrCodeStateNotFound:        ErrStateNotFound,
	ErrCodeDuplicateState:       ErrDuplicateState,
	ErrCodeDuplicateTransition:  ErrDuplicateTransition,
	ErrCodeNoTransitionsDefined: ErrNoTransitionsDefined,
	ErrCodeTransitionNotFound:   ErrTransitionNotFound,
	ErrCodeGuardFailed:          ErrGuardFailed,
	ErrCodePayloadMismatch:      ErrPayloadMismatch,
	ErrCodeNotStarted:           ErrNotStarted,
	ErrCodeAlreadyStarted:       ErrAlreadyStarted,
	ErrCodeTransitionInProgress: ErrTransitionInProgress,
	ErrCodeStateNotActive:       ErrStateNotActive,
	ErrCodeHookFailed:           ErrHookFailed,
	ErrCodeMachineFaulted:       ErrMachineFaulted,
	ErrCodeInvalidConfiguration: ErrInvalidConfiguration,
}

// Sentinel returns the sentinel error for code, or nil for ErrCodeNone.
func (c ErrorCode) Sentinel() error {
	return sentinels[c]
}

func (c ErrorCode) String() string {
	if err := sentinels[c]; err != nil {
		return err.Error()
	}
	return "none"
}

// StateError represents state-related errors
type StateError struct {
	Code      ErrorCode
	Machine   string
	StateName string
	Message   string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state error [%s/%s]: %s", e.Machine, e.StateName, e.Message)
}

// Is matches the sentinel for the error's code.
func (e *StateError) Is(target error) bool {
	return target == e.Code.Sentinel()
}

// NewStateNotFoundError creates a new state not found error
func NewStateNotFoundError(machine, name string) *StateError {
	return &StateError{
		Code:      ErrCodeStateNotFound,
		Machine:   machine,
		StateName: name,
		Message:   fmt.Sprintf("state '%s' not found", name),
	}
}

// NewDuplicateStateError creates an error for a name that is already registered
func NewDuplicateStateError(machine, name string) *StateError {
	return &StateError{
		Code:      ErrCodeDuplicateState,
		Machine:   machine,
		StateName: name,
		Message:   fmt.Sprintf("state '%s' is already registered", name),
	}
}

// TransitionError represents transition-related errors
type TransitionError struct {
	Code   ErrorCode
	From   string
	To     string
	Reason string
	// RolledBack is set when a hook failed after the exit hook ran and the
	// source state was successfully re-entered.
	RolledBack bool
	Err        error
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("transition error [%s->%s]: %s", e.From, e.To, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the sentinel for the error's code.
func (e *TransitionError) Is(target error) bool {
	return target == e.Code.Sentinel()
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// NewTransitionError creates a new transition error with custom values
func NewTransitionError(code ErrorCode, from, to, reason string) *TransitionError {
	return &TransitionError{
		Code:   code,
		From:   from,
		To:     to,
		Reason: reason,
	}
}

// NewDuplicateTransitionError creates an error for an edge that already exists
func NewDuplicateTransitionError(from, to string) *TransitionError {
	return NewTransitionError(ErrCodeDuplicateTransition, from, to, "transition already defined")
}

// NewNoTransitionsError creates an error for a source state without edges
func NewNoTransitionsError(from, to string) *TransitionError {
	return NewTransitionError(ErrCodeNoTransitionsDefined, from, to,
		fmt.Sprintf("state '%s' has no transitions", from))
}

// NewTransitionNotFoundError creates an error for a target that is not an edge of the source
func NewTransitionNotFoundError(from, to string) *TransitionError {
	return NewTransitionError(ErrCodeTransitionNotFound, from, to,
		fmt.Sprintf("no transition from '%s' to '%s'", from, to))
}

// GuardError represents guard condition failures
type GuardError struct {
	From  string
	To    string
	Guard string
	// Err holds the recovered panic, if the guard panicked.
	Err error
}

func (e *GuardError) Error() string {
	msg := fmt.Sprintf("guard rejected transition [%s->%s]", e.From, e.To)
	if e.Guard != "" {
		msg += ": " + e.Guard
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches ErrGuardFailed.
func (e *GuardError) Is(target error) bool {
	return target == ErrGuardFailed
}

func (e *GuardError) Unwrap() error {
	return e.Err
}

// NewGuardFailedError creates a new guard rejected error
func NewGuardFailedError(from, to, guardName string) *GuardError {
	return &GuardError{
		From:  from,
		To:    to,
		Guard: guardName,
	}
}

// ConfigurationError represents machine configuration issues
type ConfigurationError struct {
	Component string
	Issue     string
	Err       error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error in %s: %s: %v", e.Component, e.Issue, e.Err)
	}
	return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Issue)
}

// Is matches ErrInvalidConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(component, issue string) *ConfigurationError {
	return &ConfigurationError{
		Component: component,
		Issue:     issue,
	}
}

// MachineError represents state machine operation errors
type MachineError struct {
	Code      ErrorCode
	Machine   string
	Operation string
	Message   string
}

func (e *MachineError) Error() string {
	return fmt.Sprintf("machine '%s' error during %s: %s", e.Machine, e.Operation, e.Message)
}

// Is matches the sentinel for the error's code.
func (e *MachineError) Is(target error) bool {
	return target == e.Code.Sentinel()
}

// NewMachineNotStartedError creates a new machine not started error
func NewMachineNotStartedError(machine, operation string) *MachineError {
	return &MachineError{
		Code:      ErrCodeNotStarted,
		Machine:   machine,
		Operation: operation,
		Message:   "state machine has no active state",
	}
}

// NewMachineError creates a new machine error
func NewMachineError(code ErrorCode, machine, operation, message string) *MachineError {
	return &MachineError{
		Code:      code,
		Machine:   machine,
		Operation: operation,
		Message:   message,
	}
}

// HookError represents a lifecycle hook that returned an error or panicked
type HookError struct {
	Hook        string
	State       string
	OriginalErr error
}

func (e *HookError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("hook '%s' failed in state '%s': %v", e.Hook, e.State, e.OriginalErr)
	}
	return fmt.Sprintf("hook '%s' failed in state '%s'", e.Hook, e.State)
}

// Is matches ErrHookFailed.
func (e *HookError) Is(target error) bool {
	return target == ErrHookFailed
}

func (e *HookError) Unwrap() error {
	return e.OriginalErr
}

// NewHookError creates a new hook execution error
func NewHookError(hook, state string, err error) *HookError {
	return &HookError{
		Hook:        hook,
		State:       state,
		OriginalErr: err,
	}
}

// IsStateError checks if an error is a StateError
func IsStateError(err error) bool {
	var e *StateError
	return errors.As(err, &e)
}

// IsGuardError checks if an error is a GuardError
func IsGuardError(err error) bool {
	var e *GuardError
	return errors.As(err, &e)
}

// IsHookError checks if an error is, or wraps, a HookError
func IsHookError(err error) bool {
	var e *HookError
	return errors.As(err, &e)
}

// IsConfigurationError reports whether err belongs to the set-up class:
// unknown or duplicate states, duplicate edges and invalid configuration.
// These are programmer errors and should not be recovered from.
func IsConfigurationError(err error) bool {
	switch GetErrorCode(err) {
	case ErrCodeStateNotFound, ErrCodeDuplicateState, ErrCodeDuplicateTransition, ErrCodeInvalidConfiguration:
		return true
	}
	return false
}

// IsTransitionError reports whether err belongs to the runtime class raised
// by FireTransition. The calling state decides whether to ignore or propagate.
func IsTransitionError(err error) bool {
	switch GetErrorCode(err) {
	case ErrCodeNoTransitionsDefined, ErrCodeTransitionNotFound, ErrCodeGuardFailed,
		ErrCodePayloadMismatch, ErrCodeHookFailed:
		return true
	}
	return false
}

// GetErrorCode returns the error code for known error types
func GetErrorCode(err error) ErrorCode {
	var (
		stateErr   *StateError
		transErr   *TransitionError
		machineErr *MachineError
		guardErr   *GuardError
		configErr  *ConfigurationError
		hookErr    *HookError
		payloadErr *PayloadError
	)

	switch {
	case errors.As(err, &stateErr):
		return stateErr.Code
	case errors.As(err, &transErr):
		return transErr.Code
	case errors.As(err, &machineErr):
		return machineErr.Code
	case errors.As(err, &guardErr):
		return ErrCodeGuardFailed
	case errors.As(err, &configErr):
		return ErrCodeInvalidConfiguration
	case errors.As(err, &hookErr):
		return ErrCodeHookFailed
	case errors.As(err, &payloadErr):
		return ErrCodePayloadMismatch
	default:
		return ErrCodeNone
	}
}
