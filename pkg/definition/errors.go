package definition

import (
	"errors"
	"fmt"

	"github.com/anggasct/tickfsm"
)

var (
	// ErrNameRequired indicates that a definition name is required.
	ErrNameRequired = errors.New("definition name is required")
	// ErrInitialStateRequired indicates that an initial state is required.
	ErrInitialStateRequired = errors.New("initial state is required")
	// ErrStateRequired indicates that at least one state is required.
	ErrStateRequired = errors.New("at least one state is required")
	// ErrInitialStateNotFound indicates that the initial state does not exist.
	ErrInitialStateNotFound = errors.New("initial state does not exist")
	// ErrStateNameRequired indicates that a state name is required.
	ErrStateNameRequired = errors.New("state name is required")
	// ErrDuplicateStateName indicates that a duplicate state name was found.
	ErrDuplicateStateName = errors.New("duplicate state name")
	// ErrStateKindRequired indicates that a state kind is required.
	ErrStateKindRequired = errors.New("state kind is required")
	// ErrTransitionFromRequired indicates that a transition source is required.
	ErrTransitionFromRequired = errors.New("transition from state is required")
	// ErrTransitionToRequired indicates that a transition target is required.
	ErrTransitionToRequired = errors.New("transition to state is required")
	// ErrTransitionFromNotFound indicates that a transition source does not exist.
	ErrTransitionFromNotFound = errors.New("transition from state does not exist")
	// ErrTransitionToNotFound indicates that a transition target does not exist.
	ErrTransitionToNotFound = errors.New("transition to state does not exist")
	// ErrDuplicateTransition indicates that the same edge is declared twice.
	ErrDuplicateTransition = errors.New("duplicate transition")
	// ErrUnknownKind indicates that no builder is registered for a state kind.
	ErrUnknownKind = errors.New("unknown state kind")
	// ErrUnknownGuard indicates that no guard is registered under a name.
	ErrUnknownGuard = errors.New("unknown guard")
	// ErrInvalidParam indicates a missing or malformed state parameter.
	ErrInvalidParam = errors.New("invalid state parameter")
	// ErrMalformedDefinition indicates a document that is not valid YAML or
	// does not match the definition schema.
	ErrMalformedDefinition = errors.New("malformed definition")
	// ErrUnreadableDefinition indicates the definition source could not be read.
	ErrUnreadableDefinition = errors.New("unreadable definition")
)

// invalid wraps err so it matches both err and tickfsm.ErrInvalidConfiguration
func invalid(err error, format string, args ...any) error {
	return &tickfsm.ConfigurationError{
		Component: "definition",
		Issue:     fmt.Sprintf(format, args...),
		Err:       err,
	}
}
