package tickfsm

import (
	"reflect"
)

// GuardFunc decides whether a transition attempt may proceed. It is evaluated
// after the edge is resolved and before any hook runs.
type GuardFunc func(from, to State, payload Payload) bool

// Transition is a permitted directed move between two registered states
type Transition struct {
	From        string
	To          string
	Description string

	guard       GuardFunc
	guardName   string
	payloadType reflect.Type
}

// TransitionOption configures a transition at registration
type TransitionOption func(*Transition)

// WithGuard gates the transition on guard
func WithGuard(guard GuardFunc) TransitionOption {
	return func(t *Transition) {
		t.guard = guard
	}
}

// WithNamedGuard gates the transition on guard and reports name in errors,
// logs and diagrams
func WithNamedGuard(name string, guard GuardFunc) TransitionOption {
	return func(t *Transition) {
		t.guard = guard
		t.guardName = name
	}
}

// ExpectPayload declares that the transition must be fired with a payload
// assignable to T. Any other payload, including none, is rejected before the
// exit hook runs.
func ExpectPayload[T any]() TransitionOption {
	return func(t *Transition) {
		t.payloadType = reflect.TypeOf((*T)(nil)).Elem()
	}
}

// WithDescription attaches a human readable label
func WithDescription(description string) TransitionOption {
	return func(t *Transition) {
		t.Description = description
	}
}

// HasGuard reports whether a guard other than always-allow is set
func (t *Transition) HasGuard() bool {
	return t.guard != nil
}

// GuardName returns the guard's name, if one was given
func (t *Transition) GuardName() string {
	return t.guardName
}

// PayloadType returns the expected payload type name, or "" when any payload
// is accepted
func (t *Transition) PayloadType() string {
	if t.payloadType == nil {
		return ""
	}
	return t.payloadType.String()
}

// transitionTable holds the outgoing edges of every state in registration order
type transitionTable struct {
	edges map[string][]*Transition
}

func newTransitionTable() *transitionTable {
	return &transitionTable{
		edges: make(map[string][]*Transition),
	}
}

func (tt *transitionTable) add(t *Transition) error {
	if tt.find(t.From, t.To) != nil {
		return NewDuplicateTransitionError(t.From, t.To)
	}
	tt.edges[t.From] = append(tt.edges[t.From], t)
	return nil
}

func (tt *transitionTable) find(from, to string) *Transition {
	for _, t := range tt.edges[from] {
		if t.To == to {
			return t
		}
	}
	return nil
}

func (tt *transitionTable) from(name string) []*Transition {
	edges := tt.edges[name]
	out := make([]*Transition, len(edges))
	copy(out, edges)
	return out
}

func (tt *transitionTable) count(name string) int {
	return len(tt.edges[name])
}
