package tickfsm

import (
	"fmt"
	"reflect"
)

// Payload carries arbitrary data from the state firing a transition into the
// exit hook of the source and the entry hook of the destination. The machine
// never inspects the value; receivers recover it with PayloadAs.
type Payload struct {
	value any
}

// NoPayload is the empty payload.
var NoPayload = Payload{}

// NewPayload boxes v. A nil v produces an empty payload.
func NewPayload(v any) Payload {
	return Payload{value: v}
}

// IsEmpty reports whether the payload carries no value
func (p Payload) IsEmpty() bool {
	return p.value == nil
}

// Value returns the boxed value, or nil
func (p Payload) Value() any {
	return p.value
}

// TypeName returns the dynamic type of the boxed value, or "none"
func (p Payload) TypeName() string {
	if p.value == nil {
		return "none"
	}
	return reflect.TypeOf(p.value).String()
}

func (p Payload) String() string {
	if p.value == nil {
		return "<no payload>"
	}
	return fmt.Sprintf("%v", p.value)
}

// matches reports whether the boxed value can be used as a value of type t.
func (p Payload) matches(t reflect.Type) bool {
	if t == nil {
		return true
	}
	if p.value == nil {
		return false
	}
	return reflect.TypeOf(p.value).AssignableTo(t)
}

// PayloadError reports a payload whose dynamic type is not the expected one
type PayloadError struct {
	Expected string
	Actual   string
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("payload mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// Is matches ErrPayloadMismatch.
func (e *PayloadError) Is(target error) bool {
	return target == ErrPayloadMismatch
}

// PayloadAs recovers the boxed value as a T. An empty payload or a value of
// another type yields a *PayloadError; a receiver that cannot proceed without
// the value should return that error from its hook.
func PayloadAs[T any](p Payload) (T, error) {
	var zero T
	v, ok := p.value.(T)
	if !ok {
		return zero, &PayloadError{
			Expected: reflect.TypeOf((*T)(nil)).Elem().String(),
			Actual:   p.TypeName(),
		}
	}
	return v, nil
}

// MustPayloadAs is like PayloadAs but panics on mismatch
func MustPayloadAs[T any](p Payload) T {
	v, err := PayloadAs[T](p)
	if err != nil {
		panic(err)
	}
	return v
}
