package definition

import (
	"fmt"
	"slices"
	"sync"

	"github.com/anggasct/tickfsm"
	"github.com/anggasct/tickfsm/pkg/states"
)

// Built-in state kinds
const (
	KindBase    = "base"
	KindFinal   = "final"
	KindTimeout = "timeout"
)

// KindBuilder turns the params of a state declaration into a factory
type KindBuilder func(params Params) (tickfsm.StateFactory, error)

// Registry maps kind names to builders and guard names to guards
type Registry struct {
	mutex  sync.RWMutex
	kinds  map[string]KindBuilder
	guards map[string]tickfsm.GuardFunc
}

// NewRegistry creates a registry holding the built-in kinds
func NewRegistry() *Registry {
	r := &Registry{
		kinds:  make(map[string]KindBuilder),
		guards: make(map[string]tickfsm.GuardFunc),
	}

	r.RegisterKind(KindBase, buildBase)
	r.RegisterKind(KindFinal, buildFinal)
	r.RegisterKind(KindTimeout, buildTimeout)

	return r
}

// RegisterKind adds or replaces the builder for kind
func (r *Registry) RegisterKind(kind string, builder KindBuilder) *Registry {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.kinds[kind] = builder
	return r
}

// RegisterFactory registers a kind that ignores its params
func (r *Registry) RegisterFactory(kind string, factory tickfsm.StateFactory) *Registry {
	return r.RegisterKind(kind, func(Params) (tickfsm.StateFactory, error) {
		return factory, nil
	})
}

// RegisterGuard adds or replaces the guard called name
func (r *Registry) RegisterGuard(name string, guard tickfsm.GuardFunc) *Registry {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.guards[name] = guard
	return r
}

// Kinds returns the registered kind names, sorted
func (r *Registry) Kinds() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	out := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Guards returns the registered guard names, sorted
func (r *Registry) Guards() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	out := make([]string, 0, len(r.guards))
	for g := range r.guards {
		out = append(out, g)
	}
	slices.Sort(out)
	return out
}

func (r *Registry) kind(name string) (KindBuilder, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	b, ok := r.kinds[name]
	return b, ok
}

func (r *Registry) guard(name string) (tickfsm.GuardFunc, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	g, ok := r.guards[name]
	return g, ok
}

// Apply registers the states and transitions of def on m. The machine is
// left inactive.
func (d *Definition) Apply(m *tickfsm.Machine, reg *Registry, host any) error {
	if err := d.Validate(); err != nil {
		return err
	}

	for _, sd := range d.States {
		builder, ok := reg.kind(sd.Kind)
		if !ok {
			return invalid(ErrUnknownKind, "state %s: %s", sd.Name, sd.Kind)
		}

		factory, err := builder(sd.Params)
		if err != nil {
			return fmt.Errorf("state %s: %w", sd.Name, err)
		}

		if _, err := m.AddState(sd.Name, factory, host); err != nil {
			return err
		}
	}

	for _, td := range d.Transitions {
		var opts []tickfsm.TransitionOption
		if td.Guard != "" {
			guard, ok := reg.guard(td.Guard)
			if !ok {
				return invalid(ErrUnknownGuard, "transition %s->%s: %s", td.From, td.To, td.Guard)
			}
			opts = append(opts, tickfsm.WithNamedGuard(td.Guard, guard))
		}
		if td.Description != "" {
			opts = append(opts, tickfsm.WithDescription(td.Description))
		}

		if err := m.AddTransition(td.From, td.To, opts...); err != nil {
			return err
		}
	}

	return nil
}

// Build creates a machine named after def, applies def and activates its
// initial state with an empty payload
func (d *Definition) Build(reg *Registry, host any, opts ...tickfsm.Option) (*tickfsm.Machine, error) {
	m := tickfsm.NewMachine(d.Name, opts...)

	if err := d.Apply(m, reg, host); err != nil {
		return nil, err
	}

	if err := m.Activate(d.Initial, tickfsm.NoPayload); err != nil {
		return nil, err
	}

	return m, nil
}

func buildBase(Params) (tickfsm.StateFactory, error) {
	return func(m *tickfsm.Machine, name string, host any) (tickfsm.State, error) {
		return tickfsm.NewBaseState(m, name, host), nil
	}, nil
}

func buildFinal(Params) (tickfsm.StateFactory, error) {
	return states.NewFinal(nil), nil
}

func buildTimeout(params Params) (tickfsm.StateFactory, error) {
	target, err := params.RequireString("target")
	if err != nil {
		return nil, err
	}

	after, err := params.Duration("after", 0)
	if err != nil {
		return nil, err
	}

	retry, err := params.Bool("retry", false)
	if err != nil {
		return nil, err
	}

	var opts []states.TimeoutOption
	if retry {
		opts = append(opts, states.WithRetry())
	}

	return states.NewTimeout(after, target, opts...), nil
}
