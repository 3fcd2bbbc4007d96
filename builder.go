package tickfsm

// MachineBuilder provides the main entry point for building state machines
type MachineBuilder interface {
	State(name string, factory StateFactory) StateBuilder
	Initial(name string, payload Payload) MachineBuilder

	Build(host any) (*Machine, error)
	MustBuild(host any) *Machine
}

// StateBuilder handles the configuration of one state and its outgoing edges
type StateBuilder interface {
	To(target string, opts ...TransitionOption) StateBuilder
	ToSelf(opts ...TransitionOption) StateBuilder
	Initial(payload Payload) StateBuilder

	State(name string, factory StateFactory) StateBuilder
	Build(host any) (*Machine, error)
	MustBuild(host any) *Machine
}

type stateSpec struct {
	name    string
	factory StateFactory
}

type edgeSpec struct {
	from string
	to   string
	opts []TransitionOption
}

type machineBuilder struct {
	name string
	opts []Option

	states         []stateSpec
	edges          []edgeSpec
	initial        string
	initialPayload Payload
}

// NewBuilder creates a new machine builder. Edges may name states declared
// later; everything is resolved by Build.
func NewBuilder(name string, opts ...Option) MachineBuilder {
	return &machineBuilder{
		name: name,
		opts: opts,
	}
}

func (b *machineBuilder) State(name string, factory StateFactory) StateBuilder {
	b.states = append(b.states, stateSpec{name: name, factory: factory})
	return &stateBuilder{machine: b, name: name}
}

func (b *machineBuilder) Initial(name string, payload Payload) MachineBuilder {
	b.initial = name
	b.initialPayload = payload
	return b
}

// Build registers every state in declaration order, then every edge, then
// activates the initial state if one was set. The first failure is returned
// and no machine is produced.
func (b *machineBuilder) Build(host any) (*Machine, error) {
	m := NewMachine(b.name, b.opts...)

	for _, s := range b.states {
		if _, err := m.AddState(s.name, s.factory, host); err != nil {
			return nil, err
		}
	}

	for _, e := range b.edges {
		if err := m.AddTransition(e.from, e.to, e.opts...); err != nil {
			return nil, err
		}
	}

	if b.initial != "" {
		if err := m.Activate(b.initial, b.initialPayload); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (b *machineBuilder) MustBuild(host any) *Machine {
	m, err := b.Build(host)
	if err != nil {
		panic(err)
	}
	return m
}

type stateBuilder struct {
	machine *machineBuilder
	name    string
}

func (sb *stateBuilder) To(target string, opts ...TransitionOption) StateBuilder {
	sb.machine.edges = append(sb.machine.edges, edgeSpec{from: sb.name, to: target, opts: opts})
	return sb
}

func (sb *stateBuilder) ToSelf(opts ...TransitionOption) StateBuilder {
	return sb.To(sb.name, opts...)
}

func (sb *stateBuilder) Initial(payload Payload) StateBuilder {
	sb.machine.Initial(sb.name, payload)
	return sb
}

func (sb *stateBuilder) State(name string, factory StateFactory) StateBuilder {
	return sb.machine.State(name, factory)
}

func (sb *stateBuilder) Build(host any) (*Machine, error) {
	return sb.machine.Build(host)
}

func (sb *stateBuilder) MustBuild(host any) *Machine {
	return sb.machine.MustBuild(host)
}
