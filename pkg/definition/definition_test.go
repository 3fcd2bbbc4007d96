package definition

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anggasct/tickfsm"
	"github.com/anggasct/tickfsm/pkg/states"
)

func quitGuard(from, to tickfsm.State, payload tickfsm.Payload) bool {
	cmd, err := tickfsm.PayloadAs[string](payload)
	return err == nil && cmd == "quit"
}

func TestLoad(t *testing.T) {
	def, err := Load(filepath.Join("testdata", "tutorial.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "tutorial", def.Name)
	assert.Equal(t, "splash", def.Initial)
	require.Len(t, def.States, 4)
	require.Len(t, def.Transitions, 3)
	assert.Equal(t, "quit", def.Transitions[1].Guard)
	assert.Equal(t, []string{"splash", "menu", "closing", "exit"}, def.Reachable())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreadableDefinition)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.ErrorIs(t, err, tickfsm.ErrInvalidConfiguration)
}

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"machines/door.yaml": &fstest.MapFile{Data: []byte(`
name: door
initial: closed
states:
  - {name: closed, kind: base}
  - {name: open, kind: base}
transitions:
  - {from: closed, to: open}
  - {from: open, to: closed}
`)},
	}

	def, err := LoadFS(fsys, "machines/door.yaml")
	require.NoError(t, err)
	assert.Equal(t, "door", def.Name)

	_, err = LoadFS(fsys, "machines/window.yaml")
	assert.ErrorIs(t, err, ErrUnreadableDefinition)
	assert.True(t, tickfsm.IsConfigurationError(err))
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte(`
name: door
initial: closed
colour: red
states:
  - {name: closed, kind: base}
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedDefinition)
	assert.ErrorIs(t, err, tickfsm.ErrInvalidConfiguration)
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("name: [unterminated"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedDefinition)
	assert.ErrorIs(t, err, tickfsm.ErrInvalidConfiguration)
	assert.True(t, tickfsm.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "yaml")
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, tickfsm.ErrInvalidConfiguration)
}

func TestValidate(t *testing.T) {
	valid := func() Definition {
		return Definition{
			Name:    "door",
			Initial: "closed",
			States: []StateDefinition{
				{Name: "closed", Kind: KindBase},
				{Name: "open", Kind: KindBase},
			},
			Transitions: []TransitionDefinition{
				{From: "closed", To: "open"},
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(d *Definition)
		want   error
	}{
		{"valid", func(d *Definition) {}, nil},
		{"missing name", func(d *Definition) { d.Name = "" }, ErrNameRequired},
		{"missing initial", func(d *Definition) { d.Initial = "" }, ErrInitialStateRequired},
		{"no states", func(d *Definition) { d.States = nil }, ErrStateRequired},
		{"unknown initial", func(d *Definition) { d.Initial = "ajar" }, ErrInitialStateNotFound},
		{"unnamed state", func(d *Definition) { d.States[1].Name = "" }, ErrStateNameRequired},
		{"duplicate state", func(d *Definition) { d.States[1].Name = "closed" }, ErrDuplicateStateName},
		{"missing kind", func(d *Definition) { d.States[0].Kind = "" }, ErrStateKindRequired},
		{"missing from", func(d *Definition) { d.Transitions[0].From = "" }, ErrTransitionFromRequired},
		{"missing to", func(d *Definition) { d.Transitions[0].To = "" }, ErrTransitionToRequired},
		{"unknown from", func(d *Definition) { d.Transitions[0].From = "ajar" }, ErrTransitionFromNotFound},
		{"unknown to", func(d *Definition) { d.Transitions[0].To = "ajar" }, ErrTransitionToNotFound},
		{"duplicate edge", func(d *Definition) {
			d.Transitions = append(d.Transitions, TransitionDefinition{From: "closed", To: "open"})
		}, ErrDuplicateTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := valid()
			tt.mutate(&def)

			err := def.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tickfsm.ErrInvalidConfiguration)
			assert.True(t, tickfsm.IsConfigurationError(err))
		})
	}
}

func TestBuild_Tutorial(t *testing.T) {
	def, err := Load(filepath.Join("testdata", "tutorial.yaml"))
	require.NoError(t, err)

	reg := NewRegistry().RegisterGuard("quit", quitGuard)
	m, err := def.Build(reg, nil)
	require.NoError(t, err)

	assertActive(t, m, "splash")
	assert.Equal(t, tickfsm.MachineRunning, m.Status())

	require.NoError(t, m.Tick(time.Second))
	assertActive(t, m, "splash")
	require.NoError(t, m.Tick(time.Second))
	assertActive(t, m, "menu")

	err = m.FireTransition("closing", tickfsm.NewPayload("stay"))
	assert.True(t, tickfsm.IsGuardError(err))
	assertActive(t, m, "menu")

	require.NoError(t, m.FireTransition("closing", tickfsm.NewPayload("quit")))
	assertActive(t, m, "closing")

	closing, err := tickfsm.StateAs[*states.TimeoutState](m, "closing")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, closing.GetTimeout())

	require.NoError(t, m.Tick(2*time.Second))
	assertActive(t, m, "exit")

	exit, err := m.GetState("exit")
	require.NoError(t, err)
	assert.True(t, states.IsFinal(exit))

	transitions, err := m.Transitions("splash")
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, "splash timed out", transitions[0].Description)
}

func TestApply_Errors(t *testing.T) {
	base := func() *Definition {
		return &Definition{
			Name:    "door",
			Initial: "closed",
			States: []StateDefinition{
				{Name: "closed", Kind: KindBase},
				{Name: "open", Kind: KindBase},
			},
			Transitions: []TransitionDefinition{{From: "closed", To: "open"}},
		}
	}

	t.Run("unknown kind", func(t *testing.T) {
		def := base()
		def.States[1].Kind = "portal"
		err := def.Apply(tickfsm.NewMachine("door"), NewRegistry(), nil)
		assert.ErrorIs(t, err, ErrUnknownKind)
	})

	t.Run("unknown guard", func(t *testing.T) {
		def := base()
		def.Transitions[0].Guard = "locked"
		err := def.Apply(tickfsm.NewMachine("door"), NewRegistry(), nil)
		assert.ErrorIs(t, err, ErrUnknownGuard)
	})

	t.Run("timeout without target", func(t *testing.T) {
		def := base()
		def.States[0] = StateDefinition{Name: "closed", Kind: KindTimeout, Params: Params{"after": "1s"}}
		err := def.Apply(tickfsm.NewMachine("door"), NewRegistry(), nil)
		assert.ErrorIs(t, err, ErrInvalidParam)
		assert.Contains(t, err.Error(), "state closed")
	})

	t.Run("negative timeout", func(t *testing.T) {
		def := base()
		def.States[0] = StateDefinition{Name: "closed", Kind: KindTimeout, Params: Params{"after": "-1s", "target": "open"}}
		err := def.Apply(tickfsm.NewMachine("door"), NewRegistry(), nil)
		assert.ErrorIs(t, err, tickfsm.ErrInvalidConfiguration)
	})

	t.Run("machine already has state", func(t *testing.T) {
		m := tickfsm.NewMachine("door")
		m.MustAddState("closed", baseFactory(t), nil)
		err := base().Apply(m, NewRegistry(), nil)
		assert.ErrorIs(t, err, tickfsm.ErrDuplicateState)
	})

	t.Run("builder error", func(t *testing.T) {
		boom := errors.New("boom")
		reg := NewRegistry().RegisterKind("broken", func(Params) (tickfsm.StateFactory, error) {
			return nil, boom
		})
		def := base()
		def.States[1].Kind = "broken"
		err := def.Apply(tickfsm.NewMachine("door"), reg, nil)
		assert.ErrorIs(t, err, boom)
	})
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, []string{KindBase, KindFinal, KindTimeout}, reg.Kinds())
	assert.Empty(t, reg.Guards())

	log := tickfsm.NewCallLog()
	reg.RegisterFactory("recording", tickfsm.RecordingFactory(log)).
		RegisterGuard("always", func(from, to tickfsm.State, payload tickfsm.Payload) bool { return true })

	assert.Contains(t, reg.Kinds(), "recording")
	assert.Equal(t, []string{"always"}, reg.Guards())

	def := &Definition{
		Name:        "custom",
		Initial:     "a",
		States:      []StateDefinition{{Name: "a", Kind: "recording"}, {Name: "b", Kind: "recording"}},
		Transitions: []TransitionDefinition{{From: "a", To: "b", Guard: "always"}},
	}
	m, err := def.Build(reg, "host")
	require.NoError(t, err)
	require.NoError(t, m.FireTransition("b", tickfsm.NoPayload))

	tickfsm.AssertCalls(t, log, "a.enter(nil)", "a.exit(b)", "b.enter(a)")
	assert.Equal(t, "host", tickfsm.Recording(t, m, "a").Host())
}

func TestDefinition_MarshalRoundTrip(t *testing.T) {
	def, err := Load(filepath.Join("testdata", "tutorial.yaml"))
	require.NoError(t, err)

	data, err := def.Marshal()
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, def.Name, again.Name)
	assert.Len(t, again.Transitions, len(def.Transitions))
}

func TestReachable_SkipsIsolated(t *testing.T) {
	def := &Definition{
		Name:        "door",
		Initial:     "closed",
		States:      []StateDefinition{{Name: "closed", Kind: KindBase}, {Name: "open", Kind: KindBase}, {Name: "attic", Kind: KindBase}},
		Transitions: []TransitionDefinition{{From: "closed", To: "open"}, {From: "open", To: "closed"}},
	}
	assert.Equal(t, []string{"closed", "open"}, def.Reachable())
}

func baseFactory(t *testing.T) tickfsm.StateFactory {
	t.Helper()
	factory, err := buildBase(nil)
	require.NoError(t, err)
	return factory
}

func assertActive(t *testing.T, m *tickfsm.Machine, expected string) {
	t.Helper()
	tickfsm.AssertActive(t, m, expected)
}
