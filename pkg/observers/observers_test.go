package observers

import (
	"errors"
	"fmt"
	"time"

	"github.com/anggasct/tickfsm"
)

// newTestMachine builds splash -> menu -> closing with a deterministic clock
// that advances by step on every event and sequential ids
func newTestMachine(step time.Duration, loggers ...tickfsm.Logger) *tickfsm.Machine {
	var n int
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	m := tickfsm.NewMachine("tutorial",
		tickfsm.WithLogger(loggers...),
		tickfsm.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
		tickfsm.WithClock(func() time.Time {
			now = now.Add(step)
			return now
		}),
	)

	log := tickfsm.NewCallLog()
	for _, name := range []string{"splash", "menu", "closing"} {
		m.MustAddState(name, tickfsm.RecordingFactory(log), nil)
	}
	m.MustAddTransition("splash", "menu")
	m.MustAddTransition("menu", "closing", tickfsm.WithNamedGuard("quit", func(_, _ tickfsm.State, p tickfsm.Payload) bool {
		return p.Value() == "quit"
	}))
	return m
}

func failEnter(m *tickfsm.Machine, name string) {
	s, err := tickfsm.StateAs[*tickfsm.RecordingState](m, name)
	if err != nil {
		panic(err)
	}
	s.FailEnter = errors.New("enter failed")
}
