package simulator

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"opcua-tools/opcua-go-simulator/database"
	"opcua-tools/opcua-go-simulator/substrate"
)

const engineTestConfig = `
server:
  tick_ms: 1000
model:
  variables:
    - name: Running
      type: bool
      initial: false
      simulation:
        mode: toggle
        interval_ms: 3000
    - name: Mode
      type: string
      initial: Idle
      simulation:
        mode: cycle
        values: [Idle, Setup, Auto, Alarm]
        interval_ms: 3000
    - name: Temperature
      type: float
      initial: 42.0
`

type testRig struct {
	space  *substrate.MemorySpace
	reg    *Registry
	state  *State
	engine *Engine
	events chan database.Event
	base   time.Time
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	cfg := loadConfig(t, engineTestConfig)
	space, b := newTestBuilder(t)
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	reg, err := b.Build(context.Background(), cfg, base)
	if err != nil {
		t.Fatal(err)
	}
	state := NewState(reg)
	events := make(chan database.Event, 64)
	engine := NewEngine(reg, state, cfg.Server.TickMS, rand.New(rand.NewSource(1)), discardLogger(), events)
	engine.Now = func() time.Time { return base }
	return &testRig{space: space, reg: reg, state: state, engine: engine, events: events, base: base}
}

func (r *testRig) read(t *testing.T, name string) interface{} {
	t.Helper()
	e, ok := r.reg.Lookup(name)
	if !ok {
		t.Fatalf("variable %s not registered", name)
	}
	v, err := e.Node.ReadValue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestDueTimeGating(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()

	// Bindings are due at base+3s; an earlier tick must not touch them.
	r.engine.Tick(ctx, r.base.Add(1*time.Second))
	if got := r.read(t, "Running"); got != false {
		t.Errorf("Running changed before due time: %v", got)
	}

	r.engine.Tick(ctx, r.base.Add(3*time.Second))
	if got := r.read(t, "Running"); got != true {
		t.Errorf("Running = %v after first due tick, want true", got)
	}
	if got := r.read(t, "Mode"); got != "Setup" {
		t.Errorf("Mode = %v after first due tick, want Setup", got)
	}

	// Next due is 3s after the tick that fired; a tick in between is a no-op.
	r.engine.Tick(ctx, r.base.Add(4*time.Second))
	if got := r.read(t, "Running"); got != true {
		t.Errorf("Running toggled again too early: %v", got)
	}

	r.engine.Tick(ctx, r.base.Add(6*time.Second))
	if got := r.read(t, "Running"); got != false {
		t.Errorf("Running = %v after second due tick, want false", got)
	}
}

func TestStaticVariablesNeverTicked(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		r.engine.Tick(ctx, r.base.Add(time.Duration(i)*3*time.Second))
	}
	if got := r.read(t, "Temperature"); got != 42.0 {
		t.Errorf("static Temperature mutated to %v", got)
	}
}

func TestReadFailureSkipsWithoutAdvancing(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	running, _ := r.reg.Lookup("Running")

	r.space.FailReads(running.NodeID, errors.New("substrate down"))
	due := r.base.Add(3 * time.Second)
	r.engine.Tick(ctx, due)

	if !r.reg.Bindings[0].NextDue.Equal(due) {
		t.Errorf("next due advanced on read failure: %v", r.reg.Bindings[0].NextDue)
	}

	// Once reads recover the binding is still due and fires immediately.
	r.space.FailReads(running.NodeID, nil)
	retry := r.base.Add(4 * time.Second)
	r.engine.Tick(ctx, retry)
	if got := r.read(t, "Running"); got != true {
		t.Errorf("Running = %v after recovery, want true", got)
	}
	if !r.reg.Bindings[0].NextDue.Equal(retry.Add(3 * time.Second)) {
		t.Errorf("next due = %v after recovery", r.reg.Bindings[0].NextDue)
	}
}

func TestWriteFailureStillAdvances(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()
	running, _ := r.reg.Lookup("Running")

	r.space.FailWrites(running.NodeID, errors.New("substrate down"))
	due := r.base.Add(3 * time.Second)
	r.engine.Tick(ctx, due)

	if got := r.read(t, "Running"); got != false {
		t.Errorf("value changed despite write failure: %v", got)
	}
	if !r.reg.Bindings[0].NextDue.Equal(due.Add(3 * time.Second)) {
		t.Error("next due must advance on write failure")
	}

	// The failed attempt is not retried before the next full interval.
	r.space.FailWrites(running.NodeID, nil)
	r.engine.Tick(ctx, r.base.Add(4*time.Second))
	if got := r.read(t, "Running"); got != false {
		t.Errorf("write retried before next interval: %v", got)
	}
}

func TestTickWriteOrderIsRegistrationOrder(t *testing.T) {
	r := newTestRig(t)
	r.engine.Tick(context.Background(), r.base.Add(3*time.Second))

	var order []string
	for len(r.events) > 0 {
		ev := <-r.events
		if ev.EventType == "SIM_UPDATE" {
			order = append(order, ev.Variable)
		}
	}
	want := []string{"Running", "Mode"}
	if len(order) != len(want) {
		t.Fatalf("got %d updates, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("update %d: got %s, want %s", i, order[i], want[i])
		}
	}
}

func TestApplyOperatorWrite(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()

	r.engine.Apply(ctx, WriteCmd{Key: "Temperature", Raw: "55.5"})
	if got := r.read(t, "Temperature"); got != 55.5 {
		t.Errorf("Temperature = %v, want 55.5", got)
	}
	values, _, _ := r.state.Snapshot()
	if values["Temperature"].Text != "55.5" {
		t.Errorf("state text = %q", values["Temperature"].Text)
	}

	ev := <-r.events
	if ev.EventType != "USER_COMMAND" || ev.Variable != "Temperature" {
		t.Errorf("unexpected event %+v", ev)
	}

	// Writes coerce to the declared type.
	r.engine.Apply(ctx, WriteCmd{Key: "Running", Raw: "on"})
	if got := r.read(t, "Running"); got != true {
		t.Errorf("Running = %v, want true", got)
	}

	// Unknown variables surface on the status line, nothing panics.
	r.engine.Apply(ctx, WriteCmd{Key: "Nope", Raw: "1"})
	_, _, status := r.state.Snapshot()
	if status == "" {
		t.Error("expected an error status for unknown variable")
	}
}

func TestEngineClampsTickCadence(t *testing.T) {
	r := newTestRig(t)
	e := NewEngine(r.reg, r.state, 10, rand.New(rand.NewSource(1)), discardLogger(), nil)
	if e.tick != 100*time.Millisecond {
		t.Errorf("tick cadence = %v, want clamped 100ms", e.tick)
	}
}
