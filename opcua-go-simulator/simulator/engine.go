package simulator

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"opcua-tools/opcua-go-simulator/database"
)

// Engine advances the simulation. One goroutine owns all binding state;
// bindings are visited strictly in registration order within a tick, so write
// ordering is deterministic for a fixed configuration, clock, and random
// source.
type Engine struct {
	reg    *Registry
	state  *State
	tick   time.Duration
	rng    *rand.Rand
	log    *log.Logger
	events chan<- database.Event

	// Now supplies the scheduler clock. Tests replace it to drive many ticks
	// without sleeping.
	Now func() time.Time
}

// NewEngine wires the tick scheduler. tickMS below 100 is clamped to 100.
// events may be nil when persistence is disabled.
func NewEngine(reg *Registry, state *State, tickMS int, rng *rand.Rand, logger *log.Logger, events chan<- database.Event) *Engine {
	if tickMS < 100 {
		tickMS = 100
	}
	return &Engine{
		reg:    reg,
		state:  state,
		tick:   time.Duration(tickMS) * time.Millisecond,
		rng:    rng,
		log:    logger,
		events: events,
		Now:    time.Now,
	}
}

// Run is the outer loop: one tick per cadence, operator commands in between.
// No error ever escapes; per-binding failures are logged and the loop keeps
// going until the context is cancelled.
func (e *Engine) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	e.log.Println("Simulation engine started.")
	e.state.SetStatus(fmt.Sprintf("Simulating %d of %d variables", len(e.reg.Bindings), len(e.reg.Variables)))
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.log.Println("Simulation engine shutting down.")
			return
		case cmd := <-e.state.Commands:
			e.Apply(ctx, cmd)
		case <-ticker.C:
			e.Tick(ctx, e.Now())
		}
	}
}

// Tick evaluates every due binding: read current value, generate, coerce,
// write back, advance the due time. A failed read skips the binding without
// advancing its schedule, so it is retried on the next tick. A failed write is
// swallowed but the schedule still advances.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	for _, b := range e.reg.Bindings {
		if now.Before(b.NextDue) {
			continue
		}
		current, err := b.Entry.Node.ReadValue(ctx)
		if err != nil {
			e.log.Printf("tick: read %s failed: %v", b.Entry.NodeID, err)
			continue
		}
		next := Coerce(b.Entry.Type, b.Gen.Next(current, e.rng))
		if err := b.Entry.Node.WriteValue(ctx, next); err != nil {
			e.log.Printf("tick: write %s failed: %v", b.Entry.NodeID, err)
		} else {
			e.state.SetValue(b.Entry.Name, next, now)
			e.emit(database.Event{
				Timestamp:     now,
				Variable:      b.Entry.Name,
				NodeID:        b.Entry.NodeID,
				PreviousValue: fmt.Sprintf("%v", current),
				NewValue:      fmt.Sprintf("%v", next),
				Mode:          b.Entry.SimMode,
				EventType:     "SIM_UPDATE",
			})
		}
		b.NextDue = now.Add(b.Interval)
	}
}

// Apply executes an operator write: the raw text is coerced to the declared
// type and written through the substrate.
func (e *Engine) Apply(ctx context.Context, cmd WriteCmd) {
	entry, ok := e.reg.Lookup(cmd.Key)
	if !ok {
		e.state.SetStatus(fmt.Sprintf("Error: variable '%s' not found.", cmd.Key))
		return
	}
	now := e.Now()
	value := Coerce(entry.Type, cmd.Raw)
	if err := entry.Node.WriteValue(ctx, value); err != nil {
		e.log.Printf("SOE: [USER_COMMAND] write %s failed: %v", entry.Name, err)
		e.state.SetStatus(fmt.Sprintf("Error: write %s failed: %v", entry.Name, err))
		return
	}
	e.state.SetValue(entry.Name, value, now)
	e.state.SetStatus(fmt.Sprintf("Success: wrote %v to %s.", value, entry.Name))
	e.log.Printf("SOE: [USER_COMMAND] %s written to %v", entry.Name, value)
	e.emit(database.Event{
		Timestamp: now,
		Variable:  entry.Name,
		NodeID:    entry.NodeID,
		NewValue:  fmt.Sprintf("%v", value),
		Mode:      entry.SimMode,
		EventType: "USER_COMMAND",
	})
}

func (e *Engine) emit(ev database.Event) {
	if e.events == nil {
		return
	}
	e.events <- ev
}
