package simulator

import (
	"math"
	"math/rand"
	"testing"

	"opcua-tools/opcua-go-simulator/config"
)

func fptr(v float64) *float64 { return &v }

func mustGen(t *testing.T, sim *config.Simulation, intervalMS int) Generator {
	t.Helper()
	gen, err := NewGenerator(sim, intervalMS)
	if err != nil {
		t.Fatalf("NewGenerator(%s): %v", sim.Mode, err)
	}
	return gen
}

func TestToggle(t *testing.T) {
	gen := mustGen(t, &config.Simulation{Mode: "toggle"}, 1000)
	if got := gen.Next(false, nil); got != true {
		t.Errorf("toggle(false) = %v", got)
	}
	if got := gen.Next(true, nil); got != false {
		t.Errorf("toggle(true) = %v", got)
	}
	if got := gen.Next("yes", nil); got != false {
		t.Errorf("toggle(\"yes\") = %v", got)
	}
}

func TestCycleOffByOne(t *testing.T) {
	gen := mustGen(t, &config.Simulation{
		Mode:   "cycle",
		Values: []interface{}{"Idle", "Setup", "Auto", "Alarm"},
	}, 1000)

	// Index starts at 0 and is advanced before use, so the first due tick
	// yields the second element.
	want := []string{"Setup", "Auto", "Alarm", "Idle", "Setup"}
	for i, w := range want {
		if got := gen.Next(nil, nil); got != w {
			t.Errorf("tick %d: got %v, want %s", i+1, got, w)
		}
	}
}

func TestRampWraparound(t *testing.T) {
	gen := mustGen(t, &config.Simulation{
		Mode: "ramp",
		Min:  fptr(0),
		Max:  fptr(3000),
		Step: fptr(150),
	}, 1000)

	if got := gen.Next(2850.0, nil); got != 3000.0 {
		t.Errorf("ramp(2850) = %v, want 3000", got)
	}
	if got := gen.Next(3000.0, nil); got != 0.0 {
		t.Errorf("ramp(3000) = %v, want 0 (wrap)", got)
	}
}

func TestRampUndershootWrapsToMax(t *testing.T) {
	gen := mustGen(t, &config.Simulation{
		Mode: "ramp",
		Min:  fptr(0),
		Max:  fptr(3000),
		Step: fptr(-150),
	}, 1000)

	if got := gen.Next(100.0, nil); got != 3000.0 {
		t.Errorf("ramp(100, step -150) = %v, want 3000 (wrap)", got)
	}
	if got := gen.Next(300.0, nil); got != 150.0 {
		t.Errorf("ramp(300, step -150) = %v, want 150", got)
	}
}

func TestRandomWalkBounds(t *testing.T) {
	gen := mustGen(t, &config.Simulation{
		Mode: "random_walk",
		Min:  fptr(20),
		Max:  fptr(110),
		Step: fptr(500), // step far larger than the range
	}, 1000)

	rng := rand.New(rand.NewSource(1))
	cur := 65.0
	for i := 0; i < 1000; i++ {
		v := gen.Next(cur, rng).(float64)
		if v < 20 || v > 110 {
			t.Fatalf("iteration %d: value %v outside [20,110]", i, v)
		}
		cur = v
	}
}

func TestRandomWalkDeterministicWithSeed(t *testing.T) {
	sim := &config.Simulation{Mode: "random_walk", Min: fptr(0), Max: fptr(100), Step: fptr(5)}
	a := mustGen(t, sim, 1000)
	b := mustGen(t, sim, 1000)
	rngA := rand.New(rand.NewSource(42))
	rngB := rand.New(rand.NewSource(42))
	cur := 50.0
	for i := 0; i < 20; i++ {
		va := a.Next(cur, rngA).(float64)
		vb := b.Next(cur, rngB).(float64)
		if va != vb {
			t.Fatalf("iteration %d: %v != %v with identical seeds", i, va, vb)
		}
		cur = va
	}
}

func TestRandomChoice(t *testing.T) {
	values := []interface{}{"red", "yellow", "green"}
	gen := mustGen(t, &config.Simulation{Mode: "random_choice", Values: values}, 1000)
	rng := rand.New(rand.NewSource(7))
	allowed := map[interface{}]bool{"red": true, "yellow": true, "green": true}
	for i := 0; i < 100; i++ {
		if v := gen.Next(nil, rng); !allowed[v] {
			t.Fatalf("draw %d: %v not in configured values", i, v)
		}
	}
}

func TestSineDeterminism(t *testing.T) {
	gen := mustGen(t, &config.Simulation{
		Mode:     "sine",
		Min:      fptr(20),
		Max:      fptr(110),
		PeriodMS: fptr(5000),
	}, 1000)

	// After one tick: phase = 2pi*0.2, value = 65 + 45*sin(phase) ~= 107.8.
	v := gen.Next(nil, nil).(float64)
	wantPhase := 2 * math.Pi * 0.2
	want := 65 + 45*math.Sin(wantPhase)
	if math.Abs(v-want) > 1e-9 {
		t.Errorf("sine tick 1 = %v, want %v", v, want)
	}
	if math.Abs(v-107.8) > 0.1 {
		t.Errorf("sine tick 1 = %v, want ~107.8", v)
	}

	// Phase accumulates without wrap.
	for i := 0; i < 4; i++ {
		v = gen.Next(nil, nil).(float64)
	}
	if math.Abs(v-(65+45*math.Sin(2*math.Pi))) > 1e-9 {
		t.Errorf("sine tick 5 = %v, want center crossing", v)
	}
}

func TestSinePeriodFloor(t *testing.T) {
	gen := mustGen(t, &config.Simulation{
		Mode:     "sine",
		Min:      fptr(0),
		Max:      fptr(10),
		PeriodMS: fptr(0), // clamped to 10ms
	}, 1000)
	v := gen.Next(nil, nil).(float64)
	want := 5 + 5*math.Sin(2*math.Pi*(1000.0/10.0))
	if math.Abs(v-want) > 1e-9 {
		t.Errorf("sine with zero period = %v, want %v", v, want)
	}
}

func TestNewGeneratorRejectsUnknownMode(t *testing.T) {
	if _, err := NewGenerator(&config.Simulation{Mode: "warp"}, 1000); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestNewGeneratorRejectsEmptyValues(t *testing.T) {
	if _, err := NewGenerator(&config.Simulation{Mode: "cycle"}, 1000); err == nil {
		t.Error("expected error for cycle without values")
	}
	if _, err := NewGenerator(&config.Simulation{Mode: "random_choice"}, 1000); err == nil {
		t.Error("expected error for random_choice without values")
	}
}
