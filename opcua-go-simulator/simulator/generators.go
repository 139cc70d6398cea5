package simulator

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"opcua-tools/opcua-go-simulator/config"
)

// Generator computes a binding's next value from its current one. The six
// simulation modes form a closed set; mode strings are resolved once when the
// binding is built, so the tick loop never dispatches on strings. Generators
// holding per-binding state (cycle index, sine phase) use pointer receivers
// and are owned by exactly one binding.
type Generator interface {
	// Mode returns the configuration name of the generator.
	Mode() string
	// Next produces the next value given the value just read from the node.
	Next(current interface{}, rng *rand.Rand) interface{}
}

type toggleGen struct{}

func (toggleGen) Mode() string { return "toggle" }

func (toggleGen) Next(current interface{}, _ *rand.Rand) interface{} {
	return !ToBool(current)
}

type randomWalkGen struct {
	min, max, step float64
}

func (randomWalkGen) Mode() string { return "random_walk" }

func (g randomWalkGen) Next(current interface{}, rng *rand.Rand) interface{} {
	cur := toFloat(current) + (rng.Float64()*2-1)*g.step
	return math.Max(g.min, math.Min(g.max, cur))
}

type randomChoiceGen struct {
	values []interface{}
}

func (randomChoiceGen) Mode() string { return "random_choice" }

func (g randomChoiceGen) Next(_ interface{}, rng *rand.Rand) interface{} {
	return g.values[rng.Intn(len(g.values))]
}

type cycleGen struct {
	values []interface{}
	index  int
}

func (*cycleGen) Mode() string { return "cycle" }

// Next advances the index before use, so the first due tick yields the list's
// second element.
func (g *cycleGen) Next(_ interface{}, _ *rand.Rand) interface{} {
	g.index = (g.index + 1) % len(g.values)
	return g.values[g.index]
}

type rampGen struct {
	min, max, step float64
}

func (rampGen) Mode() string { return "ramp" }

// Next checks both wrap branches every tick: overshoot resets to min,
// undershoot resets to max, independent of the sign of step.
func (g rampGen) Next(current interface{}, _ *rand.Rand) interface{} {
	cur := toFloat(current) + g.step
	if cur > g.max {
		cur = g.min
	}
	if cur < g.min {
		cur = g.max
	}
	return cur
}

type sineGen struct {
	min, max   float64
	periodMS   float64
	intervalMS float64
	phase      float64
}

func (*sineGen) Mode() string { return "sine" }

func (g *sineGen) Next(_ interface{}, _ *rand.Rand) interface{} {
	g.phase += 2 * math.Pi * (g.intervalMS / math.Max(g.periodMS, 10))
	center := (g.max + g.min) / 2
	amp := (g.max - g.min) / 2
	return center + amp*math.Sin(g.phase)
}

func param(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// NewGenerator resolves a simulation block into a generator. intervalMS is the
// binding's effective update interval, which the sine mode needs for its phase
// increment. Unknown modes and empty value lists are errors; the caller leaves
// the variable static.
func NewGenerator(sim *config.Simulation, intervalMS int) (Generator, error) {
	mode := strings.ToLower(strings.TrimSpace(sim.Mode))
	switch mode {
	case "toggle":
		return toggleGen{}, nil
	case "random_walk":
		return randomWalkGen{
			min:  param(sim.Min, 0),
			max:  param(sim.Max, 100),
			step: param(sim.Step, 1),
		}, nil
	case "random_choice":
		if len(sim.Values) == 0 {
			return nil, fmt.Errorf("random_choice requires a non-empty values list")
		}
		return randomChoiceGen{values: sim.Values}, nil
	case "cycle":
		if len(sim.Values) == 0 {
			return nil, fmt.Errorf("cycle requires a non-empty values list")
		}
		return &cycleGen{values: sim.Values}, nil
	case "ramp":
		return rampGen{
			min:  param(sim.Min, 0),
			max:  param(sim.Max, 100),
			step: param(sim.Step, 1),
		}, nil
	case "sine":
		return &sineGen{
			min:        param(sim.Min, 0),
			max:        param(sim.Max, 100),
			periodMS:   param(sim.PeriodMS, 5000),
			intervalMS: float64(intervalMS),
		}, nil
	default:
		return nil, fmt.Errorf("unknown simulation mode %q", sim.Mode)
	}
}
