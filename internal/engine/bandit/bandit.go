// Package bandit implements the online arm selection used for strategies
// and venues: annealed epsilon-greedy exploration with softmax sampling
// over EMA rewards, plus the per-item EMA memory layer.
package bandit

import (
	"math"
	"math/rand"
	"sort"
)

// Schedule describes the annealing of the exploration rate and the softmax
// temperature over a fixed step budget.
type Schedule struct {
	EpsilonStart   float64 `yaml:"epsilon_start" validate:"gte=0,lte=1"`
	EpsilonEnd     float64 `yaml:"epsilon_end" validate:"gte=0,lte=1"`
	DecaySteps     int     `yaml:"decay_steps" validate:"gt=0"`
	TempStart      float64 `yaml:"temp_start" validate:"gt=0"`
	TempEnd        float64 `yaml:"temp_end" validate:"gt=0"`
	TempDecaySteps int     `yaml:"temp_decay_steps" validate:"gt=0"`
}

// DefaultSchedule anneals epsilon 0.35 -> 0.03 and temperature 1.0 -> 0.2
// over a one year step budget.
func DefaultSchedule() Schedule {
	return Schedule{
		EpsilonStart:   0.35,
		EpsilonEnd:     0.03,
		DecaySteps:     365,
		TempStart:      1.0,
		TempEnd:        0.2,
		TempDecaySteps: 365,
	}
}

// Panel is the exportable view of one arm set's learned state. It is the
// per-arm-set half of the hot-start blob.
type Panel struct {
	Counts    map[string]int     `json:"counts"`
	RewardSum map[string]float64 `json:"rewards_sum"`
	RewardEMA map[string]float64 `json:"rewards_ema"`
}

// Chooser selects among a fixed arm set. Selection draws from the shared
// seeded rng; this is the only source of randomness in the simulation.
type Chooser struct {
	keys     []string
	counts   map[string]int
	rewards  map[string]float64
	ema      map[string]float64
	steps    int
	schedule Schedule
	alpha    float64
	rng      *rand.Rand
}

// NewChooser builds a chooser over the given arm keys. alpha is the EMA
// smoothing factor derived from the reward half-life.
func NewChooser(keys []string, schedule Schedule, alpha float64, rng *rand.Rand) *Chooser {
	c := &Chooser{
		keys:     append([]string(nil), keys...),
		counts:   make(map[string]int, len(keys)),
		rewards:  make(map[string]float64, len(keys)),
		ema:      make(map[string]float64, len(keys)),
		steps:    0,
		schedule: schedule,
		alpha:    alpha,
		rng:      rng,
	}

	for _, k := range keys {
		c.counts[k] = 0
		c.rewards[k] = 0
		c.ema[k] = 0
	}

	return c
}

// AlphaFromHalfLife converts a reward half-life in days into the EMA
// smoothing factor: alpha = 1 - 0.5^(1/halflife).
func AlphaFromHalfLife(halfLifeDays float64) float64 {
	return 1.0 - math.Exp(-math.Ln2/halfLifeDays)
}

func (c *Chooser) epsilon() float64 {
	t := math.Min(1.0, float64(c.steps)/float64(max(1, c.schedule.DecaySteps)))

	return c.schedule.EpsilonStart + (c.schedule.EpsilonEnd-c.schedule.EpsilonStart)*t
}

func (c *Chooser) temperature() float64 {
	t := math.Min(1.0, float64(c.steps)/float64(max(1, c.schedule.TempDecaySteps)))

	return c.schedule.TempStart + (c.schedule.TempEnd-c.schedule.TempStart)*t
}

// Select draws one arm: uniformly at random with the annealed epsilon
// probability, otherwise by softmax sampling over the EMA rewards at the
// annealed temperature. Every call advances the anneal by one step.
func (c *Chooser) Select() string {
	c.steps++

	if c.rng.Float64() < c.epsilon() {
		return c.keys[c.rng.Intn(len(c.keys))]
	}

	temp := math.Max(1e-6, c.temperature())

	// Softmax with the usual max-shift for numerical stability.
	maxVal := math.Inf(-1)
	vals := make([]float64, len(c.keys))

	for i, k := range c.keys {
		vals[i] = c.ema[k] / math.Max(1e-9, temp)
		if vals[i] > maxVal {
			maxVal = vals[i]
		}
	}

	total := 0.0
	for i := range vals {
		vals[i] = math.Exp(vals[i] - maxVal)
		total += vals[i]
	}

	draw := c.rng.Float64() * total

	cum := 0.0
	for i, k := range c.keys {
		cum += vals[i]
		if draw < cum {
			return k
		}
	}

	return c.keys[len(c.keys)-1]
}

// Update feeds a realized reward (ROI of a closed position) into the arm's
// statistics. The EMA stays a convex combination of all rewards seen.
func (c *Chooser) Update(key string, reward float64) {
	c.counts[key]++
	c.rewards[key] += reward
	c.ema[key] = (1-c.alpha)*c.ema[key] + c.alpha*reward
}

// EMA returns the arm's current EMA reward, zero for unknown arms.
func (c *Chooser) EMA(key string) float64 {
	return c.ema[key]
}

// Keys returns the arm identifiers in selection order.
func (c *Chooser) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Snapshot exports the chooser state as a Panel.
func (c *Chooser) Snapshot() Panel {
	p := Panel{
		Counts:    make(map[string]int, len(c.keys)),
		RewardSum: make(map[string]float64, len(c.keys)),
		RewardEMA: make(map[string]float64, len(c.keys)),
	}

	for _, k := range c.keys {
		p.Counts[k] = c.counts[k]
		p.RewardSum[k] = c.rewards[k]
		p.RewardEMA[k] = c.ema[k]
	}

	return p
}

// Restore applies a previously exported Panel. Keys unknown to the current
// arm set are skipped and reported back so the caller can warn; arms not
// present in the panel keep their zero state.
func (c *Chooser) Restore(p Panel) []string {
	var unknown []string

	for k, v := range p.RewardEMA {
		if _, ok := c.ema[k]; ok {
			c.ema[k] = v
		} else {
			unknown = append(unknown, k)
		}
	}

	for k, v := range p.Counts {
		if _, ok := c.counts[k]; ok {
			c.counts[k] = v
		} else {
			unknown = append(unknown, k)
		}
	}

	for k, v := range p.RewardSum {
		if _, ok := c.rewards[k]; ok {
			c.rewards[k] = v
		} else {
			unknown = append(unknown, k)
		}
	}

	sort.Strings(unknown)

	return dedupe(unknown)
}

func dedupe(sorted []string) []string {
	out := sorted[:0]

	for i, s := range sorted {
		if i == 0 || sorted[i-1] != s {
			out = append(out, s)
		}
	}

	return out
}
