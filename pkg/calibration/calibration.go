// Package calibration derives per-user reference values before evaluation.
//
// A Plan is a list of timed stages. Each stage watches one feature for a
// fixed window and records either its mean (baseline) or the most extreme
// value seen (min or max), shifted by a signed offset. The resulting values
// are exposed as an immutable Result keyed by stage name.
package calibration

import (
	"fmt"
	"maps"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/teslashibe/go-fitdesk/pkg/feature"
)

// Mode selects how a stage reduces its samples.
type Mode string

const (
	ModeBaseline Mode = "baseline"
	ModeMin      Mode = "min"
	ModeMax      Mode = "max"
)

// Stage is one timed observation window.
type Stage struct {
	// Name is the key the derived value is stored under.
	Name string `yaml:"name" json:"name"`
	// Prompt is spoken when the stage starts.
	Prompt   string        `yaml:"prompt" json:"prompt"`
	Feature  string        `yaml:"feature" json:"feature"`
	Mode     Mode          `yaml:"mode" json:"mode"`
	Duration time.Duration `yaml:"duration" json:"duration"`
	// Offset is added to the reduced value (the margin).
	Offset float64 `yaml:"offset,omitempty" json:"offset,omitempty"`
}

// Plan is an ordered list of stages.
type Plan struct {
	Stages []Stage `yaml:"stages" json:"stages"`
	// Complete is spoken once the last stage finishes.
	Complete string `yaml:"complete,omitempty" json:"complete,omitempty"`
}

// Validate checks that every stage is usable and names are unique.
func (p *Plan) Validate() error {
	if p == nil || len(p.Stages) == 0 {
		return fmt.Errorf("%w: no stages", ErrInvalidPlan)
	}
	seen := make(map[string]bool, len(p.Stages))
	for i, s := range p.Stages {
		if s.Name == "" {
			return fmt.Errorf("%w: stage %d has no name", ErrInvalidPlan, i)
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: duplicate stage %q", ErrInvalidPlan, s.Name)
		}
		seen[s.Name] = true
		if s.Feature == "" {
			return fmt.Errorf("%w: stage %q has no feature", ErrInvalidPlan, s.Name)
		}
		if s.Duration <= 0 {
			return fmt.Errorf("%w: stage %q needs a positive duration", ErrInvalidPlan, s.Name)
		}
		switch s.Mode {
		case ModeBaseline, ModeMin, ModeMax:
		default:
			return fmt.Errorf("%w: stage %q has unknown mode %q", ErrInvalidPlan, s.Name, s.Mode)
		}
	}
	return nil
}

// Produces lists the result keys in stage order.
func (p *Plan) Produces() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		out[i] = s.Name
	}
	return out
}

// Result holds finalized reference values. It never changes after creation.
type Result struct {
	values map[string]float64
}

// NewResult copies values into a Result.
func NewResult(values map[string]float64) *Result {
	return &Result{values: maps.Clone(values)}
}

// Get returns a reference value.
func (r *Result) Get(name string) (float64, bool) {
	if r == nil {
		return 0, false
	}
	v, ok := r.values[name]
	return v, ok
}

// Has reports whether name was derived.
func (r *Result) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Values returns a copy of all reference values.
func (r *Result) Values() map[string]float64 {
	if r == nil {
		return map[string]float64{}
	}
	return maps.Clone(r.values)
}

// Progress describes where a running calibration is.
type Progress struct {
	Stage     string  `json:"stage"`
	Index     int     `json:"index"`
	Total     int     `json:"total"`
	Elapsed   float64 `json:"elapsed_seconds"`
	Remaining float64 `json:"remaining_seconds"`
	// Extreme is the most extreme value seen so far in a min or max stage.
	Extreme *float64 `json:"extreme,omitempty"`
	Done    bool     `json:"done"`
}

// Calibrator runs a Plan against a stream of feature values. It is not safe
// for concurrent use; a session owns exactly one.
type Calibrator struct {
	plan    *Plan
	stage   int
	started bool

	elapsed time.Duration
	last    time.Time
	gap     bool

	samples []float64

	values map[string]float64
	result *Result
}

// New creates a calibrator. The plan must already be valid.
func New(plan *Plan) *Calibrator {
	return &Calibrator{
		plan:   plan,
		gap:    true,
		values: make(map[string]float64, len(plan.Stages)),
	}
}

// Observe feeds one frame. ok is false when the frame had no detection or a
// required feature was missing; such frames are skipped and do not advance
// the stage timer, and the next good frame starts a fresh timing interval.
//
// It returns the prompts to speak, in order, and whether calibration is now
// finished.
func (c *Calibrator) Observe(ts time.Time, vals feature.Values, ok bool) (prompts []string, done bool) {
	if c.result != nil {
		return nil, true
	}
	if !ok {
		c.gap = true
		return nil, false
	}

	s := c.plan.Stages[c.stage]
	v, have := vals[s.Feature]
	if !have {
		c.gap = true
		return nil, false
	}

	if !c.started {
		c.started = true
		prompts = append(prompts, s.Prompt)
	}

	if !c.gap {
		if dt := ts.Sub(c.last); dt > 0 {
			c.elapsed += dt
		}
	}
	c.last = ts
	c.gap = false
	c.samples = append(c.samples, v)

	if c.elapsed < s.Duration {
		return prompts, false
	}

	c.values[s.Name] = c.reduce(s) + s.Offset
	c.stage++
	c.elapsed = 0
	c.samples = c.samples[:0]
	c.gap = true

	if c.stage == len(c.plan.Stages) {
		c.result = NewResult(c.values)
		if c.plan.Complete != "" {
			prompts = append(prompts, c.plan.Complete)
		}
		return prompts, true
	}
	prompts = append(prompts, c.plan.Stages[c.stage].Prompt)
	return prompts, false
}

func (c *Calibrator) reduce(s Stage) float64 {
	switch s.Mode {
	case ModeMin:
		return floats.Min(c.samples)
	case ModeMax:
		return floats.Max(c.samples)
	}
	return stat.Mean(c.samples, nil)
}

// Done reports whether every stage has finished.
func (c *Calibrator) Done() bool {
	return c.result != nil
}

// Result returns the finalized values, or ErrIncomplete.
func (c *Calibrator) Result() (*Result, error) {
	if c.result == nil {
		return nil, ErrIncomplete
	}
	return c.result, nil
}

// Progress reports the current stage and its timing.
func (c *Calibrator) Progress() Progress {
	total := len(c.plan.Stages)
	if c.result != nil {
		return Progress{Index: total, Total: total, Done: true}
	}
	s := c.plan.Stages[c.stage]
	p := Progress{
		Stage:     s.Name,
		Index:     c.stage,
		Total:     total,
		Elapsed:   c.elapsed.Seconds(),
		Remaining: (s.Duration - c.elapsed).Seconds(),
	}
	if s.Mode != ModeBaseline && len(c.samples) > 0 {
		v := c.reduce(s)
		p.Extreme = &v
	}
	return p
}
