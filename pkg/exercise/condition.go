package exercise

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-fitdesk/pkg/calibration"
	"github.com/teslashibe/go-fitdesk/pkg/feature"
)

// Op is a comparison operator.
type Op string

const (
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
)

// Valid reports whether o is a known operator.
func (o Op) Valid() bool {
	switch o {
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return true
	}
	return false
}

// Compare applies the operator as "v o t".
func (o Op) Compare(v, t float64) bool {
	switch o {
	case OpLess:
		return v < t
	case OpLessEqual:
		return v <= t
	case OpGreater:
		return v > t
	case OpGreaterEqual:
		return v >= t
	}
	return false
}

// Threshold is either a fixed value or a calibration reference plus offset.
//
// In YAML a bare number is a fixed value:
//
//	threshold: 85
//	threshold: {from: rest_line, offset: -5}
type Threshold struct {
	Value  float64 `yaml:"value,omitempty" json:"value,omitempty"`
	From   string  `yaml:"from,omitempty" json:"from,omitempty"`
	Offset float64 `yaml:"offset,omitempty" json:"offset,omitempty"`
}

// Fixed builds a constant threshold.
func Fixed(v float64) Threshold {
	return Threshold{Value: v}
}

// Calibrated builds a threshold relative to a calibration value.
func Calibrated(from string, offset float64) Threshold {
	return Threshold{From: from, Offset: offset}
}

// UnmarshalYAML accepts a scalar or a mapping.
func (t *Threshold) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		v, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return fmt.Errorf("threshold %q: %w", n.Value, err)
		}
		*t = Fixed(v)
		return nil
	}
	type plain Threshold
	var p plain
	if err := n.Decode(&p); err != nil {
		return err
	}
	*t = Threshold(p)
	return nil
}

// Relative reports whether the threshold needs calibration.
func (t Threshold) Relative() bool {
	return t.From != ""
}

// Resolve returns the concrete threshold value.
func (t Threshold) Resolve(res *calibration.Result) (float64, error) {
	if !t.Relative() {
		return t.Value, nil
	}
	base, ok := res.Get(t.From)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnresolvedThreshold, t.From)
	}
	return base + t.Offset, nil
}

func (t Threshold) String() string {
	if !t.Relative() {
		return strconv.FormatFloat(t.Value, 'g', -1, 64)
	}
	if t.Offset == 0 {
		return t.From
	}
	return fmt.Sprintf("%s%+g", t.From, t.Offset)
}

// Condition compares one feature against a threshold.
type Condition struct {
	Feature   string    `yaml:"feature" json:"feature"`
	Op        Op        `yaml:"op" json:"op"`
	Threshold Threshold `yaml:"threshold" json:"threshold"`
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %s", c.Feature, c.Op, c.Threshold)
}

func (c Condition) validate(features map[string]bool, calib map[string]bool) error {
	if !features[c.Feature] {
		return fmt.Errorf("condition %q uses undeclared feature %q", c, c.Feature)
	}
	if !c.Op.Valid() {
		return fmt.Errorf("condition %q has unknown operator %q", c, c.Op)
	}
	if c.Threshold.Relative() && !calib[c.Threshold.From] {
		return fmt.Errorf("condition %q refers to %q which calibration does not produce", c, c.Threshold.From)
	}
	return nil
}

// Resolve binds the threshold, producing a condition ready for evaluation.
func (c Condition) Resolve(res *calibration.Result) (Bound, error) {
	v, err := c.Threshold.Resolve(res)
	if err != nil {
		return Bound{}, fmt.Errorf("%s: %w", c.Feature, err)
	}
	return Bound{Feature: c.Feature, Op: c.Op, Value: v}, nil
}

// Bound is a condition with a concrete threshold.
type Bound struct {
	Feature string  `json:"feature"`
	Op      Op      `json:"op"`
	Value   float64 `json:"value"`
}

// Eval tests the condition. ok is false when the feature is absent.
func (b Bound) Eval(vals feature.Values) (holds, ok bool) {
	v, ok := vals[b.Feature]
	if !ok {
		return false, false
	}
	return b.Op.Compare(v, b.Value), true
}

// All reports whether every bound holds.
func All(bounds []Bound, vals feature.Values) (holds, ok bool) {
	holds = true
	for _, b := range bounds {
		h, ok := b.Eval(vals)
		if !ok {
			return false, false
		}
		holds = holds && h
	}
	return holds, true
}
