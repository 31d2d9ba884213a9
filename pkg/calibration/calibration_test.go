package calibration

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-fitdesk/pkg/feature"
)

var t0 = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

func shrugPlan() *Plan {
	return &Plan{
		Stages: []Stage{
			{Name: "rest_line", Prompt: "Relax your shoulders.", Feature: "shoulder_y", Mode: ModeBaseline, Duration: 5 * time.Second, Offset: -20},
			{Name: "shrug_line", Prompt: "Now shrug and hold.", Feature: "shoulder_y", Mode: ModeMin, Duration: 5 * time.Second, Offset: 10},
		},
		Complete: "Calibration complete.",
	}
}

func TestPlanValidate(t *testing.T) {
	require.NoError(t, shrugPlan().Validate())

	tests := []struct {
		name string
		mod  func(p *Plan)
	}{
		{"no stages", func(p *Plan) { p.Stages = nil }},
		{"missing name", func(p *Plan) { p.Stages[0].Name = "" }},
		{"duplicate name", func(p *Plan) { p.Stages[1].Name = p.Stages[0].Name }},
		{"missing feature", func(p *Plan) { p.Stages[1].Feature = "" }},
		{"zero duration", func(p *Plan) { p.Stages[0].Duration = 0 }},
		{"bad mode", func(p *Plan) { p.Stages[0].Mode = "median" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := shrugPlan()
			tt.mod(p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidPlan)
		})
	}

	assert.Equal(t, []string{"rest_line", "shrug_line"}, shrugPlan().Produces())
}

func TestBaselineAndExtreme(t *testing.T) {
	c := New(shrugPlan())

	var prompts []string
	ms := 0
	// Neutral: constant 300 for 5s at 30Hz.
	for ; c.Progress().Index == 0; ms += 33 {
		p, done := c.Observe(at(ms), feature.Values{"shoulder_y": 300}, true)
		prompts = append(prompts, p...)
		require.False(t, done)
		require.Less(t, ms, 6000, "neutral stage never finished")
	}
	require.Equal(t, 1, c.Progress().Index, "neutral stage should be finished")

	// Shrug: steadily rising shoulders, then settling back a bit.
	y := 300.0
	var done bool
	start := ms
	for ; !done; ms += 33 {
		if ms-start < 3000 {
			y -= 2
		} else {
			y += 1
		}
		var p []string
		p, done = c.Observe(at(ms), feature.Values{"shoulder_y": y}, true)
		prompts = append(prompts, p...)
		require.Less(t, ms-start, 6000, "stage never finished")
	}

	res, err := c.Result()
	require.NoError(t, err)

	rest, ok := res.Get("rest_line")
	require.True(t, ok)
	assert.InDelta(t, 280, rest, 1e-9)

	shrug, ok := res.Get("shrug_line")
	require.True(t, ok)
	assert.Less(t, shrug, y+10, "extreme must be the minimum seen, not the final value")

	minSeen := 300.0 - 2*float64((3000+32)/33)
	assert.InDelta(t, minSeen+10, shrug, 2.0)

	assert.Equal(t, []string{"Relax your shoulders.", "Now shrug and hold.", "Calibration complete."}, prompts)
	assert.True(t, c.Done())
	assert.True(t, c.Progress().Done)
}

func TestMissingFramesDoNotAdvanceTimer(t *testing.T) {
	plan := &Plan{Stages: []Stage{
		{Name: "neutral", Prompt: "Look straight ahead.", Feature: "offset", Mode: ModeBaseline, Duration: time.Second},
	}}
	c := New(plan)

	_, done := c.Observe(at(0), feature.Values{"offset": 5}, true)
	require.False(t, done)
	_, done = c.Observe(at(500), feature.Values{"offset": 5}, true)
	require.False(t, done)

	// Ten seconds of no detection.
	for ms := 600; ms < 10600; ms += 100 {
		_, done = c.Observe(at(ms), nil, false)
		require.False(t, done)
	}
	assert.InDelta(t, 0.5, c.Progress().Elapsed, 1e-9)

	// A frame missing the feature is also skipped.
	_, done = c.Observe(at(10700), feature.Values{"other": 1}, true)
	require.False(t, done)

	// The first good frame after the gap restarts the interval.
	_, done = c.Observe(at(10800), feature.Values{"offset": 5}, true)
	require.False(t, done)
	assert.InDelta(t, 0.5, c.Progress().Elapsed, 1e-9)

	_, done = c.Observe(at(11300), feature.Values{"offset": 5}, true)
	assert.True(t, done)

	_, err := c.Result()
	require.NoError(t, err)
}

func TestMultiStageMax(t *testing.T) {
	plan := &Plan{Stages: []Stage{
		{Name: "left_limit", Prompt: "Turn left.", Feature: "offset", Mode: ModeMin, Duration: time.Second},
		{Name: "right_limit", Prompt: "Turn right.", Feature: "offset", Mode: ModeMax, Duration: time.Second},
	}}
	c := New(plan)

	seq := []float64{0, -20, -60, -55, -40, -30}
	ms := 0
	for _, v := range seq {
		c.Observe(at(ms), feature.Values{"offset": v}, true)
		ms += 200
	}
	p := c.Progress()
	require.Equal(t, "right_limit", p.Stage)
	assert.Nil(t, p.Extreme, "no samples yet in the new stage")

	peak := math.Inf(-1)
	for _, v := range []float64{10, 40, 70, 65, 50} {
		c.Observe(at(ms), feature.Values{"offset": v}, true)
		peak = math.Max(peak, v)
		p := c.Progress()
		require.NotNil(t, p.Extreme, "at %v", v)
		assert.Equal(t, peak, *p.Extreme)
		ms += 200
	}
	c.Observe(at(ms), feature.Values{"offset": 20}, true)
	assert.Nil(t, c.Progress().Extreme, "finished calibration has no live extreme")

	res, err := c.Result()
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"left_limit": -60, "right_limit": 70}, res.Values())
}

func TestResultIncompleteAndImmutable(t *testing.T) {
	c := New(shrugPlan())
	_, err := c.Result()
	assert.ErrorIs(t, err, ErrIncomplete)

	src := map[string]float64{"a": 1}
	r := NewResult(src)
	src["a"] = 2
	v, _ := r.Get("a")
	assert.Equal(t, 1.0, v)

	cp := r.Values()
	cp["a"] = 3
	v, _ = r.Get("a")
	assert.Equal(t, 1.0, v)
	assert.False(t, r.Has("b"))

	var nilResult *Result
	assert.False(t, nilResult.Has("a"))
}
