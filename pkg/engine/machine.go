package engine

import (
	"math"
	"time"

	"github.com/teslashibe/go-fitdesk/pkg/calibration"
	"github.com/teslashibe/go-fitdesk/pkg/exercise"
	"github.com/teslashibe/go-fitdesk/pkg/feature"
	"github.com/teslashibe/go-fitdesk/pkg/feedback"
)

// rules are a profile's conditions with thresholds bound to concrete
// values. They are fixed once calibration finishes.
type rules struct {
	enter, exit exercise.Bound
	depth       *exercise.Bound
	countOn     exercise.CountOn
	hold        time.Duration

	left, right exercise.Bound

	predicate []exercise.Bound
}

func bindRules(p *exercise.Profile, res *calibration.Result) (rules, error) {
	var r rules
	var err error
	switch {
	case p.Cycle != nil:
		c := p.Cycle
		if r.enter, err = c.Enter.Resolve(res); err != nil {
			return r, err
		}
		if r.exit, err = c.Exit.Resolve(res); err != nil {
			return r, err
		}
		if c.Depth != nil {
			d, err := c.Depth.Resolve(res)
			if err != nil {
				return r, err
			}
			r.depth = &d
		}
		r.countOn = c.CountOn
		if r.countOn == "" {
			r.countOn = exercise.CountOnExit
		}
		r.hold = c.Hold
	case p.Bilateral != nil:
		if r.left, err = p.Bilateral.Left.Resolve(res); err != nil {
			return r, err
		}
		if r.right, err = p.Bilateral.Right.Resolve(res); err != nil {
			return r, err
		}
	case p.Hold != nil:
		for _, c := range p.Hold.Predicate {
			b, err := c.Resolve(res)
			if err != nil {
				return r, err
			}
			r.predicate = append(r.predicate, b)
		}
	}
	return r, nil
}

// initialPhase is where evaluation starts once the session is calibrated.
func initialPhase(p *exercise.Profile) Phase {
	switch {
	case p.Mode == exercise.ModeHold:
		return PhaseWaiting
	case p.Bilateral != nil:
		return PhaseArmed
	}
	// Cycles arm only after the rest position has been seen.
	return PhaseIdle
}

func (s *Session) setPhase(p Phase, ts time.Time) {
	s.state.Phase = p
	s.state.PhaseSince = ts
}

func (s *Session) cooledDown(ts time.Time) bool {
	cd := s.profile.Cooldown
	return cd <= 0 || s.state.LastRep.IsZero() || ts.Sub(s.state.LastRep) >= cd
}

// filtered applies the profile's change filter. It reports true when the
// frame should be ignored.
func (s *Session) filtered(vals feature.Values) bool {
	cf := s.profile.ChangeFilter
	if cf == nil {
		return false
	}
	v := vals[cf.Feature]
	if s.state.HasAccepted && math.Abs(v-s.state.LastAccepted) < cf.MinDelta {
		return true
	}
	s.state.LastAccepted = v
	s.state.HasAccepted = true
	return false
}

// count records a rep and completes the session at the target.
func (s *Session) count(ts time.Time) []feedback.Event {
	s.state.Reps++
	s.state.LastRep = ts

	events := []feedback.Event{s.event(feedback.KindRepCounted, ts, s.profile.FormatRep(s.state.Reps))}
	if s.state.Reps >= s.target {
		events = append(events, s.complete(ts)...)
	}
	return events
}

func (s *Session) complete(ts time.Time) []feedback.Event {
	s.setPhase(PhaseComplete, ts)
	s.finish()
	return []feedback.Event{s.event(feedback.KindSessionComplete, ts, s.profile.CompleteText)}
}

func (s *Session) stepCycle(ts time.Time, vals feature.Values) []feedback.Event {
	r := s.rules
	enter, okE := r.enter.Eval(vals)
	exit, okX := r.exit.Eval(vals)
	if !okE || !okX {
		return nil
	}
	if r.depth != nil && s.state.Phase != PhaseIdle && s.state.Phase != PhaseArmed {
		if deep, ok := r.depth.Eval(vals); ok && deep {
			s.state.WentLow = true
		}
	}

	switch s.state.Phase {
	case PhaseIdle:
		if exit {
			s.setPhase(PhaseArmed, ts)
		}

	case PhaseArmed:
		if !enter {
			return nil
		}
		if r.countOn == exercise.CountOnEnter {
			if !s.cooledDown(ts) {
				return nil
			}
			s.setPhase(PhaseActive, ts)
			return s.count(ts)
		}
		next := PhaseActive
		if r.hold > 0 {
			next = PhaseHold
		}
		s.setPhase(next, ts)
		s.state.WentLow = false
		if r.depth != nil {
			if deep, ok := r.depth.Eval(vals); ok && deep {
				s.state.WentLow = true
			}
		}

	case PhaseHold:
		if ts.Sub(s.state.PhaseSince) >= r.hold {
			s.setPhase(PhaseReturning, ts)
		}

	case PhaseActive, PhaseReturning:
		if !exit {
			return nil
		}
		if r.countOn == exercise.CountOnEnter {
			s.setPhase(PhaseArmed, ts)
			return nil
		}
		if r.depth != nil && !s.state.WentLow {
			// Shallow movement: back to rest without a rep.
			s.setPhase(PhaseArmed, ts)
			return nil
		}
		if !s.cooledDown(ts) {
			return nil
		}
		s.setPhase(PhaseArmed, ts)
		s.state.WentLow = false
		return s.count(ts)
	}
	return nil
}

func (s *Session) stepBilateral(ts time.Time, vals feature.Values) []feedback.Event {
	left, okL := s.rules.left.Eval(vals)
	right, okR := s.rules.right.Eval(vals)
	if !okL || !okR {
		return nil
	}

	side := SideNone
	switch {
	case left:
		side = SideLeft
	case right:
		side = SideRight
	}
	s.state.Side = side

	if side == SideNone {
		s.state.LastSide = SideNone
		return nil
	}
	if side == s.state.LastSide || !s.cooledDown(ts) {
		return nil
	}
	s.state.LastSide = side
	return s.count(ts)
}

func (s *Session) stepHold(ts time.Time, vals feature.Values) []feedback.Event {
	held, ok := exercise.All(s.rules.predicate, vals)
	if !ok {
		return nil
	}
	h := s.profile.Hold

	switch s.state.Phase {
	case PhaseWaiting:
		if !held {
			return nil
		}
		s.setPhase(PhaseHolding, ts)
		s.state.HoldStart = ts
		s.state.HoldElapsed = 0
		s.state.MilestoneFired = false
		return []feedback.Event{
			s.event(feedback.KindHoldStarted, ts, h.StartedText),
			s.progress(ts, 0),
		}

	case PhaseHolding:
		if !held {
			return []feedback.Event{s.loseHold(ts, h.LostText)}
		}
		elapsed := ts.Sub(s.state.HoldStart)
		s.state.HoldElapsed = elapsed.Seconds()

		target := s.holdTarget()
		done := elapsed >= target
		if done {
			s.state.HoldElapsed = target.Seconds()
		}

		events := []feedback.Event{s.progress(ts, min(elapsed, target))}
		// A frame gap can jump past both points at once; the milestone
		// still goes out before completion.
		if at, ok := h.MilestoneAt(target); ok && !s.state.MilestoneFired && elapsed >= at {
			s.state.MilestoneFired = true
			events = append(events, s.event(feedback.KindMilestone, ts, h.MilestoneText))
		}
		if done {
			events = append(events, s.complete(ts)...)
		}
		return events
	}
	return nil
}

// loseHold discards the running hold.
func (s *Session) loseHold(ts time.Time, text string) feedback.Event {
	s.setPhase(PhaseWaiting, ts)
	s.state.HoldStart = time.Time{}
	s.state.HoldElapsed = 0
	s.state.MilestoneFired = false
	return s.event(feedback.KindPoseLost, ts, text)
}

func (s *Session) holdTarget() time.Duration {
	return time.Duration(s.target) * time.Second
}

func (s *Session) progress(ts time.Time, elapsed time.Duration) feedback.Event {
	e := s.event(feedback.KindHoldProgress, ts, "")
	e.Elapsed = elapsed.Seconds()
	e.Remaining = max(0, (s.holdTarget() - elapsed).Seconds())
	return e
}
