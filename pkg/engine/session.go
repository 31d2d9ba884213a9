package engine

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-fitdesk/pkg/calibration"
	"github.com/teslashibe/go-fitdesk/pkg/exercise"
	"github.com/teslashibe/go-fitdesk/pkg/feature"
	"github.com/teslashibe/go-fitdesk/pkg/feedback"
	"github.com/teslashibe/go-fitdesk/pkg/landmark"
)

// StoppedText is spoken when a session is stopped by the user.
const StoppedText = "Exercise stopped."

// Session is one user working through one exercise. Step is safe to call
// from any goroutine but calls are serialized; a session is meant to be
// driven by a single frame loop.
type Session struct {
	id        string
	profile   *exercise.Profile
	target    int
	startedAt time.Time
	publish   func(feedback.Event)
	clock     func() time.Time
	logger    *slog.Logger

	mu    sync.Mutex
	state State
	calib *calibration.Calibrator
	rules rules

	done     chan struct{}
	doneOnce sync.Once
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Profile returns the exercise profile.
func (s *Session) Profile() *exercise.Profile { return s.profile }

// Target returns the rep count, or hold seconds, that completes the session.
func (s *Session) Target() int { return s.target }

// Done is closed when the session completes or is stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Step evaluates one frame and returns the events it produced, which have
// already been handed to the engine's publisher. A nil or empty frame
// means the estimator found nobody. After completion or stop, Step does
// nothing and returns nil.
func (s *Session) Step(f *landmark.Frame) []feedback.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Phase.Terminal() {
		return nil
	}
	events := s.step(f)
	for _, e := range events {
		s.publish(e)
	}
	return events
}

func (s *Session) step(f *landmark.Frame) []feedback.Event {
	ts := s.clock()
	if f != nil && !f.Timestamp.IsZero() {
		ts = f.Timestamp
	}

	vals, err := feature.ExtractAll(f, s.profile.Features)

	if s.state.Phase == PhaseCalibrating {
		return s.stepCalibration(ts, vals, err == nil)
	}

	switch {
	case errors.Is(err, feature.ErrNoDetection):
		return s.noDetection(ts)
	case err != nil:
		// A required landmark is hidden this frame; wait for the next one.
		return nil
	}
	s.state.Lost = false

	if s.filtered(vals) {
		return nil
	}

	switch {
	case s.profile.Mode == exercise.ModeHold:
		return s.stepHold(ts, vals)
	case s.profile.Bilateral != nil:
		return s.stepBilateral(ts, vals)
	}
	return s.stepCycle(ts, vals)
}

func (s *Session) stepCalibration(ts time.Time, vals feature.Values, ok bool) []feedback.Event {
	prompts, done := s.calib.Observe(ts, vals, ok)

	events := make([]feedback.Event, 0, len(prompts))
	for _, p := range prompts {
		events = append(events, s.event(feedback.KindCalibrationPrompt, ts, p))
	}
	if !done {
		return events
	}

	res, err := s.calib.Result()
	if err == nil {
		s.rules, err = bindRules(s.profile, res)
	}
	if err != nil {
		// Profiles are validated at load, so this means a broken profile.
		s.logger.Error("calibration result unusable", "error", err)
		s.setPhase(PhaseStopped, ts)
		s.finish()
		return append(events, s.event(feedback.KindSessionStopped, ts, StoppedText))
	}

	s.state.Calibration = res
	s.logger.Info("calibrated", "references", res.Values())
	s.setPhase(initialPhase(s.profile), ts)
	return events
}

// noDetection handles a frame where nobody was found. Losing the user
// while armed or holding is reported once per gap; anywhere else it is a
// skipped frame.
func (s *Session) noDetection(ts time.Time) []feedback.Event {
	switch s.state.Phase {
	case PhaseHolding:
		s.state.Lost = true
		return []feedback.Event{s.loseHold(ts, s.profile.Lost())}
	case PhaseArmed:
		if s.state.Lost {
			return nil
		}
		s.state.Lost = true
		return []feedback.Event{s.event(feedback.KindPoseLost, ts, s.profile.Lost())}
	}
	return nil
}

// Stop ends the session. It returns the stop event, or nil if the session
// had already ended.
func (s *Session) Stop() []feedback.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Phase.Terminal() {
		return nil
	}
	ts := s.clock()
	s.setPhase(PhaseStopped, ts)
	s.finish()

	e := s.event(feedback.KindSessionStopped, ts, StoppedText)
	s.publish(e)
	return []feedback.Event{e}
}

// State returns a copy of the evaluation state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) event(kind feedback.Kind, ts time.Time, text string) feedback.Event {
	return feedback.Event{
		Kind:      kind,
		SessionID: s.id,
		Exercise:  s.profile.ID,
		Time:      ts,
		Text:      text,
		Count:     s.state.Reps,
		Target:    s.target,
	}
}

// Snapshot is a read-only view of a session for dashboards.
type Snapshot struct {
	ID          string                `json:"id"`
	Exercise    string                `json:"exercise"`
	Name        string                `json:"name"`
	Mode        exercise.Mode         `json:"mode"`
	Phase       Phase                 `json:"phase"`
	Reps        int                   `json:"reps"`
	Target      int                   `json:"target"`
	HoldElapsed float64               `json:"hold_elapsed_seconds,omitempty"`
	Side        Side                  `json:"side,omitempty"`
	Calibration *calibration.Progress `json:"calibration,omitempty"`
	References  map[string]float64    `json:"references,omitempty"`
	StartedAt   time.Time             `json:"started_at"`
	Done        bool                  `json:"done"`
}

// Snapshot returns the dashboard view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:          s.id,
		Exercise:    s.profile.ID,
		Name:        s.profile.Name,
		Mode:        s.profile.Mode,
		Phase:       s.state.Phase,
		Reps:        s.state.Reps,
		Target:      s.target,
		HoldElapsed: s.state.HoldElapsed,
		Side:        s.state.Side,
		StartedAt:   s.startedAt,
		Done:        s.state.Phase.Terminal(),
	}
	if s.calib != nil {
		p := s.calib.Progress()
		snap.Calibration = &p
	}
	if s.state.Calibration != nil {
		snap.References = s.state.Calibration.Values()
	}
	return snap
}
