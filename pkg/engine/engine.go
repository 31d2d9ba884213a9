// Package engine runs exercise sessions: it turns landmark frames into
// rep counts, hold timers and feedback events according to an exercise
// profile.
//
// A session moves through calibration (when the profile has a plan), then
// a rep counter or hold timer, and ends on completion or stop. Step never
// blocks or sleeps; all timing comes from frame timestamps.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-fitdesk/pkg/calibration"
	"github.com/teslashibe/go-fitdesk/pkg/exercise"
	"github.com/teslashibe/go-fitdesk/pkg/feedback"
)

var (
	// ErrSessionNotFound is returned for an unknown session id.
	ErrSessionNotFound = errors.New("engine: session not found")

	// ErrInvalidTarget is returned for a negative target.
	ErrInvalidTarget = errors.New("engine: invalid target")
)

// Publisher receives every event a session emits. feedback.Dispatcher
// satisfies it.
type Publisher interface {
	Handle(e feedback.Event)
}

type discard struct{}

func (discard) Handle(feedback.Event) {}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher sets where events go.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.publisher = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock sets the time source used when a frame carries no timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.clock = now
		}
	}
}

// Engine owns the running sessions.
type Engine struct {
	registry  *exercise.Registry
	publisher Publisher
	logger    *slog.Logger
	clock     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// New creates an engine serving the profiles in registry.
func New(registry *exercise.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry:  registry,
		publisher: discard{},
		logger:    slog.Default(),
		clock:     time.Now,
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "engine")
	return e
}

// StartSession starts a session for exerciseID. target is a rep count for
// rep profiles and seconds for hold profiles; zero uses the profile default.
// The profile's intro is published as an instruction event.
func (e *Engine) StartSession(exerciseID string, target int) (*Session, error) {
	if target < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTarget, target)
	}
	p, err := e.registry.Get(exerciseID)
	if err != nil {
		return nil, err
	}

	now := e.clock()
	s := &Session{
		id:        uuid.NewString(),
		profile:   p,
		target:    p.Target(target),
		startedAt: now,
		publish:   e.publisher.Handle,
		clock:     e.clock,
		done:      make(chan struct{}),
	}
	s.logger = e.logger.With("session", s.id, "exercise", p.ID)

	if p.Calibrated() {
		s.calib = calibration.New(p.Calibration)
		s.setPhase(PhaseCalibrating, now)
	} else {
		if s.rules, err = bindRules(p, nil); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", exercise.ErrInvalidProfile, p.ID, err)
		}
		s.setPhase(initialPhase(p), now)
	}

	e.mu.Lock()
	e.sessions[s.id] = s
	e.mu.Unlock()

	s.logger.Info("session started", "target", s.target, "mode", p.Mode, "calibrating", s.calib != nil)
	if p.Intro != "" {
		s.publish(s.event(feedback.KindInstruction, now, p.Intro))
	}
	return s, nil
}

// Session looks up a session.
func (e *Engine) Session(id string) (*Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s, ok := e.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// StopSession stops a session; stopping a finished session is a no-op.
func (e *Engine) StopSession(id string) ([]feedback.Event, error) {
	s, err := e.Session(id)
	if err != nil {
		return nil, err
	}
	events := s.Stop()
	if events != nil {
		s.logger.Info("session stopped", "reps", s.State().Reps)
	}
	return events, nil
}

// Remove forgets a finished session. Running sessions are stopped first.
func (e *Engine) Remove(id string) error {
	if _, err := e.StopSession(id); err != nil {
		return err
	}
	e.mu.Lock()
	delete(e.sessions, id)
	e.mu.Unlock()
	return nil
}

// Sessions returns snapshots of every session, oldest first.
func (e *Engine) Sessions() []Snapshot {
	e.mu.RLock()
	list := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		list = append(list, s)
	}
	e.mu.RUnlock()

	out := make([]Snapshot, len(list))
	for i, s := range list {
		out[i] = s.Snapshot()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Registry returns the profile registry.
func (e *Engine) Registry() *exercise.Registry {
	return e.registry
}
