package feedback

import (
	"context"
	"log/slog"
	"sync"
)

// Sink consumes events. Handle is called from a single worker goroutine per
// sink, in emission order. Sinks must tolerate the same kind repeatedly.
type Sink interface {
	Name() string
	Handle(ctx context.Context, e Event) error
}

// FuncSink adapts a function to Sink.
type FuncSink struct {
	name string
	fn   func(ctx context.Context, e Event) error
}

// NewFuncSink creates a named sink from fn.
func NewFuncSink(name string, fn func(ctx context.Context, e Event) error) *FuncSink {
	return &FuncSink{name: name, fn: fn}
}

// Name returns the sink name.
func (s *FuncSink) Name() string { return s.name }

// Handle calls the function.
func (s *FuncSink) Handle(ctx context.Context, e Event) error { return s.fn(ctx, e) }

// LogSink writes events to a structured logger. Progress ticks are logged
// at debug level.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a log sink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "feedback.log")}
}

// Name returns "log".
func (s *LogSink) Name() string { return "log" }

// Handle logs the event.
func (s *LogSink) Handle(ctx context.Context, e Event) error {
	level := slog.LevelInfo
	if e.Kind == KindHoldProgress {
		level = slog.LevelDebug
	}
	s.logger.Log(ctx, level, string(e.Kind),
		"session", e.SessionID,
		"exercise", e.Exercise,
		"text", e.Text,
		"count", e.Count,
		"target", e.Target,
		"elapsed", e.Elapsed,
	)
	return nil
}

// Recorder keeps the most recent events in memory.
type Recorder struct {
	mu     sync.RWMutex
	limit  int
	events []Event
}

// NewRecorder keeps at most limit events; zero or less keeps everything.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

// Name returns "recorder".
func (r *Recorder) Name() string { return "recorder" }

// Handle stores the event.
func (r *Recorder) Handle(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if r.limit > 0 && len(r.events) > r.limit {
		r.events = append(r.events[:0], r.events[len(r.events)-r.limit:]...)
	}
	return nil
}

// Events returns a copy of the stored events, oldest first.
func (r *Recorder) Events() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Session returns the stored events for one session.
func (r *Recorder) Session(id string) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Event
	for _, e := range r.events {
		if e.SessionID == id {
			out = append(out, e)
		}
	}
	return out
}

var (
	_ Sink = (*FuncSink)(nil)
	_ Sink = (*LogSink)(nil)
	_ Sink = (*Recorder)(nil)
)
