package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

// DefaultQueueSize is the per-sink queue capacity.
const DefaultQueueSize = 64

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithQueueSize sets the per-sink queue capacity.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Dispatcher relays events to sinks without blocking the caller.
//
// Each sink gets a queue and a worker. Events reach every sink in the order
// Handle was called.
//
// The feedback path coalesces in two places. Here, when a queue is at
// capacity, hold_progress ticks are shed: a queued tick is evicted to make
// room, or the incoming tick is dropped when none is queued. The next tick
// supersedes them. Every other kind is kept and queued past capacity with a
// warning, and Stats counts both outcomes. VoiceSink separately skips text
// identical to the last thing it spoke.
type Dispatcher struct {
	queueSize int
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	workers []*worker
	closed  bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher with no sinks.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queueSize: DefaultQueueSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "feedback.dispatcher")
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d
}

// Register adds a sink. If kinds are given, the sink only receives those.
func (d *Dispatcher) Register(s Sink, kinds ...Kind) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	for _, w := range d.workers {
		if w.sink.Name() == s.Name() {
			return fmt.Errorf("%w: %s", ErrDuplicateSink, s.Name())
		}
	}

	w := &worker{
		sink:   s,
		limit:  d.queueSize,
		wake:   make(chan struct{}, 1),
		logger: d.logger.With("sink", s.Name()),
	}
	if len(kinds) > 0 {
		w.kinds = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			w.kinds[k] = true
		}
	}
	d.workers = append(d.workers, w)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		w.run(d.ctx)
	}()
	return nil
}

// Handle queues e for every interested sink and returns immediately.
// Events handed in after Close are discarded.
func (d *Dispatcher) Handle(e Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Debug("event after close", "kind", e.Kind)
		return
	}
	for _, w := range d.workers {
		w.enqueue(e)
	}
}

// HandleAll queues events in order.
func (d *Dispatcher) HandleAll(events []Event) {
	for _, e := range events {
		d.Handle(e)
	}
}

// Close stops accepting events and waits for queued events to be
// delivered, or for ctx to end, in which case in-flight sink calls are
// cancelled.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, w := range d.workers {
		w.stop()
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

// SinkStats are per-sink delivery counters.
type SinkStats struct {
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Shed      uint64 `json:"shed"`
	Overflow  uint64 `json:"overflow"`
	Queued    int    `json:"queued"`
}

// Stats returns counters keyed by sink name.
func (d *Dispatcher) Stats() map[string]SinkStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]SinkStats, len(d.workers))
	for _, w := range d.workers {
		out[w.sink.Name()] = w.stats()
	}
	return out
}

// Sinks returns the registered sink names in registration order.
func (d *Dispatcher) Sinks() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, len(d.workers))
	for i, w := range d.workers {
		names[i] = w.sink.Name()
	}
	return names
}

type worker struct {
	sink   Sink
	kinds  map[Kind]bool
	limit  int
	logger *slog.Logger

	mu      sync.Mutex
	queue   []Event
	stopped bool
	wake    chan struct{}

	delivered atomic.Uint64
	failed    atomic.Uint64
	shed      atomic.Uint64
	overflow  atomic.Uint64
}

func (w *worker) enqueue(e Event) {
	if w.kinds != nil && !w.kinds[e.Kind] {
		return
	}

	w.mu.Lock()
	if len(w.queue) >= w.limit {
		if e.Kind == KindHoldProgress {
			w.mu.Unlock()
			w.shed.Add(1)
			return
		}
		if i := slices.IndexFunc(w.queue, func(q Event) bool { return q.Kind == KindHoldProgress }); i >= 0 {
			w.queue = slices.Delete(w.queue, i, i+1)
			w.shed.Add(1)
		} else {
			w.overflow.Add(1)
			w.logger.Warn("sink queue over capacity", "queued", len(w.queue), "kind", e.Kind)
		}
	}
	w.queue = append(w.queue, e)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *worker) stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *worker) run(ctx context.Context) {
	for {
		select {
		case <-w.wake:
		case <-ctx.Done():
			return
		}

		for ctx.Err() == nil {
			w.mu.Lock()
			if len(w.queue) == 0 {
				stopped := w.stopped
				w.mu.Unlock()
				if stopped {
					return
				}
				break
			}
			e := w.queue[0]
			w.queue = w.queue[1:]
			w.mu.Unlock()

			w.deliver(ctx, e)
		}
	}
}

func (w *worker) deliver(ctx context.Context, e Event) {
	defer func() {
		if r := recover(); r != nil {
			w.failed.Add(1)
			w.logger.Error("sink panicked", "kind", e.Kind, "panic", r)
		}
	}()

	if err := w.sink.Handle(ctx, e); err != nil {
		w.failed.Add(1)
		w.logger.Warn("sink failed", "kind", e.Kind, "error", err)
		return
	}
	w.delivered.Add(1)
}

func (w *worker) stats() SinkStats {
	w.mu.Lock()
	queued := len(w.queue)
	w.mu.Unlock()
	return SinkStats{
		Delivered: w.delivered.Load(),
		Failed:    w.failed.Load(),
		Shed:      w.shed.Load(),
		Overflow:  w.overflow.Load(),
		Queued:    queued,
	}
}
