package tts

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider for tests. It records every spoken text.
type Mock struct {
	// SynthesizeFunc overrides synthesis. If nil, returns silent PCM sized
	// to the text.
	SynthesizeFunc func(ctx context.Context, text string) (*Audio, error)

	// HealthFunc overrides Health. If nil, the mock is healthy.
	HealthFunc func(ctx context.Context) error

	mu     sync.Mutex
	texts  []string
	closed bool
}

// NewMock creates a mock provider.
func NewMock() *Mock {
	return &Mock{}
}

// FailingMock returns a mock whose calls all fail with err.
func FailingMock(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(context.Context, string) (*Audio, error) { return nil, err },
		HealthFunc:     func(context.Context) error { return err },
	}
}

// Synthesize records text and returns audio.
func (m *Mock) Synthesize(ctx context.Context, text string) (*Audio, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	fn := m.SynthesizeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	// ~20ms of 24kHz PCM16 per character.
	return &Audio{
		Data:     make([]byte, len(text)*960),
		Format:   Format{Encoding: EncodingPCM24, SampleRate: 24000, Channels: 1},
		Text:     text,
		Duration: time.Duration(len(text)) * 20 * time.Millisecond,
	}, nil
}

// Health calls HealthFunc.
func (m *Mock) Health(ctx context.Context) error {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close marks the mock closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Texts returns every text passed to Synthesize, in order.
func (m *Mock) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.texts))
	copy(out, m.texts)
	return out
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ Provider = (*Mock)(nil)
