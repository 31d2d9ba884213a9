package feedback

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-fitdesk/pkg/tts"
)

// Player plays synthesized audio somewhere: a speaker, a browser socket.
type Player interface {
	Play(ctx context.Context, audio *tts.Audio) error
}

// PlayerFunc adapts a function to Player.
type PlayerFunc func(ctx context.Context, audio *tts.Audio) error

// Play calls f.
func (f PlayerFunc) Play(ctx context.Context, audio *tts.Audio) error { return f(ctx, audio) }

// VoiceSink speaks event text. It never speaks the same text twice in a
// row. Progress shedding happens upstream in the Dispatcher queue.
type VoiceSink struct {
	provider tts.Provider
	player   Player
	logger   *slog.Logger
	last     string
}

// NewVoiceSink creates a voice sink. A nil player synthesizes without
// playing, which is useful for warming caches and in tests.
func NewVoiceSink(provider tts.Provider, player Player, logger *slog.Logger) *VoiceSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &VoiceSink{
		provider: provider,
		player:   player,
		logger:   logger.With("component", "feedback.voice"),
	}
}

// Name returns "voice".
func (s *VoiceSink) Name() string { return "voice" }

// Handle synthesizes and plays the event text.
func (s *VoiceSink) Handle(ctx context.Context, e Event) error {
	if !e.Spoken() {
		return nil
	}
	if e.Text == s.last {
		s.logger.Debug("skipping repeated prompt", "text", e.Text)
		return nil
	}
	s.last = e.Text

	audio, err := s.provider.Synthesize(ctx, e.Text)
	if err != nil {
		return fmt.Errorf("synthesize %q: %w", e.Text, err)
	}
	if s.player == nil {
		return nil
	}
	if err := s.player.Play(ctx, audio); err != nil {
		return fmt.Errorf("play %q: %w", e.Text, err)
	}
	return nil
}

var _ Sink = (*VoiceSink)(nil)
