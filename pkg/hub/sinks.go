package hub

import (
	"context"
	"errors"

	"github.com/teslashibe/go-fitdesk/pkg/feedback"
	"github.com/teslashibe/go-fitdesk/pkg/tts"
)

// ErrStopped is returned when broadcasting through a hub that is not running.
var ErrStopped = errors.New("hub: not running")

// EventSink broadcasts feedback events to overlay clients as JSON.
type EventSink struct {
	hub *Hub
}

// NewEventSink creates an overlay sink on h.
func NewEventSink(h *Hub) *EventSink {
	return &EventSink{hub: h}
}

// Name returns "overlay".
func (s *EventSink) Name() string { return "overlay" }

// Handle broadcasts e.
func (s *EventSink) Handle(_ context.Context, e feedback.Event) error {
	if !s.hub.IsRunning() {
		return ErrStopped
	}
	return s.hub.BroadcastJSON(e)
}

var _ feedback.Sink = (*EventSink)(nil)

// AudioHeader precedes each audio clip on the audio socket so browsers
// know how to decode the binary frame that follows.
type AudioHeader struct {
	Type        string  `json:"type"`
	Text        string  `json:"text"`
	ContentType string  `json:"content_type"`
	Bytes       int     `json:"bytes"`
	Duration    float64 `json:"duration_seconds,omitempty"`
}

// AudioPlayer plays synthesized speech by streaming it to browser clients.
type AudioPlayer struct {
	hub *Hub
}

// NewAudioPlayer creates a player on h.
func NewAudioPlayer(h *Hub) *AudioPlayer {
	return &AudioPlayer{hub: h}
}

// Play sends a header then the audio bytes. With no clients connected it
// does nothing.
func (p *AudioPlayer) Play(_ context.Context, audio *tts.Audio) error {
	if !p.hub.IsRunning() {
		return ErrStopped
	}
	if p.hub.ClientCount() == 0 {
		return nil
	}
	hdr := AudioHeader{
		Type:        "audio",
		Text:        audio.Text,
		ContentType: audio.Format.Encoding.ContentType(),
		Bytes:       len(audio.Data),
		Duration:    audio.Duration.Seconds(),
	}
	if err := p.hub.BroadcastJSON(hdr); err != nil {
		return err
	}
	p.hub.BroadcastBinary(audio.Data)
	return nil
}

var _ feedback.Player = (*AudioPlayer)(nil)
