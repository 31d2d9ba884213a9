// Package tts turns coaching prompts into audio.
//
// Providers implement Provider and can be stacked with Chain so a failing
// backend falls through to the next one. The voice feedback sink calls
// Synthesize once per spoken prompt; prompts are short, so there is no
// streaming API.
//
//	provider, _ := tts.NewOpenAI(
//	    tts.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    tts.WithVoice(tts.VoiceNova),
//	)
//	defer provider.Close()
//
//	audio, _ := provider.Synthesize(ctx, "Repetition 3")
package tts

import (
	"context"
	"time"
)

// Provider synthesizes speech.
type Provider interface {
	// Synthesize converts text to a complete audio buffer.
	Synthesize(ctx context.Context, text string) (*Audio, error)

	// Health checks provider connectivity and credentials.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Audio is one synthesized prompt.
type Audio struct {
	Data   []byte
	Format Format
	Text   string

	// Duration is the estimated playback length, zero when unknown.
	Duration time.Duration

	// Latency is the time from request to last byte.
	Latency time.Duration
}

// Format describes the audio encoding.
type Format struct {
	Encoding   Encoding `json:"encoding"`
	SampleRate int      `json:"sample_rate"`
	Channels   int      `json:"channels"`
}

// Encoding is an audio container or sample format.
type Encoding string

const (
	EncodingMP3   Encoding = "mp3"
	EncodingOpus  Encoding = "opus"
	EncodingWAV   Encoding = "wav"
	EncodingPCM24 Encoding = "pcm" // raw 24kHz mono PCM16
)

// ContentType returns the MIME type for the encoding.
func (e Encoding) ContentType() string {
	switch e {
	case EncodingMP3:
		return "audio/mpeg"
	case EncodingOpus:
		return "audio/ogg"
	case EncodingWAV:
		return "audio/wav"
	}
	return "application/octet-stream"
}
