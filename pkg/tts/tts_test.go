package tts_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-fitdesk/pkg/tts"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMockProvider(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	t.Run("Synthesize returns audio", func(t *testing.T) {
		audio, err := mock.Synthesize(ctx, "Repetition 1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(audio.Data) == 0 {
			t.Error("expected audio data")
		}
		if audio.Text != "Repetition 1" {
			t.Errorf("expected text to round trip, got %q", audio.Text)
		}
		if audio.Format.SampleRate != 24000 {
			t.Errorf("expected 24000 sample rate, got %d", audio.Format.SampleRate)
		}
	})

	t.Run("Texts are tracked", func(t *testing.T) {
		_, _ = mock.Synthesize(ctx, "Repetition 2")
		got := mock.Texts()
		if len(got) != 2 || got[1] != "Repetition 2" {
			t.Errorf("unexpected texts %v", got)
		}
	})

	t.Run("Close", func(t *testing.T) {
		if err := mock.Close(); err != nil {
			t.Fatal(err)
		}
		if !mock.Closed() {
			t.Error("expected closed")
		}
	})
}

func TestChainFallback(t *testing.T) {
	ctx := context.Background()
	down := errors.New("down")

	first := tts.FailingMock(down)
	second := tts.NewMock()

	chain, err := tts.NewChain(quietLogger(), first, second)
	if err != nil {
		t.Fatal(err)
	}

	audio, err := chain.Synthesize(ctx, "Great job!")
	if err != nil {
		t.Fatalf("expected fallback to succeed: %v", err)
	}
	if audio.Text != "Great job!" {
		t.Errorf("unexpected audio text %q", audio.Text)
	}
	if len(first.Texts()) != 1 || len(second.Texts()) != 1 {
		t.Error("expected both providers to be tried once")
	}
	if err := chain.Health(ctx); err != nil {
		t.Errorf("one healthy provider should be enough: %v", err)
	}
}

func TestChainAllFail(t *testing.T) {
	down := errors.New("down")
	chain, err := tts.NewChain(nil, tts.FailingMock(down), tts.FailingMock(down))
	if err != nil {
		t.Fatal(err)
	}

	_, err = chain.Synthesize(context.Background(), "hello")
	var ce *tts.ChainError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ChainError, got %v", err)
	}
	if len(ce.Errors) != 2 {
		t.Errorf("expected 2 errors, got %d", len(ce.Errors))
	}
	if !errors.Is(err, down) {
		t.Error("ChainError should unwrap to the last error")
	}
	if chain.Health(context.Background()) == nil {
		t.Error("expected health failure")
	}
}

func TestChainBackoff(t *testing.T) {
	ctx := context.Background()
	first := tts.FailingMock(errors.New("down"))
	second := tts.NewMock()

	chain, err := tts.NewChain(quietLogger(), first, second)
	if err != nil {
		t.Fatal(err)
	}
	for range 3 {
		if _, err := chain.Synthesize(ctx, "Repetition 1"); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(first.Texts()); n != 1 {
		t.Errorf("failed provider tried %d times, want 1 while backing off", n)
	}
	if n := len(second.Texts()); n != 3 {
		t.Errorf("fallback used %d times, want 3", n)
	}

	// Without backoff every call retries the failed provider first.
	retrying, err := tts.NewChain(quietLogger(), first, second)
	if err != nil {
		t.Fatal(err)
	}
	retrying.SetBackoff(0)
	for range 2 {
		if _, err := retrying.Synthesize(ctx, "Repetition 2"); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(first.Texts()); n != 3 {
		t.Errorf("failed provider tried %d times in total, want 3", n)
	}
}

func TestNewChainEmpty(t *testing.T) {
	if _, err := tts.NewChain(nil); !errors.Is(err, tts.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := tts.DefaultConfig()
	if err := cfg.Validate(); !errors.Is(err, tts.ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}

	cfg.Apply(tts.WithAPIKey("k"), tts.WithSpeed(9))
	if err := cfg.Validate(); !errors.Is(err, tts.ErrBadSpeed) {
		t.Errorf("expected ErrBadSpeed, got %v", err)
	}

	cfg.Apply(tts.WithSpeed(1))
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{429, true},
		{500, true},
		{503, true},
		{400, false},
		{401, false},
	}
	for _, tt := range tests {
		e := &tts.APIError{StatusCode: tt.status, Provider: "openai"}
		if e.IsRetryable() != tt.retryable {
			t.Errorf("status %d: retryable = %v, want %v", tt.status, e.IsRetryable(), tt.retryable)
		}
	}
	if !(&tts.APIError{StatusCode: 401}).IsUnauthorized() {
		t.Error("401 should be unauthorized")
	}
}

func TestOpenAISynthesize(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"busy"}}`))
			return
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req["input"] != "Repetition 5" || req["voice"] != tts.VoiceNova {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake-mp3"))
	}))
	defer srv.Close()

	p, err := tts.NewOpenAI(
		tts.WithAPIKey("test-key"),
		tts.WithBaseURL(srv.URL),
		tts.WithRetry(2, time.Millisecond),
		tts.WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	audio, err := p.Synthesize(context.Background(), "Repetition 5")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio.Data) != "ID3fake-mp3" {
		t.Errorf("unexpected audio %q", audio.Data)
	}
	if audio.Format.Encoding != tts.EncodingMP3 {
		t.Errorf("unexpected encoding %s", audio.Format.Encoding)
	}
	if calls.Load() != 2 {
		t.Errorf("expected one retry, got %d calls", calls.Load())
	}
}

func TestOpenAIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	p, err := tts.NewOpenAI(tts.WithAPIKey("nope"), tts.WithBaseURL(srv.URL), tts.WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Synthesize(context.Background(), "hello")
	var apiErr *tts.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.IsUnauthorized() || apiErr.Code != "invalid_api_key" {
		t.Errorf("unexpected error %+v", apiErr)
	}

	if err := p.Health(context.Background()); err == nil {
		t.Error("expected health failure")
	}

	if _, err := p.Synthesize(context.Background(), "  "); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}

	if _, err := tts.NewOpenAI(); !errors.Is(err, tts.ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestEncodingContentType(t *testing.T) {
	if tts.EncodingMP3.ContentType() != "audio/mpeg" {
		t.Error("mp3 content type")
	}
	if tts.EncodingPCM24.ContentType() != "application/octet-stream" {
		t.Error("pcm content type")
	}
}
