// Package app assembles the exercise engine, feedback sinks and voice
// backend from configuration. Both commands build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-fitdesk/internal/config"
	"github.com/teslashibe/go-fitdesk/pkg/engine"
	"github.com/teslashibe/go-fitdesk/pkg/exercise"
	"github.com/teslashibe/go-fitdesk/pkg/feedback"
	"github.com/teslashibe/go-fitdesk/pkg/tts"
	"github.com/teslashibe/go-fitdesk/pkg/web"
)

// RecorderLimit is how many recent events the recorder keeps.
const RecorderLimit = 500

// App owns the long-lived components.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	Registry   *exercise.Registry
	Dispatcher *feedback.Dispatcher
	Recorder   *feedback.Recorder
	Engine     *engine.Engine

	voice tts.Provider
}

// New builds the registry, dispatcher and engine. Logging and recording
// sinks are always registered.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{cfg: cfg, logger: logger.With("component", "app")}

	a.Registry = exercise.NewRegistry()
	if err := a.Registry.LoadBuiltIn(); err != nil {
		return nil, fmt.Errorf("load built-in exercises: %w", err)
	}
	if cfg.ProfilesDir != "" {
		if err := a.Registry.LoadDir(cfg.ProfilesDir); err != nil {
			return nil, fmt.Errorf("load exercises from %s: %w", cfg.ProfilesDir, err)
		}
	}
	a.logger.Info("exercises loaded", "count", a.Registry.Count())

	a.Dispatcher = feedback.NewDispatcher(
		feedback.WithQueueSize(cfg.QueueSize),
		feedback.WithLogger(logger),
	)
	a.Recorder = feedback.NewRecorder(RecorderLimit)
	if err := a.Dispatcher.Register(feedback.NewLogSink(logger)); err != nil {
		return nil, err
	}
	if err := a.Dispatcher.Register(a.Recorder); err != nil {
		return nil, err
	}

	voice, err := NewVoice(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.voice = voice

	a.Engine = engine.New(a.Registry,
		engine.WithPublisher(a.Dispatcher),
		engine.WithLogger(logger),
	)
	return a, nil
}

// NewVoice builds the TTS backend named by cfg.TTS. A comma-separated list
// ("openai,mock") builds a fallback chain. "none" returns nil.
func NewVoice(cfg *config.Config, logger *slog.Logger) (tts.Provider, error) {
	var providers []tts.Provider
	for _, name := range strings.Split(cfg.TTS, ",") {
		switch strings.TrimSpace(name) {
		case "", "none":
		case "mock":
			providers = append(providers, tts.NewMock())
		case "openai":
			opts := []tts.Option{
				tts.WithAPIKey(cfg.OpenAIKey),
				tts.WithTimeout(cfg.TTSTimeout),
				tts.WithLogger(logger),
			}
			if cfg.TTSVoice != "" {
				opts = append(opts, tts.WithVoice(cfg.TTSVoice))
			}
			p, err := tts.NewOpenAI(opts...)
			if err != nil {
				return nil, fmt.Errorf("openai tts: %w", err)
			}
			providers = append(providers, p)
		default:
			return nil, fmt.Errorf("unknown tts backend %q", name)
		}
	}
	switch len(providers) {
	case 0:
		return nil, nil
	case 1:
		return providers[0], nil
	}
	return tts.NewChain(logger, providers...)
}

// HasVoice reports whether a TTS backend is configured.
func (a *App) HasVoice() bool {
	return a.voice != nil
}

// AddVoice registers a voice sink that plays through player. It does
// nothing when no TTS backend is configured.
func (a *App) AddVoice(player feedback.Player) error {
	if a.voice == nil {
		return nil
	}
	return a.Dispatcher.Register(feedback.NewVoiceSink(a.voice, player, a.logger))
}

// Serve runs the API server until ctx is done.
func (a *App) Serve(ctx context.Context, staticDir string) error {
	srv := web.NewServer(":"+a.cfg.Port, a.Engine,
		web.WithRecorder(a.Recorder),
		web.WithStats(a.Dispatcher.Stats),
		web.WithLogger(a.logger),
		web.WithStaticDir(staticDir),
		web.WithRequestLog(!a.cfg.IsProduction()),
	)
	if err := a.Dispatcher.Register(srv.EventSink()); err != nil {
		return err
	}
	if err := a.AddVoice(srv.AudioPlayer()); err != nil {
		return err
	}
	return srv.Start(ctx)
}

// Close stops every running session, drains feedback and releases the
// voice backend.
func (a *App) Close(ctx context.Context) error {
	for _, s := range a.Engine.Sessions() {
		if !s.Done {
			a.Engine.StopSession(s.ID)
		}
	}
	err := a.Dispatcher.Close(ctx)
	if a.voice != nil {
		err = errors.Join(err, a.voice.Close())
	}
	return err
}
