// fitdesk-track runs one exercise session against a live estimator
// websocket or a recorded JSONL file, speaking feedback as it goes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/teslashibe/go-fitdesk/internal/app"
	"github.com/teslashibe/go-fitdesk/internal/config"
	"github.com/teslashibe/go-fitdesk/internal/log"
	"github.com/teslashibe/go-fitdesk/pkg/engine"
	"github.com/teslashibe/go-fitdesk/pkg/feedback"
	"github.com/teslashibe/go-fitdesk/pkg/landmark"
	"github.com/teslashibe/go-fitdesk/pkg/tts"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "fitdesk-track:", err)
		os.Exit(1)
	}
}

var newApp = app.New

func run(args []string) (err error) {
	cfg := config.Load()

	fs := flag.NewFlagSet("fitdesk-track", flag.ContinueOnError)
	exerciseID := fs.String("exercise", "", "Exercise id (see -list)")
	target := fs.Int("target", 0, "Reps, or hold seconds; 0 uses the exercise default")
	replay := fs.String("replay", "", "Read frames from a JSONL recording instead of a websocket")
	url := fs.String("url", cfg.LandmarkURL, "Estimator websocket URL")
	audioDir := fs.String("audio-dir", "", "Write synthesized prompts to this directory")
	list := fs.Bool("list", false, "List exercises and exit")
	level := fs.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	ttsMode := fs.String("tts", cfg.TTS, "TTS backend: none, openai, mock")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.LogLevel, cfg.TTS = *level, *ttsMode
	log.Init(cfg.LogLevel)
	logger := log.L()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		err = errors.Join(err, a.Close(shutdownCtx))
	}()

	if *list {
		for _, s := range a.Registry.Summaries("") {
			fmt.Printf("%-22s %-12s %-5s %s\n", s.ID, s.Category, s.Mode, s.Name)
		}
		return nil
	}
	if *exerciseID == "" {
		return errors.New("-exercise is required")
	}

	var player feedback.Player
	if *audioDir != "" {
		if err := os.MkdirAll(*audioDir, 0o755); err != nil {
			return err
		}
		player = fileWriter(*audioDir)
	}
	if err := a.AddVoice(player); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	src, closeSrc, err := openSource(ctx, *replay, *url)
	if err != nil {
		return err
	}
	defer closeSrc()

	sess, err := a.Engine.StartSession(*exerciseID, *target)
	if err != nil {
		return err
	}
	runErr := engine.Run(ctx, sess, src)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	snap := sess.Snapshot()
	logger.Info("session finished", "exercise", snap.Exercise, "phase", snap.Phase, "reps", snap.Reps, "hold_seconds", snap.HoldElapsed)
	return runErr
}

func openSource(ctx context.Context, replay, url string) (landmark.Source, func(), error) {
	if replay != "" {
		f, err := os.Open(replay)
		if err != nil {
			return nil, nil, err
		}
		return landmark.NewJSONLSource(f), func() { f.Close() }, nil
	}
	ws, err := landmark.DialWS(ctx, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to estimator: %w", err)
	}
	return ws, func() { ws.Close() }, nil
}

// fileWriter saves each clip as a numbered file, e.g. 003.mp3.
func fileWriter(dir string) feedback.PlayerFunc {
	var n atomic.Int64
	return func(_ context.Context, audio *tts.Audio) error {
		name := fmt.Sprintf("%03d.%s", n.Add(1), audio.Format.Encoding)
		return os.WriteFile(filepath.Join(dir, name), audio.Data, 0o644)
	}
}
