// fitdesk serves the exercise API: estimators post landmark frames, the
// engine counts reps and times holds, and overlays listen for feedback.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-fitdesk/internal/app"
	"github.com/teslashibe/go-fitdesk/internal/config"
	"github.com/teslashibe/go-fitdesk/internal/log"
)

func main() {
	cfg := config.Load()

	port := flag.String("port", cfg.Port, "HTTP listen port")
	level := flag.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	profiles := flag.String("profiles", cfg.ProfilesDir, "Directory of extra exercise profiles (*.yaml)")
	ttsMode := flag.String("tts", cfg.TTS, "TTS backend: none, openai, mock (comma list for fallback)")
	static := flag.String("static", "", "Serve a dashboard from this directory")
	flag.Parse()

	cfg.Port, cfg.LogLevel, cfg.ProfilesDir, cfg.TTS = *port, *level, *profiles, *ttsMode

	log.Init(cfg.LogLevel)
	logger := log.L()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	serveErr := a.Serve(ctx, *static)

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := a.Close(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}
	if serveErr != nil {
		logger.Error("server stopped", "error", serveErr)
		os.Exit(1)
	}
}
