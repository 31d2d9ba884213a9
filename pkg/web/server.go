// Package web serves the HTTP and websocket API: exercise listings,
// session control, frame ingestion, and live feedback for overlays.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-fitdesk/pkg/engine"
	"github.com/teslashibe/go-fitdesk/pkg/exercise"
	"github.com/teslashibe/go-fitdesk/pkg/feedback"
	"github.com/teslashibe/go-fitdesk/pkg/hub"
	"github.com/teslashibe/go-fitdesk/pkg/landmark"
)

// StatsFunc reports per-sink delivery counters.
type StatsFunc func() map[string]feedback.SinkStats

// Option configures a Server.
type Option func(*Server)

// WithRecorder exposes recent events on /api/events.
func WithRecorder(r *feedback.Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

// WithStats exposes feedback delivery counters on /api/feedback/stats.
func WithStats(fn StatsFunc) Option {
	return func(s *Server) { s.stats = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStaticDir serves a dashboard from dir at /.
func WithStaticDir(dir string) Option {
	return func(s *Server) { s.staticDir = dir }
}

// WithRequestLog enables per-request access logging.
func WithRequestLog(on bool) Option {
	return func(s *Server) { s.requestLog = on }
}

// Server is the API server.
type Server struct {
	app    *fiber.App
	addr   string
	engine *engine.Engine
	logger *slog.Logger

	recorder   *feedback.Recorder
	stats      StatsFunc
	staticDir  string
	requestLog bool

	// Broadcast hubs for overlay clients.
	eventHub *hub.Hub
	audioHub *hub.Hub
}

// NewServer creates a server listening on addr (e.g. ":8080").
func NewServer(addr string, eng *engine.Engine, opts ...Option) *Server {
	s := &Server{
		addr:   addr,
		engine: eng,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web")
	s.eventHub = hub.New("events", s.logger)
	s.audioHub = hub.New("audio", s.logger)

	app := fiber.New(fiber.Config{
		AppName:               "fitdesk",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	if s.requestLog {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${status} ${method} ${path} ${latency}\n",
		}))
	}
	app.Use(cors.New())

	if s.staticDir != "" {
		app.Static("/", s.staticDir)
	}

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/exercises", s.handleListExercises)
	api.Get("/exercises/:id", s.handleGetExercise)
	api.Get("/sessions", s.handleListSessions)
	api.Post("/sessions", s.handleStartSession)
	api.Get("/sessions/:id", s.handleGetSession)
	api.Post("/sessions/:id/frames", s.handleFrame)
	api.Delete("/sessions/:id", s.handleStopSession)
	api.Get("/events", s.handleEvents)
	api.Get("/feedback/stats", s.handleStats)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleHubWS(s.eventHub)))
	app.Get("/ws/audio", websocket.New(s.handleHubWS(s.audioHub)))
	app.Get("/ws/sessions/:id/frames", websocket.New(s.handleFramesWS))

	s.app = app
	return s
}

// EventSink returns a feedback sink that broadcasts events to /ws/events.
func (s *Server) EventSink() feedback.Sink {
	return hub.NewEventSink(s.eventHub)
}

// AudioPlayer returns a player that streams speech to /ws/audio.
func (s *Server) AudioPlayer() feedback.Player {
	return hub.NewAudioPlayer(s.audioHub)
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// RunHubs starts the broadcast hubs; they stop when ctx is done.
func (s *Server) RunHubs(ctx context.Context) {
	go s.eventHub.Run(ctx)
	go s.audioHub.Run(ctx)
}

// Start runs the hubs and serves until ctx is done or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.RunHubs(ctx)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.addr)
		errc <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func statusOf(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, exercise.ErrUnknownExercise), errors.Is(err, engine.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidTarget), errors.Is(err, landmark.ErrBadFrame):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
