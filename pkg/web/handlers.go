package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-fitdesk/pkg/engine"
	"github.com/teslashibe/go-fitdesk/pkg/feedback"
	"github.com/teslashibe/go-fitdesk/pkg/hub"
	"github.com/teslashibe/go-fitdesk/pkg/landmark"
)

// StartRequest is the body of POST /api/sessions.
type StartRequest struct {
	Exercise string `json:"exercise"`
	Target   int    `json:"target"`
}

// FrameResponse is returned for each ingested frame.
type FrameResponse struct {
	Events  []feedback.Event `json:"events"`
	Session engine.Snapshot  `json:"session"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"exercises": s.engine.Registry().Count(),
		"sessions":  len(s.engine.Sessions()),
	})
}

func (s *Server) handleListExercises(c *fiber.Ctx) error {
	return c.JSON(s.engine.Registry().Summaries(c.Query("category")))
}

func (s *Server) handleGetExercise(c *fiber.Ctx) error {
	p, err := s.engine.Registry().Get(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (s *Server) handleListSessions(c *fiber.Ctx) error {
	return c.JSON(s.engine.Sessions())
}

func (s *Server) handleStartSession(c *fiber.Ctx) error {
	var req StartRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body: "+err.Error())
	}
	if req.Exercise == "" {
		return fiber.NewError(fiber.StatusBadRequest, "exercise is required")
	}
	sess, err := s.engine.StartSession(req.Exercise, req.Target)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(sess.Snapshot())
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	sess, err := s.engine.Session(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(sess.Snapshot())
}

func (s *Server) handleFrame(c *fiber.Ctx) error {
	sess, err := s.engine.Session(c.Params("id"))
	if err != nil {
		return err
	}
	f, err := landmark.Decode(c.Body())
	if err != nil {
		return err
	}
	events := sess.Step(f)
	if events == nil {
		events = []feedback.Event{}
	}
	return c.JSON(FrameResponse{Events: events, Session: sess.Snapshot()})
}

func (s *Server) handleStopSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := s.engine.StopSession(id); err != nil {
		return err
	}
	sess, err := s.engine.Session(id)
	if err != nil {
		return err
	}
	return c.JSON(sess.Snapshot())
}

func (s *Server) handleEvents(c *fiber.Ctx) error {
	if s.recorder == nil {
		return c.JSON([]feedback.Event{})
	}
	if id := c.Query("session"); id != "" {
		return c.JSON(s.recorder.Session(id))
	}
	return c.JSON(s.recorder.Events())
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	if s.stats == nil {
		return c.JSON(fiber.Map{})
	}
	return c.JSON(s.stats())
}

// handleHubWS attaches the connection to a broadcast hub until it closes.
func (s *Server) handleHubWS(h *hub.Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		client := hub.NewClient(h, conn)
		if client == nil {
			conn.Close()
			return
		}
		client.Run()
	}
}

// handleFramesWS reads wire frames from an estimator, steps the session,
// and answers each frame with the events it produced.
func (s *Server) handleFramesWS(conn *websocket.Conn) {
	defer conn.Close()
	id := conn.Params("id")

	sess, err := s.engine.Session(id)
	if err != nil {
		conn.WriteJSON(fiber.Map{"error": err.Error()})
		return
	}
	log := s.logger.With("session", id)
	log.Info("frame stream connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Info("frame stream closed", "error", err)
			return
		}
		f, err := landmark.Decode(data)
		if err != nil {
			log.Warn("dropping bad frame", "error", err)
			continue
		}
		events := sess.Step(f)
		if len(events) == 0 {
			continue
		}
		if err := conn.WriteJSON(events); err != nil {
			return
		}
		select {
		case <-sess.Done():
			return
		default:
		}
	}
}
