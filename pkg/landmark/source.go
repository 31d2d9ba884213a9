package landmark

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Source delivers frames one at a time. Next returns io.EOF when the
// source is exhausted.
type Source interface {
	Next(ctx context.Context) (*Frame, error)
}

// JSONLSource reads one wire frame per line, e.g. a recorded session.
type JSONLSource struct {
	sc   *bufio.Scanner
	line int
}

// NewJSONLSource reads frames from r. Blank lines are skipped.
func NewJSONLSource(r io.Reader) *JSONLSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &JSONLSource{sc: sc}
}

// Next returns the next frame in the stream.
func (s *JSONLSource) Next(ctx context.Context) (*Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.sc.Scan() {
			if err := s.sc.Err(); err != nil {
				return nil, fmt.Errorf("read line %d: %w", s.line+1, err)
			}
			return nil, io.EOF
		}
		s.line++
		data := bytes.TrimSpace(s.sc.Bytes())
		if len(data) == 0 {
			continue
		}
		f, err := Decode(data)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", s.line, err)
		}
		return f, nil
	}
}

// WSSource receives wire frames from a landmark estimator sidecar over a
// websocket, one JSON text message per frame.
type WSSource struct {
	conn      *websocket.Conn
	closeOnce sync.Once
}

// DialWS connects to a sidecar such as ws://localhost:8765/landmarks.
func DialWS(ctx context.Context, url string, header http.Header) (*WSSource, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &WSSource{conn: conn}, nil
}

// Next blocks for the next frame. Cancelling ctx closes the connection.
func (s *WSSource) Next(ctx context.Context) (*Frame, error) {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read frame: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		return Decode(data)
	}
}

// Close closes the underlying connection.
func (s *WSSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = s.conn.Close()
	})
	return err
}

// SliceSource replays frames held in memory.
type SliceSource struct {
	frames []*Frame
	pos    int
}

// NewSliceSource returns a source over frames.
func NewSliceSource(frames []*Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

// Next returns the next frame or io.EOF.
func (s *SliceSource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

// Verify sources implement Source at compile time.
var (
	_ Source = (*JSONLSource)(nil)
	_ Source = (*WSSource)(nil)
	_ Source = (*SliceSource)(nil)
)
