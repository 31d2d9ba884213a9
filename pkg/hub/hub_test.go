package hub

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-fitdesk/pkg/feedback"
	"github.com/teslashibe/go-fitdesk/pkg/tts"
)

type frame struct {
	typ  int
	data []byte
}

// fakeConn is an in-memory websocket: reads block until Close, writes are
// recorded.
type fakeConn struct {
	writes chan frame
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{writes: make(chan frame, 64), closed: make(chan struct{})}
}

func (c *fakeConn) SetReadLimit(int64) {}

func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, io.EOF
}

func (c *fakeConn) WriteMessage(typ int, b []byte) error {
	select {
	case <-c.closed:
		return errors.New("closed")
	case c.writes <- frame{typ, b}:
		return nil
	}
}

func (c *fakeConn) next(t *testing.T) frame {
	t.Helper()
	select {
	case f := <-c.writes:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no write")
		return frame{}
	}
}

func runHub(t *testing.T) *Hub {
	t.Helper()
	h := New("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	require.Eventually(t, h.IsRunning, time.Second, 5*time.Millisecond)
	return h
}

func connect(t *testing.T, h *Hub) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	c := NewClient(h, conn)
	require.NotNil(t, c)
	go c.Run()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcast(t *testing.T) {
	h := runHub(t)
	a, b := connect(t, h), connect(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.BroadcastJSON(map[string]int{"reps": 3}))
	h.BroadcastBinary([]byte{1, 2, 3})

	for _, conn := range []*fakeConn{a, b} {
		f := conn.next(t)
		assert.Equal(t, websocket.TextMessage, f.typ)
		assert.JSONEq(t, `{"reps":3}`, string(f.data))

		f = conn.next(t)
		assert.Equal(t, websocket.BinaryMessage, f.typ)
		assert.Equal(t, []byte{1, 2, 3}, f.data)
	}
}

func TestClientDisconnect(t *testing.T) {
	h := runHub(t)
	conn := connect(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRunStop(t *testing.T) {
	h := New("stop", nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { h.Run(ctx); close(done) }()
	require.Eventually(t, h.IsRunning, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.False(t, h.IsRunning())
	assert.Nil(t, NewClient(h, newFakeConn()))
}

func TestBroadcastNeverBlocks(t *testing.T) {
	h := New("idle", nil)
	for range sendBuffer + 10 {
		h.BroadcastBinary([]byte{0})
	}
	assert.Equal(t, int64(10), h.Dropped())
}

func TestEventSink(t *testing.T) {
	h := runHub(t)
	conn := connect(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	sink := NewEventSink(h)
	assert.Equal(t, "overlay", sink.Name())
	require.NoError(t, sink.Handle(context.Background(), feedback.Event{
		Kind:  feedback.KindRepCounted,
		Text:  "Repetition 2",
		Count: 2,
	}))

	var got feedback.Event
	require.NoError(t, json.Unmarshal(conn.next(t).data, &got))
	assert.Equal(t, feedback.KindRepCounted, got.Kind)
	assert.Equal(t, 2, got.Count)

	stopped := New("stopped", nil)
	assert.ErrorIs(t, NewEventSink(stopped).Handle(context.Background(), feedback.Event{}), ErrStopped)
}

func TestAudioPlayer(t *testing.T) {
	h := runHub(t)
	p := NewAudioPlayer(h)
	audio := &tts.Audio{
		Data:   []byte("ID3"),
		Text:   "Repetition 1",
		Format: tts.Format{Encoding: tts.EncodingMP3},
	}

	// Nobody listening.
	require.NoError(t, p.Play(context.Background(), audio))

	conn := connect(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Play(context.Background(), audio))

	var hdr AudioHeader
	require.NoError(t, json.Unmarshal(conn.next(t).data, &hdr))
	assert.Equal(t, AudioHeader{Type: "audio", Text: "Repetition 1", ContentType: "audio/mpeg", Bytes: 3}, hdr)
	assert.Equal(t, []byte("ID3"), conn.next(t).data)
}
