package landmark

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrBadFrame is returned when a wire frame cannot be decoded.
var ErrBadFrame = errors.New("landmark: malformed frame")

// WireFrame is the JSON form of a frame exchanged with estimator sidecars,
// browsers and recordings. Exactly one of Points, Pose or Hand is normally set.
//
// Points is keyed by joint name. Its coordinates are pixels unless
// Normalized is true. Pose and Hand are the estimator's index-ordered
// normalized lists (33 and 21 entries).
type WireFrame struct {
	TimestampMs int64           `json:"ts_ms"`
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	Normalized  bool            `json:"normalized,omitempty"`
	Points      map[Joint]Point `json:"points,omitempty"`
	Pose        []Normalized    `json:"pose,omitempty"`
	Hand        []Normalized    `json:"hand,omitempty"`
}

// Frame converts the wire form into a frame.
func (w *WireFrame) Frame() (*Frame, error) {
	if w.Width < 0 || w.Height < 0 {
		return nil, fmt.Errorf("%w: negative frame size %dx%d", ErrBadFrame, w.Width, w.Height)
	}
	// A missing timestamp leaves the frame unstamped; consumers fall back
	// to their own clock.
	var ts time.Time
	if w.TimestampMs != 0 {
		ts = time.UnixMilli(w.TimestampMs)
	}

	switch {
	case len(w.Pose) > 0:
		return FromNormalized(ts, w.Width, w.Height, PoseJoints, w.Pose), nil
	case len(w.Hand) > 0:
		return FromNormalized(ts, w.Width, w.Height, HandJoints, handVisibility(w.Hand)), nil
	case len(w.Points) > 0:
		points := make(map[Joint]Point, len(w.Points))
		for j, p := range w.Points {
			if w.Normalized {
				p.X *= float64(w.Width)
				p.Y *= float64(w.Height)
			}
			points[j] = p
		}
		return NewFrame(ts, w.Width, w.Height, points), nil
	default:
		return Empty(ts, w.Width, w.Height), nil
	}
}

// handVisibility marks hand landmarks as seen. Hand models report no
// visibility, so the field arrives as zero or absent.
func handVisibility(lms []Normalized) []Normalized {
	out := make([]Normalized, len(lms))
	for i, lm := range lms {
		if lm.Visibility <= 0 {
			lm.Visibility = 1
		}
		out[i] = lm
	}
	return out
}

// Decode parses one JSON wire frame.
func Decode(data []byte) (*Frame, error) {
	var w WireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	return w.Frame()
}

// Encode writes a frame in pixel wire form.
func Encode(f *Frame) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil frame", ErrBadFrame)
	}
	var ms int64
	if !f.Timestamp.IsZero() {
		ms = f.Timestamp.UnixMilli()
	}
	return json.Marshal(WireFrame{
		TimestampMs: ms,
		Width:       f.Width,
		Height:      f.Height,
		Points:      f.Points,
	})
}
