// Package landmark defines the frames consumed by the exercise engine.
//
// A Frame is one time step of pose (or hand) estimator output: named joints
// in pixel coordinates, each with a visibility confidence. The estimator
// itself lives outside this module; sources in this package only decode and
// deliver its output.
package landmark

import (
	"math"
	"strings"
	"time"
)

// MinVisibility is the confidence below which a point is treated as absent.
// It mirrors the estimator's own detection confidence cutoff.
const MinVisibility = 0.5

// Joint names a landmark, e.g. LEFT_SHOULDER or INDEX_FINGER_TIP.
type Joint string

// Point is a landmark position in frame pixel space.
type Point struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Visibility float64 `json:"visibility"`
}

// Visible reports whether the point clears MinVisibility.
func (p Point) Visible() bool {
	return p.Visibility >= MinVisibility
}

// Dist returns the Euclidean distance between two points.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Frame is one estimator result. A nil frame or one without points means
// "no detection". Frames are never modified after construction.
type Frame struct {
	Timestamp time.Time
	Width     int
	Height    int
	Points    map[Joint]Point
}

// NewFrame builds a frame. The points map is owned by the frame afterwards.
func NewFrame(ts time.Time, width, height int, points map[Joint]Point) *Frame {
	return &Frame{Timestamp: ts, Width: width, Height: height, Points: points}
}

// Empty builds a "no detection" frame for the given instant.
func Empty(ts time.Time, width, height int) *Frame {
	return &Frame{Timestamp: ts, Width: width, Height: height}
}

// Detected reports whether the estimator found anything in this frame.
func (f *Frame) Detected() bool {
	return f != nil && len(f.Points) > 0
}

// Point returns a joint if it is present and visible enough to use.
func (f *Frame) Point(j Joint) (Point, bool) {
	if f == nil {
		return Point{}, false
	}
	p, ok := f.Points[j]
	if !ok || !p.Visible() {
		return Point{}, false
	}
	return p, true
}

// Ref is a reference location: a single joint, or the midpoint of several
// joints. Its text form joins names with "+", e.g. "LEFT_SHOULDER+RIGHT_SHOULDER".
type Ref []Joint

// ParseRef parses the text form of a Ref.
func ParseRef(s string) Ref {
	parts := strings.Split(s, "+")
	ref := make(Ref, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ref = append(ref, Joint(strings.ToUpper(p)))
		}
	}
	return ref
}

// String returns the text form.
func (r Ref) String() string {
	names := make([]string, len(r))
	for i, j := range r {
		names[i] = string(j)
	}
	return strings.Join(names, "+")
}

// MarshalText implements encoding.TextMarshaler.
func (r Ref) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Ref) UnmarshalText(b []byte) error {
	*r = ParseRef(string(b))
	return nil
}

// Resolve locates the reference in a frame. Every joint must be visible.
func (r Ref) Resolve(f *Frame) (Point, bool) {
	if len(r) == 0 {
		return Point{}, false
	}
	var sx, sy float64
	vis := 1.0
	for _, j := range r {
		p, ok := f.Point(j)
		if !ok {
			return Point{}, false
		}
		sx += p.X
		sy += p.Y
		vis = math.Min(vis, p.Visibility)
	}
	n := float64(len(r))
	return Point{X: sx / n, Y: sy / n, Visibility: vis}, true
}
