// Package feature turns landmark frames into scalar geometric features.
//
// A Spec names one feature and how to compute it: an angle at a vertex, a
// distance, a signed offset, a raw coordinate, or a reduction (mean, min,
// max) over nested specs. Specs are plain data so exercise profiles can
// declare them in YAML.
package feature

import (
	"fmt"
	"math"

	"github.com/teslashibe/go-fitdesk/pkg/landmark"
)

// Kind selects how a feature is computed.
type Kind string

const (
	// KindAngle is the angle at Points[1] between rays to Points[0] and Points[2], in [0,180].
	KindAngle Kind = "angle"
	// KindDistance is the Euclidean distance between Points[0] and Points[1].
	KindDistance Kind = "distance"
	// KindVerticalOffset is Points[0].Y - Points[1].Y (positive means lower in the image).
	KindVerticalOffset Kind = "vertical_offset"
	// KindHorizontalOffset is Points[0].X - Points[1].X.
	KindHorizontalOffset Kind = "horizontal_offset"
	// KindPositionY is the Y coordinate of Points[0].
	KindPositionY Kind = "position_y"
	// KindPositionX is the X coordinate of Points[0].
	KindPositionX Kind = "position_x"
	// KindMean averages the nested specs.
	KindMean Kind = "mean"
	// KindMin takes the smallest nested value.
	KindMin Kind = "min"
	// KindMax takes the largest nested value.
	KindMax Kind = "max"
)

// Normalize divides a pixel feature by a body or frame scale.
type Normalize string

const (
	NormalizeNone          Normalize = ""
	NormalizeFrameHeight   Normalize = "frame_height"
	NormalizeFrameWidth    Normalize = "frame_width"
	NormalizeShoulderWidth Normalize = "shoulder_width"
)

// Spec declares one feature.
type Spec struct {
	Name      string         `yaml:"name" json:"name,omitempty"`
	Kind      Kind           `yaml:"kind" json:"kind"`
	Points    []landmark.Ref `yaml:"points,omitempty" json:"points,omitempty"`
	Of        []Spec         `yaml:"of,omitempty" json:"of,omitempty"`
	Abs       bool           `yaml:"abs,omitempty" json:"abs,omitempty"`
	Normalize Normalize      `yaml:"normalize,omitempty" json:"normalize,omitempty"`
}

// Angle builds an angle spec at vertex.
func Angle(name string, a, vertex, c landmark.Joint) Spec {
	return Spec{Name: name, Kind: KindAngle, Points: refs(a, vertex, c)}
}

// Distance builds a distance spec.
func Distance(name string, a, b landmark.Joint) Spec {
	return Spec{Name: name, Kind: KindDistance, Points: refs(a, b)}
}

// VerticalOffset builds a signed vertical offset spec.
func VerticalOffset(name string, point, ref landmark.Joint) Spec {
	return Spec{Name: name, Kind: KindVerticalOffset, Points: refs(point, ref)}
}

// Mean builds an average over specs.
func Mean(name string, of ...Spec) Spec {
	return Spec{Name: name, Kind: KindMean, Of: of}
}

func refs(joints ...landmark.Joint) []landmark.Ref {
	out := make([]landmark.Ref, len(joints))
	for i, j := range joints {
		out[i] = landmark.Ref{j}
	}
	return out
}

// Validate checks arity and nesting.
func (s Spec) Validate() error {
	want := 0
	switch s.Kind {
	case KindAngle:
		want = 3
	case KindDistance, KindVerticalOffset, KindHorizontalOffset:
		want = 2
	case KindPositionX, KindPositionY:
		want = 1
	case KindMean, KindMin, KindMax:
		if len(s.Of) == 0 {
			return fmt.Errorf("%w: %s %q needs nested specs", ErrInvalidSpec, s.Kind, s.Name)
		}
		for _, sub := range s.Of {
			if err := sub.Validate(); err != nil {
				return err
			}
		}
		return s.validateNormalize()
	default:
		return fmt.Errorf("%w: unknown kind %q for %q", ErrInvalidSpec, s.Kind, s.Name)
	}
	if len(s.Points) != want {
		return fmt.Errorf("%w: %s %q needs %d points, got %d", ErrInvalidSpec, s.Kind, s.Name, want, len(s.Points))
	}
	for i, r := range s.Points {
		if len(r) == 0 {
			return fmt.Errorf("%w: %q point %d is empty", ErrInvalidSpec, s.Name, i)
		}
	}
	return s.validateNormalize()
}

func (s Spec) validateNormalize() error {
	switch s.Normalize {
	case NormalizeNone, NormalizeFrameHeight, NormalizeFrameWidth, NormalizeShoulderWidth:
		return nil
	}
	return fmt.Errorf("%w: unknown normalize %q for %q", ErrInvalidSpec, s.Normalize, s.Name)
}

// Extract computes the feature for one frame.
func Extract(f *landmark.Frame, s Spec) (float64, error) {
	if !f.Detected() {
		return 0, ErrNoDetection
	}
	v, err := extract(f, s)
	if err != nil {
		return 0, err
	}
	if s.Abs {
		v = math.Abs(v)
	}
	return normalize(f, s.Normalize, v)
}

func extract(f *landmark.Frame, s Spec) (float64, error) {
	switch s.Kind {
	case KindMean, KindMin, KindMax:
		return reduce(f, s)
	}

	pts := make([]landmark.Point, len(s.Points))
	for i, r := range s.Points {
		p, ok := r.Resolve(f)
		if !ok {
			return 0, fmt.Errorf("%w: %s for %q", ErrMissingLandmark, r, s.Name)
		}
		pts[i] = p
	}

	switch s.Kind {
	case KindAngle:
		return JointAngle(pts[0], pts[1], pts[2]), nil
	case KindDistance:
		return pts[0].Dist(pts[1]), nil
	case KindVerticalOffset:
		return pts[0].Y - pts[1].Y, nil
	case KindHorizontalOffset:
		return pts[0].X - pts[1].X, nil
	case KindPositionY:
		return pts[0].Y, nil
	case KindPositionX:
		return pts[0].X, nil
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidSpec, s.Kind)
}

func reduce(f *landmark.Frame, s Spec) (float64, error) {
	if len(s.Of) == 0 {
		return 0, fmt.Errorf("%w: empty %s", ErrInvalidSpec, s.Kind)
	}
	var acc float64
	for i, sub := range s.Of {
		v, err := Extract(f, sub)
		if err != nil {
			return 0, err
		}
		switch {
		case i == 0:
			acc = v
		case s.Kind == KindMean:
			acc += v
		case s.Kind == KindMin:
			acc = math.Min(acc, v)
		case s.Kind == KindMax:
			acc = math.Max(acc, v)
		}
	}
	if s.Kind == KindMean {
		acc /= float64(len(s.Of))
	}
	return acc, nil
}

func normalize(f *landmark.Frame, n Normalize, v float64) (float64, error) {
	var scale float64
	switch n {
	case NormalizeNone:
		return v, nil
	case NormalizeFrameHeight:
		scale = float64(f.Height)
	case NormalizeFrameWidth:
		scale = float64(f.Width)
	case NormalizeShoulderWidth:
		l, okL := f.Point(landmark.LeftShoulder)
		r, okR := f.Point(landmark.RightShoulder)
		if !okL || !okR {
			return 0, fmt.Errorf("%w: shoulders for normalization", ErrMissingLandmark)
		}
		scale = l.Dist(r)
	default:
		return 0, fmt.Errorf("%w: unknown normalize %q", ErrInvalidSpec, n)
	}
	if scale <= 0 {
		return 0, fmt.Errorf("%w: zero %s", ErrMissingLandmark, n)
	}
	return v / scale, nil
}

// JointAngle returns the angle at b formed by a and c, in degrees [0,180].
// Every angle feature goes through this one function.
func JointAngle(a, b, c landmark.Point) float64 {
	radians := math.Atan2(c.Y-b.Y, c.X-b.X) - math.Atan2(a.Y-b.Y, a.X-b.X)
	angle := math.Abs(radians * 180.0 / math.Pi)
	if angle > 180.0 {
		angle = 360 - angle
	}
	return angle
}

// Values is a set of named feature values for one frame.
type Values map[string]float64

// ExtractAll computes every spec. It fails on the first missing feature,
// since profiles need all of their features to make a decision.
func ExtractAll(f *landmark.Frame, specs []Spec) (Values, error) {
	if !f.Detected() {
		return nil, ErrNoDetection
	}
	vals := make(Values, len(specs))
	for _, s := range specs {
		v, err := Extract(f, s)
		if err != nil {
			return nil, err
		}
		vals[s.Name] = v
	}
	return vals, nil
}
