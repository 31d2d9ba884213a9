package feature

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/teslashibe/go-fitdesk/pkg/landmark"
)

func pt(x, y float64) landmark.Point {
	return landmark.Point{X: x, Y: y, Visibility: 1}
}

func frame(points map[landmark.Joint]landmark.Point) *landmark.Frame {
	return landmark.NewFrame(time.Unix(0, 0), 640, 480, points)
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestJointAngle(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c landmark.Point
		want    float64
	}{
		{"right angle", pt(0, -10), pt(0, 0), pt(10, 0), 90},
		{"straight", pt(-10, 0), pt(0, 0), pt(10, 0), 180},
		{"folded", pt(10, 0), pt(0, 0), pt(10, 0), 0},
		{"45 degrees", pt(10, 10), pt(0, 0), pt(10, 0), 45},
		{"narrow", pt(10, -1), pt(0, 0), pt(10, 1), 2 * math.Atan(0.1) * 180 / math.Pi},
		{"reflex reflected", pt(-10, 1), pt(0, 0), pt(-10, -1), 2 * math.Atan(0.1) * 180 / math.Pi},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JointAngle(tt.a, tt.b, tt.c)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("JointAngle = %v, want %v", got, tt.want)
			}
			if got < 0 || got > 180 {
				t.Errorf("angle %v outside [0,180]", got)
			}
		})
	}
}

func TestJointAngle_SymmetricInEndpoints(t *testing.T) {
	a, b, c := pt(3, 7), pt(1, 1), pt(9, -2)
	if !near(JointAngle(a, b, c), JointAngle(c, b, a)) {
		t.Error("angle should not depend on endpoint order")
	}
}

func TestExtract(t *testing.T) {
	f := frame(map[landmark.Joint]landmark.Point{
		landmark.RightHip:      pt(100, 100),
		landmark.RightKnee:     pt(100, 200),
		landmark.RightAnkle:    pt(100, 300),
		landmark.LeftHip:       pt(200, 100),
		landmark.LeftKnee:      pt(200, 200),
		landmark.LeftAnkle:     pt(300, 200),
		landmark.Nose:          pt(330, 50),
		landmark.LeftShoulder:  pt(250, 80),
		landmark.RightShoulder: pt(350, 80),
	})

	tests := []struct {
		name string
		spec Spec
		want float64
	}{
		{"angle", Angle("r", landmark.RightHip, landmark.RightKnee, landmark.RightAnkle), 180},
		{"mean of knees", Mean("knees",
			Angle("r", landmark.RightHip, landmark.RightKnee, landmark.RightAnkle),
			Angle("l", landmark.LeftHip, landmark.LeftKnee, landmark.LeftAnkle)), 135},
		{"distance", Distance("d", landmark.RightHip, landmark.LeftHip), 100},
		{"vertical offset", VerticalOffset("v", landmark.RightKnee, landmark.RightHip), 100},
		{"horizontal offset to midpoint", Spec{Name: "h", Kind: KindHorizontalOffset,
			Points: []landmark.Ref{{landmark.Nose}, {landmark.LeftShoulder, landmark.RightShoulder}}}, 30},
		{"position y of midpoint", Spec{Name: "y", Kind: KindPositionY,
			Points: []landmark.Ref{{landmark.LeftShoulder, landmark.RightShoulder}}}, 80},
		{"position x", Spec{Name: "x", Kind: KindPositionX, Points: []landmark.Ref{{landmark.Nose}}}, 330},
		{"min", Spec{Name: "m", Kind: KindMin, Of: []Spec{
			Distance("a", landmark.RightHip, landmark.LeftHip),
			Distance("b", landmark.RightHip, landmark.RightKnee),
			Distance("c", landmark.RightHip, landmark.RightAnkle)}}, 100},
		{"max", Spec{Name: "m", Kind: KindMax, Of: []Spec{
			Distance("a", landmark.RightHip, landmark.LeftHip),
			Distance("c", landmark.RightHip, landmark.RightAnkle)}}, 200},
		{"abs", Spec{Name: "a", Kind: KindVerticalOffset, Abs: true,
			Points: []landmark.Ref{{landmark.RightHip}, {landmark.RightKnee}}}, 100},
		{"normalize frame height", Spec{Name: "n", Kind: KindVerticalOffset, Normalize: NormalizeFrameHeight,
			Points: []landmark.Ref{{landmark.RightHip}, {landmark.RightAnkle}}}, -200.0 / 480},
		{"normalize shoulder width", Spec{Name: "n", Kind: KindDistance, Normalize: NormalizeShoulderWidth,
			Points: []landmark.Ref{{landmark.RightHip}, {landmark.LeftHip}}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.spec.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			got, err := Extract(f, tt.spec)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if !near(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtract_Missing(t *testing.T) {
	spec := Angle("elbow", landmark.RightShoulder, landmark.RightElbow, landmark.RightWrist)

	t.Run("no detection", func(t *testing.T) {
		_, err := Extract(landmark.Empty(time.Unix(0, 0), 640, 480), spec)
		if !errors.Is(err, ErrNoDetection) {
			t.Errorf("expected ErrNoDetection, got %v", err)
		}
		if _, err := Extract(nil, spec); !errors.Is(err, ErrNoDetection) {
			t.Errorf("nil frame: expected ErrNoDetection, got %v", err)
		}
	})

	t.Run("absent point", func(t *testing.T) {
		f := frame(map[landmark.Joint]landmark.Point{
			landmark.RightShoulder: pt(0, 0),
			landmark.RightElbow:    pt(0, 10),
		})
		if _, err := Extract(f, spec); !errors.Is(err, ErrMissingLandmark) {
			t.Errorf("expected ErrMissingLandmark, got %v", err)
		}
	})

	t.Run("low visibility", func(t *testing.T) {
		f := frame(map[landmark.Joint]landmark.Point{
			landmark.RightShoulder: pt(0, 0),
			landmark.RightElbow:    pt(0, 10),
			landmark.RightWrist:    {X: 10, Y: 10, Visibility: 0.2},
		})
		if _, err := Extract(f, spec); !errors.Is(err, ErrMissingLandmark) {
			t.Errorf("expected ErrMissingLandmark, got %v", err)
		}
	})
}

func TestValidate(t *testing.T) {
	bad := []Spec{
		{Name: "a", Kind: KindAngle, Points: []landmark.Ref{{landmark.Nose}}},
		{Name: "b", Kind: "curvature"},
		{Name: "c", Kind: KindMean},
		{Name: "d", Kind: KindDistance, Points: []landmark.Ref{{landmark.Nose}, {}}},
		{Name: "e", Kind: KindPositionY, Points: []landmark.Ref{{landmark.Nose}}, Normalize: "arm_length"},
		{Name: "f", Kind: KindMin, Of: []Spec{{Kind: KindAngle}}},
	}
	for _, s := range bad {
		if err := s.Validate(); !errors.Is(err, ErrInvalidSpec) {
			t.Errorf("spec %q: expected ErrInvalidSpec, got %v", s.Name, err)
		}
	}
}

func TestExtractAll(t *testing.T) {
	f := frame(map[landmark.Joint]landmark.Point{
		landmark.Wrist:    pt(100, 300),
		landmark.IndexTip: pt(100, 250),
	})
	specs := []Spec{
		VerticalOffset("curl", landmark.IndexTip, landmark.Wrist),
		Distance("span", landmark.IndexTip, landmark.Wrist),
	}
	vals, err := ExtractAll(f, specs)
	if err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}
	if vals["curl"] != -50 || vals["span"] != 50 {
		t.Errorf("unexpected values %v", vals)
	}

	specs = append(specs, Distance("missing", landmark.Wrist, landmark.ThumbTip))
	if _, err := ExtractAll(f, specs); !errors.Is(err, ErrMissingLandmark) {
		t.Errorf("expected ErrMissingLandmark, got %v", err)
	}
}
