package web

import (
	"encoding/json"
	"math"

	"github.com/teslashibe/go-fitdesk/pkg/landmark"
)

// kneeWire encodes a frame whose knee angles are deg.
func kneeWire(ms int64, deg float64) string {
	r := deg * math.Pi / 180
	pts := map[landmark.Joint]landmark.Point{}
	for _, leg := range []struct {
		hip, knee, ankle landmark.Joint
		x                float64
	}{
		{landmark.RightHip, landmark.RightKnee, landmark.RightAnkle, 200},
		{landmark.LeftHip, landmark.LeftKnee, landmark.LeftAnkle, 400},
	} {
		pts[leg.hip] = landmark.Point{X: leg.x, Y: 200, Visibility: 1}
		pts[leg.knee] = landmark.Point{X: leg.x, Y: 300, Visibility: 1}
		pts[leg.ankle] = landmark.Point{X: leg.x + 100*math.Sin(r), Y: 300 - 100*math.Cos(r), Visibility: 1}
	}
	data, err := json.Marshal(landmark.WireFrame{
		TimestampMs: ms,
		Width:       640,
		Height:      480,
		Points:      pts,
	})
	if err != nil {
		panic(err)
	}
	return string(data)
}
