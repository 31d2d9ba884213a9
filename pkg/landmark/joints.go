package landmark

import "time"

// Pose joints, in MediaPipe Pose index order.
const (
	Nose           Joint = "NOSE"
	LeftEyeInner   Joint = "LEFT_EYE_INNER"
	LeftEye        Joint = "LEFT_EYE"
	LeftEyeOuter   Joint = "LEFT_EYE_OUTER"
	RightEyeInner  Joint = "RIGHT_EYE_INNER"
	RightEye       Joint = "RIGHT_EYE"
	RightEyeOuter  Joint = "RIGHT_EYE_OUTER"
	LeftEar        Joint = "LEFT_EAR"
	RightEar       Joint = "RIGHT_EAR"
	MouthLeft      Joint = "MOUTH_LEFT"
	MouthRight     Joint = "MOUTH_RIGHT"
	LeftShoulder   Joint = "LEFT_SHOULDER"
	RightShoulder  Joint = "RIGHT_SHOULDER"
	LeftElbow      Joint = "LEFT_ELBOW"
	RightElbow     Joint = "RIGHT_ELBOW"
	LeftWrist      Joint = "LEFT_WRIST"
	RightWrist     Joint = "RIGHT_WRIST"
	LeftPinky      Joint = "LEFT_PINKY"
	RightPinky     Joint = "RIGHT_PINKY"
	LeftIndex      Joint = "LEFT_INDEX"
	RightIndex     Joint = "RIGHT_INDEX"
	LeftThumb      Joint = "LEFT_THUMB"
	RightThumb     Joint = "RIGHT_THUMB"
	LeftHip        Joint = "LEFT_HIP"
	RightHip       Joint = "RIGHT_HIP"
	LeftKnee       Joint = "LEFT_KNEE"
	RightKnee      Joint = "RIGHT_KNEE"
	LeftAnkle      Joint = "LEFT_ANKLE"
	RightAnkle     Joint = "RIGHT_ANKLE"
	LeftHeel       Joint = "LEFT_HEEL"
	RightHeel      Joint = "RIGHT_HEEL"
	LeftFootIndex  Joint = "LEFT_FOOT_INDEX"
	RightFootIndex Joint = "RIGHT_FOOT_INDEX"
)

// Hand joints, in MediaPipe Hands index order.
const (
	Wrist     Joint = "WRIST"
	ThumbCMC  Joint = "THUMB_CMC"
	ThumbMCP  Joint = "THUMB_MCP"
	ThumbIP   Joint = "THUMB_IP"
	ThumbTip  Joint = "THUMB_TIP"
	IndexMCP  Joint = "INDEX_FINGER_MCP"
	IndexPIP  Joint = "INDEX_FINGER_PIP"
	IndexDIP  Joint = "INDEX_FINGER_DIP"
	IndexTip  Joint = "INDEX_FINGER_TIP"
	MiddleMCP Joint = "MIDDLE_FINGER_MCP"
	MiddlePIP Joint = "MIDDLE_FINGER_PIP"
	MiddleDIP Joint = "MIDDLE_FINGER_DIP"
	MiddleTip Joint = "MIDDLE_FINGER_TIP"
	RingMCP   Joint = "RING_FINGER_MCP"
	RingPIP   Joint = "RING_FINGER_PIP"
	RingDIP   Joint = "RING_FINGER_DIP"
	RingTip   Joint = "RING_FINGER_TIP"
	PinkyMCP  Joint = "PINKY_MCP"
	PinkyPIP  Joint = "PINKY_PIP"
	PinkyDIP  Joint = "PINKY_DIP"
	PinkyTip  Joint = "PINKY_TIP"
)

// PoseJoints lists the 33 pose landmarks by estimator index.
var PoseJoints = []Joint{
	Nose, LeftEyeInner, LeftEye, LeftEyeOuter, RightEyeInner, RightEye, RightEyeOuter,
	LeftEar, RightEar, MouthLeft, MouthRight,
	LeftShoulder, RightShoulder, LeftElbow, RightElbow, LeftWrist, RightWrist,
	LeftPinky, RightPinky, LeftIndex, RightIndex, LeftThumb, RightThumb,
	LeftHip, RightHip, LeftKnee, RightKnee, LeftAnkle, RightAnkle,
	LeftHeel, RightHeel, LeftFootIndex, RightFootIndex,
}

// HandJoints lists the 21 hand landmarks by estimator index.
var HandJoints = []Joint{
	Wrist,
	ThumbCMC, ThumbMCP, ThumbIP, ThumbTip,
	IndexMCP, IndexPIP, IndexDIP, IndexTip,
	MiddleMCP, MiddlePIP, MiddleDIP, MiddleTip,
	RingMCP, RingPIP, RingDIP, RingTip,
	PinkyMCP, PinkyPIP, PinkyDIP, PinkyTip,
}

// Normalized is one estimator landmark with x/y in [0,1] of the image.
type Normalized struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z,omitempty"`
	Visibility float64 `json:"visibility"`
}

// FromNormalized converts an index-ordered landmark list into a pixel frame.
// names gives the joint for each index (PoseJoints or HandJoints); extra
// landmarks beyond len(names) are ignored. Visibility is copied as given;
// WireFrame fills it in for hand lists, which carry none.
func FromNormalized(ts time.Time, width, height int, names []Joint, lms []Normalized) *Frame {
	if len(lms) == 0 {
		return Empty(ts, width, height)
	}
	points := make(map[Joint]Point, len(lms))
	for i, lm := range lms {
		if i >= len(names) {
			break
		}
		points[names[i]] = Point{
			X:          lm.X * float64(width),
			Y:          lm.Y * float64(height),
			Visibility: lm.Visibility,
		}
	}
	return NewFrame(ts, width, height, points)
}
