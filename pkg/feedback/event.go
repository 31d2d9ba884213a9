// Package feedback carries evaluation events from sessions to the outside
// world: voice, overlay, logs.
//
// The engine hands every event to a Dispatcher, which queues it for each
// registered Sink and returns immediately. Each sink has its own worker
// goroutine, so a slow speech backend never stalls frame evaluation and
// never delays the overlay.
package feedback

import "time"

// Kind tags an Event.
type Kind string

const (
	KindInstruction       Kind = "instruction"
	KindCalibrationPrompt Kind = "calibration_prompt"
	KindRepCounted        Kind = "rep_counted"
	KindHoldStarted       Kind = "hold_started"
	KindHoldProgress      Kind = "hold_progress"
	KindMilestone         Kind = "milestone"
	KindPoseLost          Kind = "pose_lost"
	KindSessionComplete   Kind = "session_complete"
	KindSessionStopped    Kind = "session_stopped"
)

// Kinds lists every event kind.
var Kinds = []Kind{
	KindInstruction,
	KindCalibrationPrompt,
	KindRepCounted,
	KindHoldStarted,
	KindHoldProgress,
	KindMilestone,
	KindPoseLost,
	KindSessionComplete,
	KindSessionStopped,
}

// Event is one piece of feedback. Events are values; sinks must not
// modify them.
type Event struct {
	Kind      Kind      `json:"kind"`
	SessionID string    `json:"session_id,omitempty"`
	Exercise  string    `json:"exercise,omitempty"`
	Time      time.Time `json:"time"`
	Text      string    `json:"text,omitempty"`
	Count     int       `json:"count,omitempty"`
	Target    int       `json:"target,omitempty"`
	Elapsed   float64   `json:"elapsed_seconds,omitempty"`
	Remaining float64   `json:"remaining_seconds,omitempty"`
}

// Terminal reports whether the event ends its session.
func (e Event) Terminal() bool {
	return e.Kind == KindSessionComplete || e.Kind == KindSessionStopped
}

// Spoken reports whether a voice sink should say the event. Progress ticks
// repeat every frame and are only shown.
func (e Event) Spoken() bool {
	return e.Text != "" && e.Kind != KindHoldProgress
}
