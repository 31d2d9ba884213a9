package engine

import (
	"time"

	"github.com/teslashibe/go-fitdesk/pkg/calibration"
)

// Phase is the machine state of a session.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseCalibrating Phase = "calibrating"
	// PhaseArmed is the rest region of a rep counter, ready to count.
	PhaseArmed Phase = "armed"
	// PhaseActive is the working region of a cycle (the curl, the squat).
	PhaseActive Phase = "active"
	// PhaseHold is the timed part of the working region for cycles with a hold.
	PhaseHold Phase = "hold"
	// PhaseReturning follows a finished hold until the rest region is reached.
	PhaseReturning Phase = "returning"
	PhaseWaiting   Phase = "waiting"
	PhaseHolding   Phase = "holding"
	PhaseComplete  Phase = "complete"
	PhaseStopped   Phase = "stopped"
)

// Terminal reports whether no further transitions can happen.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseStopped
}

// Side is a bilateral region.
type Side string

const (
	SideNone  Side = ""
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// State is the mutable evaluation state of one session. Only the owning
// session writes it.
type State struct {
	Phase Phase `json:"phase"`
	// PhaseSince is the timestamp of the frame that entered Phase.
	PhaseSince time.Time `json:"phase_since"`

	Reps    int       `json:"reps"`
	LastRep time.Time `json:"last_rep"`
	// WentLow records that a cycle's depth condition held during the
	// current working phase.
	WentLow bool `json:"went_low"`

	Side     Side `json:"side,omitempty"`
	LastSide Side `json:"last_side,omitempty"`

	HoldStart      time.Time `json:"hold_start"`
	HoldElapsed    float64   `json:"hold_elapsed_seconds"`
	MilestoneFired bool      `json:"milestone_fired"`

	LastAccepted float64 `json:"last_accepted"`
	HasAccepted  bool    `json:"has_accepted"`

	// Lost is set once PoseLost was emitted for the current detection gap.
	Lost bool `json:"lost"`

	Calibration *calibration.Result `json:"-"`
}
