// Package exercise defines exercise profiles and the registry that serves them.
//
// A profile is static data: the features to extract, an optional calibration
// plan, and either a rep counter (cycle or bilateral) or a hold timer. New
// exercises are added by writing a YAML profile, not code.
package exercise

import (
	"fmt"
	"strings"
	"time"

	"github.com/teslashibe/go-fitdesk/pkg/calibration"
	"github.com/teslashibe/go-fitdesk/pkg/feature"
)

// Mode is how an exercise is scored.
type Mode string

const (
	ModeReps Mode = "reps"
	ModeHold Mode = "hold"
)

// CountOn selects which transition of a cycle counts the rep.
type CountOn string

const (
	CountOnExit  CountOn = "exit"
	CountOnEnter CountOn = "enter"
)

// CycleSpec is a two-phase counter with hysteresis. Enter moves from the
// rest region into the active region, Exit moves back.
type CycleSpec struct {
	Enter Condition `yaml:"enter" json:"enter"`
	Exit  Condition `yaml:"exit" json:"exit"`
	// Depth, when set, must hold at some point in the active region for the
	// return to count.
	Depth   *Condition `yaml:"depth,omitempty" json:"depth,omitempty"`
	CountOn CountOn    `yaml:"count_on,omitempty" json:"count_on,omitempty"`
	// Hold is how long the active region must be held before the return is
	// eligible.
	Hold time.Duration `yaml:"hold,omitempty" json:"hold,omitempty"`
}

// BilateralSpec counts alternating sides. Reaching a side other than the
// last counted one counts a rep; leaving both regions clears the last side.
type BilateralSpec struct {
	Left  Condition `yaml:"left" json:"left"`
	Right Condition `yaml:"right" json:"right"`
}

// HoldSpec is a static pose timer.
type HoldSpec struct {
	// Predicate is a conjunction; the pose is held while all hold.
	Predicate     []Condition   `yaml:"predicate" json:"predicate"`
	Target        time.Duration `yaml:"target" json:"target"`
	Milestone     time.Duration `yaml:"milestone,omitempty" json:"milestone,omitempty"`
	MilestoneText string        `yaml:"milestone_text,omitempty" json:"milestone_text,omitempty"`
	StartedText   string        `yaml:"started_text,omitempty" json:"started_text,omitempty"`
	LostText      string        `yaml:"lost_text,omitempty" json:"lost_text,omitempty"`
}

// ChangeFilter ignores frames whose feature moved less than MinDelta from
// the last accepted value.
type ChangeFilter struct {
	Feature  string  `yaml:"feature" json:"feature"`
	MinDelta float64 `yaml:"min_delta" json:"min_delta"`
}

// Profile describes one exercise. Profiles are immutable once registered.
type Profile struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Category    string `yaml:"category" json:"category"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Mode        Mode   `yaml:"mode" json:"mode"`

	Features    []feature.Spec    `yaml:"features" json:"features"`
	Calibration *calibration.Plan `yaml:"calibration,omitempty" json:"calibration,omitempty"`

	Cycle     *CycleSpec     `yaml:"cycle,omitempty" json:"cycle,omitempty"`
	Bilateral *BilateralSpec `yaml:"bilateral,omitempty" json:"bilateral,omitempty"`
	Hold      *HoldSpec      `yaml:"hold,omitempty" json:"hold,omitempty"`

	Cooldown      time.Duration `yaml:"cooldown,omitempty" json:"cooldown,omitempty"`
	ChangeFilter  *ChangeFilter `yaml:"change_filter,omitempty" json:"change_filter,omitempty"`
	DefaultTarget int           `yaml:"default_target,omitempty" json:"default_target,omitempty"`

	Intro        string `yaml:"intro,omitempty" json:"intro,omitempty"`
	RepText      string `yaml:"rep_text,omitempty" json:"rep_text,omitempty"`
	CompleteText string `yaml:"complete_text,omitempty" json:"complete_text,omitempty"`
	LostText     string `yaml:"lost_text,omitempty" json:"lost_text,omitempty"`
}

// DefaultRepText is used when a profile has no rep_text.
const DefaultRepText = "Repetition %d"

// DefaultLostText is shown when the estimator loses the user.
const DefaultLostText = "Ensure your body is in frame!"

// Validate checks the profile for internal consistency.
func (p *Profile) Validate() error {
	if err := p.validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidProfile, p.ID, err)
	}
	return nil
}

func (p *Profile) validate() error {
	if p.ID == "" {
		return fmt.Errorf("missing id")
	}
	if len(p.Features) == 0 {
		return fmt.Errorf("no features")
	}

	features := make(map[string]bool, len(p.Features))
	for _, s := range p.Features {
		if s.Name == "" {
			return fmt.Errorf("feature without name")
		}
		if features[s.Name] {
			return fmt.Errorf("duplicate feature %q", s.Name)
		}
		if err := s.Validate(); err != nil {
			return err
		}
		features[s.Name] = true
	}

	calib := map[string]bool{}
	if p.Calibration != nil {
		if err := p.Calibration.Validate(); err != nil {
			return err
		}
		for _, s := range p.Calibration.Stages {
			if !features[s.Feature] {
				return fmt.Errorf("calibration stage %q uses undeclared feature %q", s.Name, s.Feature)
			}
		}
		for _, name := range p.Calibration.Produces() {
			calib[name] = true
		}
	}

	check := func(cs ...Condition) error {
		for _, c := range cs {
			if err := c.validate(features, calib); err != nil {
				return err
			}
		}
		return nil
	}

	if p.Cooldown < 0 {
		return fmt.Errorf("negative cooldown")
	}
	if p.ChangeFilter != nil {
		if !features[p.ChangeFilter.Feature] {
			return fmt.Errorf("change filter uses undeclared feature %q", p.ChangeFilter.Feature)
		}
		if p.ChangeFilter.MinDelta <= 0 {
			return fmt.Errorf("change filter needs a positive min_delta")
		}
	}

	switch p.Mode {
	case ModeReps:
		if p.Hold != nil {
			return fmt.Errorf("rep profile with a hold section")
		}
		if (p.Cycle == nil) == (p.Bilateral == nil) {
			return fmt.Errorf("rep profile needs exactly one of cycle or bilateral")
		}
		if p.Cycle != nil {
			c := p.Cycle
			if err := check(c.Enter, c.Exit); err != nil {
				return err
			}
			if c.Depth != nil {
				if err := check(*c.Depth); err != nil {
					return err
				}
			}
			switch c.CountOn {
			case "", CountOnExit:
			case CountOnEnter:
				if c.Depth != nil || c.Hold > 0 {
					return fmt.Errorf("count_on enter cannot use depth or hold")
				}
			default:
				return fmt.Errorf("unknown count_on %q", c.CountOn)
			}
			if c.Hold < 0 {
				return fmt.Errorf("negative hold")
			}
		} else if err := check(p.Bilateral.Left, p.Bilateral.Right); err != nil {
			return err
		}
		if p.DefaultTarget <= 0 {
			return fmt.Errorf("rep profile needs a positive default_target")
		}
		if p.RepText != "" && !strings.Contains(p.RepText, "%d") {
			return fmt.Errorf("rep_text must contain %%d")
		}
	case ModeHold:
		if p.Cycle != nil || p.Bilateral != nil {
			return fmt.Errorf("hold profile with a rep counter")
		}
		if p.Hold == nil || len(p.Hold.Predicate) == 0 {
			return fmt.Errorf("hold profile needs a predicate")
		}
		if err := check(p.Hold.Predicate...); err != nil {
			return err
		}
		if p.Hold.Target <= 0 {
			return fmt.Errorf("hold profile needs a positive target")
		}
		if p.Hold.Milestone < 0 || p.Hold.Milestone >= p.Hold.Target {
			return fmt.Errorf("milestone must fall before the target")
		}
	default:
		return fmt.Errorf("unknown mode %q", p.Mode)
	}
	return nil
}

// MilestoneAt returns when the milestone fires for a hold of target length.
// The milestone keeps its lead before the profile's own target, so an
// overridden target moves it along. ok is false when the profile has no
// milestone or the target is too short to leave room for one.
func (h *HoldSpec) MilestoneAt(target time.Duration) (at time.Duration, ok bool) {
	if h == nil || h.Milestone <= 0 {
		return 0, false
	}
	at = target - (h.Target - h.Milestone)
	if at <= 0 {
		return 0, false
	}
	return at, true
}

// Calibrated reports whether sessions start with a calibration phase.
func (p *Profile) Calibrated() bool {
	return p.Calibration != nil && len(p.Calibration.Stages) > 0
}

// Target returns n, or the profile's default when n is not positive. For
// hold profiles the unit is seconds.
func (p *Profile) Target(n int) int {
	if n > 0 {
		return n
	}
	if p.Mode == ModeHold && p.Hold != nil {
		return int(p.Hold.Target / time.Second)
	}
	return p.DefaultTarget
}

// FormatRep returns the text spoken for rep n.
func (p *Profile) FormatRep(n int) string {
	tmpl := p.RepText
	if tmpl == "" {
		tmpl = DefaultRepText
	}
	return fmt.Sprintf(tmpl, n)
}

// Lost returns the overlay text shown when detection drops.
func (p *Profile) Lost() string {
	if p.LostText != "" {
		return p.LostText
	}
	return DefaultLostText
}

// Summary is the listing view of a profile.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
	Mode        Mode   `json:"mode"`
	Calibrated  bool   `json:"calibrated"`
	Target      int    `json:"default_target"`
}

// Summarize returns the listing view.
func (p *Profile) Summarize() Summary {
	return Summary{
		ID:          p.ID,
		Name:        p.Name,
		Category:    p.Category,
		Description: p.Description,
		Mode:        p.Mode,
		Calibrated:  p.Calibrated(),
		Target:      p.Target(0),
	}
}
