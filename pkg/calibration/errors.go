package calibration

import "errors"

var (
	// ErrInvalidPlan is returned by Plan.Validate for malformed plans.
	ErrInvalidPlan = errors.New("calibration: invalid plan")

	// ErrIncomplete is returned when a result is requested before the last stage finished.
	ErrIncomplete = errors.New("calibration: incomplete")
)
