package exercise

import "errors"

var (
	// ErrUnknownExercise is returned when an exercise id is not registered.
	ErrUnknownExercise = errors.New("unknown exercise")

	// ErrInvalidProfile is returned when a profile is malformed.
	ErrInvalidProfile = errors.New("invalid exercise profile")

	// ErrUnresolvedThreshold is returned when a threshold refers to a
	// calibration value that does not exist.
	ErrUnresolvedThreshold = errors.New("unresolved threshold")
)
