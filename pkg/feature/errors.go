package feature

import "errors"

var (
	// ErrNoDetection is returned when the frame has no landmarks at all.
	ErrNoDetection = errors.New("feature: no detection")

	// ErrMissingLandmark is returned when a required point is absent or
	// below landmark.MinVisibility.
	ErrMissingLandmark = errors.New("feature: missing landmark")

	// ErrInvalidSpec is returned for a spec that can never be evaluated.
	ErrInvalidSpec = errors.New("feature: invalid spec")
)
