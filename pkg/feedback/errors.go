package feedback

import "errors"

var (
	// ErrClosed is returned when registering on a closed dispatcher.
	ErrClosed = errors.New("feedback: dispatcher closed")

	// ErrDuplicateSink is returned when a sink name is already registered.
	ErrDuplicateSink = errors.New("feedback: duplicate sink")
)
