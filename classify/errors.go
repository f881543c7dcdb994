package classify

import "errors"

var (
	// ErrInvalidConfidence is returned for a threshold outside [0,1].
	ErrInvalidConfidence = errors.New("confidence threshold must be in [0,1]")

	// ErrInvalidPattern is returned for a nil expression or a weight outside [0,1].
	ErrInvalidPattern = errors.New("invalid classifier pattern")
)
