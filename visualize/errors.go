package visualize

import "errors"

var (
	// ErrHighlighterRequired is returned when a dispatcher has no highlighter.
	ErrHighlighterRequired = errors.New("highlighter required")

	// ErrPathRequired is returned when a file highlighter has no path.
	ErrPathRequired = errors.New("selection file path required")
)
