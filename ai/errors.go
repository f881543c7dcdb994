package ai

import "errors"

var (
	// ErrUpstreamUnavailable indicates the embedding or generation service
	// failed or could not be reached.
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")

	// ErrEmptyResponse indicates the model returned no choices.
	ErrEmptyResponse = errors.New("empty model response")
)
