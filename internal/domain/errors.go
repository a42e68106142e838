package domain

import "errors"

var (
	// ErrNotFound indicates resource not found
	ErrNotFound = errors.New("resource not found")
	// ErrEmptySubmission indicates a submit with no text and no attachments
	ErrEmptySubmission = errors.New("empty submission")
	// ErrTurnInFlight indicates a submit while another turn is streaming
	ErrTurnInFlight = errors.New("turn already in flight")
	// ErrInvalidRegenerate indicates a regenerate without a completed exchange
	ErrInvalidRegenerate = errors.New("nothing to regenerate")
)
