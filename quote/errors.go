package quote

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the root of every not-found failure in this package.
	ErrNotFound           = errors.New("quote: not found")
	ErrRequestNotFound    = fmt.Errorf("%w: maintenance request", ErrNotFound)
	ErrContractorNotFound = fmt.Errorf("%w: contractor", ErrNotFound)

	ErrInvalidTransition = errors.New("quote: invalid status transition")
	ErrInvalidAmount     = errors.New("quote: amount must be positive")
	ErrCrossTenant       = errors.New("quote: request and contractor belong to different organizations")
	ErrRequestClosed     = errors.New("quote: maintenance request is closed")
	ErrAlreadyAwarded    = errors.New("quote: another quote is already approved for this request")
	ErrConflict          = errors.New("quote: quote changed concurrently")
	ErrDuplicate         = errors.New("quote: quote already exists for contractor")
	ErrMissingID         = errors.New("quote: missing identifier")
)
