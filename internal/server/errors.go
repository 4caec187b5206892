package server

import "errors"

// ErrInvalidRequest marks a bad payload or a referenced entity missing
// at creation time; renders as HTTP 400.
var ErrInvalidRequest = errors.New("invalid request")

// ErrValidationError marks a request that fails schema validation;
// renders as HTTP 422.
var ErrValidationError = errors.New("validation error")

// ErrCancelled marks a request aborted by cooperative cancellation;
// renders as HTTP 503 for non-streaming requests.
var ErrCancelled = errors.New("cancelled")
