package services

import "errors"

// ErrInvalidInput marks requests that passed decoding but not the service's own checks.
var ErrInvalidInput = errors.New("invalid input")
