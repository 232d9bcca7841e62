package models

import "errors"

// ErrInvalidInput is returned when a volume, histogram or parameter set cannot
// be processed at all (empty, malformed, out of domain).
var ErrInvalidInput = errors.New("invalid input")
