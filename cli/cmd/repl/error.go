package repl

import "errors"

// Sentinel errors.
var (
	ErrOutOfBounds  = errors.New("index out of range")
	ErrEditDeclined = errors.New("decline edit")
	ErrNoTemplate   = errors.New("template is empty")
	ErrUsage        = errors.New("usage")
)
