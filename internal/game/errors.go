package game

import "errors"

// Construction errors. A World is never built from invalid geometry.
var (
	ErrInvalidTable       = errors.New("invalid table")
	ErrInvalidBall        = errors.New("invalid ball")
	ErrInvalidRestitution = errors.New("invalid restitution")
)

// Invocation errors, returned at the call boundary without touching state.
var (
	ErrInvalidTimestep = errors.New("invalid timestep")
	ErrIndexOutOfRange = errors.New("ball index out of range")
)
