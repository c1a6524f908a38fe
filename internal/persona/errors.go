package persona

import "errors"

// ErrGeneration covers failed, timed-out and empty model calls.
var ErrGeneration = errors.New("generation failed")
