package confidence

import "errors"

// ErrStale is returned when a newer request for the same watcher superseded
// the one being resolved.
var ErrStale = errors.New("confidence: superseded by a newer request")
