package ranking

import "errors"

// ErrUnknownLevel is returned by ByLevel in strict mode when no score has
// been recorded on the requested level.
var ErrUnknownLevel = errors.New("unknown level")
