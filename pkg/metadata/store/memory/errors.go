package memory

import "errors"

var errHandlesExhausted = errors.New("object handles exhausted")
