package store

import "errors"

// ErrNotFound marks lookups of rows that do not exist, so callers can
// distinguish "doesn't exist" from "couldn't check".
var ErrNotFound = errors.New("not found")
