package repo

import "errors"

// ErrNotFound is returned for any store miss.
var ErrNotFound = errors.New("record not found")
