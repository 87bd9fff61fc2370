package repository

import "errors"

// ErrNotFound is returned when a lookup or conditional update matches no row.
var ErrNotFound = errors.New("record not found")
