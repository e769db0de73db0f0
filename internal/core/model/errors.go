package model

import "errors"

// ErrMalformedEntity marks an entity that cannot be compiled into store commands.
var ErrMalformedEntity = errors.New("malformed entity")
