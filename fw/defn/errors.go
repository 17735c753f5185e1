package defn

import "errors"

// URL not canonical error
var ErrNotCanonical = errors.New("URI could not be canonized")

var (
	ErrParse          = errors.New("malformed packet")
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadRule        = errors.New("invalid rule")
	ErrBadConfig      = errors.New("invalid configuration")
)
