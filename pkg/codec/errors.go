package codec

import "errors"

// ErrUnderflow is returned when a decode call needs more bytes than the
// stream has remaining.
var ErrUnderflow = errors.New("codec: underflow")

// ErrBadFormat is returned when a decode call finds a reserved tag, kind or
// container flag it does not recognize.
var ErrBadFormat = errors.New("codec: bad format")
