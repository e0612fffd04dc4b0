package bars

import "errors"

var (
	// ErrDataUnavailable means neither a valid cache artifact nor the raw source
	// could serve a requested period.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrCorruptCache means a cache artifact failed schema or ordering validation.
	ErrCorruptCache = errors.New("corrupt cache artifact")
)
