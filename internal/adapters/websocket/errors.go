package websocket

import "errors"

// Sentinel kinds for display transport errors.
var (
	ErrEncode = errors.New("encode update failed")
	ErrWrite  = errors.New("write to display failed")
)
