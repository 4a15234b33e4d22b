package broadcast

import "errors"

// Sentinel kinds for broadcast errors. None of them reach the publisher;
// they classify what is logged.
var (
	ErrDelivery   = errors.New("delivery failed")
	ErrBusStopped = errors.New("bus stopped")

	ErrNotComparable = errors.New("subscriber is not comparable")
)
