// Package broadcast fans live competition updates out to connected displays.
//
// A Bus owns a Registry of subscribers and a sharded fan-out worker pool.
// Publish snapshots the current membership and hands the event to the pool;
// every subscriber then renders it on its own mailbox goroutine, one event at
// a time and in publish order. Late joiners get nothing that was published
// before they registered.
//
// Displays are wired in through Lifecycle: the transport calls OnConnect when
// a display session opens and OnDisconnect when it ends.
package broadcast
