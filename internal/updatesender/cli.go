package updatesender

import (
	"fmt"
	"io"
)

// ShowHelp prints usage information for the update sender.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `scorecast update sender
=======================

Posts competition updates to a running broadcaster the way the scoring
engine does.

Usage:
  send-update [options]

Options:
  -url string
        Base URL of the broadcaster (default "http://localhost:8080")
  -key string
        Shared update secret (default $SCORECAST_UPDATE_KEY)
  -count int
        Number of updates to send (default 1)
  -interval duration
        Pause between updates (default 0)
  -workers int
        Number of concurrent senders (default 1)
  -timeout duration
        HTTP request timeout (default 10s)
  -field key=value
        Update field sent with every update; repeatable
  -verbose
        Log every accepted update
  -help
        Show this help message

Examples:
  # Announce the next lifter
  send-update -key s3cret -field fullName="Anna Schmidt" -field weight=92

  # Rehearse a session: one update per second for five minutes
  send-update -key s3cret -count 300 -interval 1s
`)
}

// PrintStats writes a summary of a run.
func PrintStats(w io.Writer, s *Stats) {
	_, _ = fmt.Fprintf(w, `Sent:     %d
Accepted: %d
Denied:   %d
Failed:   %d
Duration: %s
`, s.Sent, s.Accepted, s.Denied, s.Failed, s.Duration)
}
