/*
Package ratelimit groups the rate limiting primitives.

  - gate: spaces admissions at least Unit/RPM apart

A gate is process-local: it coordinates goroutines, not machines, and keeps
no state across restarts. Create one per throttled operation and hand it to
every caller of that operation:

	g, err := gate.New(15) // 15 calls per minute, one every 4s
	if err != nil {
		return err
	}
	generate := gate.Wrap1(g, client.Generate)

The first admission is immediate. Later admissions wait until a full period
has passed since the previous one, so no window of time ever sees more calls
than the configured rate allows.
*/
package ratelimit
