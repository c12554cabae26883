/*
Package gate provides a minimum-interval rate gate for outbound calls.

A RateGate is configured with a rate in calls per minute and admits callers
one at a time so that two consecutive admissions are always at least
period = 60s / rpm apart. It is meant for throttling calls to quota-limited
APIs from many goroutines at once:

	g, err := gate.New(15) // at most 15 calls per minute, one every 4s
	if err != nil {
		return err // errors.Is(err, errors.ErrInvalidConfiguration)
	}

	g.Admit() // first call is immediate
	resp, err := client.Generate(ctx, model, prompt)

Admission Algorithm:

Each admission takes the gate's lock, computes how long ago the previous
admission was granted, sleeps out the remainder of the period while still
holding the lock, records the post-sleep time as the new admission time and
releases the lock. Because the lock is held during the sleep, concurrent
callers queue behind each other and the combined rate across all of them
never exceeds the configured rate. There is no FIFO guarantee among queued
callers.

Cancellation:

Admit never fails. AdmitContext accepts a context and gives up, without
touching the gate's state, when the context ends while the caller is queued
or sleeping:

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := g.AdmitContext(ctx); err != nil {
		return err // context.DeadlineExceeded
	}

TryAdmit is the non-blocking form: it succeeds only if the caller can be
admitted immediately.

Wrapping Functions:

Wrap, Wrap1, Wrap2, WrapFunc and WrapContext decorate a function so every
call is admitted first; arguments, results and errors pass through
unchanged:

	generate := gate.WrapContext(g, func(ctx context.Context, prompt string) (string, error) {
		return client.Generate(ctx, model, prompt)
	})
	text, err := generate(ctx, "Explain gradient descent.")

Share one gate between every call site that draws on the same quota; there
is deliberately no package-level default gate.

Metrics:

WithMetrics and NewWithMetrics wrap a gate with Prometheus counters for
requests, admissions and abandoned admissions, a wait-time histogram and a
gauge exposing the configured period.

State is process-local. Gates do not coordinate across processes and keep
nothing across restarts.
*/
package gate
