/*
Package rateguard spaces calls to rate-limited APIs.

Rate Limiting (pkg/ratelimit):
  - gate: Minimum-interval gate shared by any number of goroutines, with
    generic wrappers and a Prometheus decorator

Task Scheduling (pkg/scheduling):
  - workerpool: Background task processing
  - scheduler: Cron-based scheduling

Batch Processing:
  - pkg/client: Text generation API client
  - pkg/batch: Fans questions out to workers through one shared gate
  - pkg/sink: Stores reports as JSON files or Redis hashes

The rateguard command (cmd/rateguard) runs batches once or on a schedule.

Example usage:

	import (
		"github.com/vnykmshr/rateguard/pkg/ratelimit/gate"
		"github.com/vnykmshr/rateguard/pkg/scheduling/workerpool"
	)

	g, _ := gate.New(15)           // 15 calls per minute
	pool := workerpool.New(5, 100) // 5 workers, queue 100

	call := gate.WrapContext(g, fetch)
	pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error {
		_, err := call(ctx, url)
		return err
	}))
*/
package rateguard
