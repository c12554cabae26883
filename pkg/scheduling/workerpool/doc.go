/*
Package workerpool provides a fixed-size pool of goroutines for running
tasks concurrently.

The batch runner uses a pool to fan requests out to several workers that all
share one rate gate: the pool supplies concurrency, the gate caps the rate.

Basic usage:

	pool := workerpool.New(10, 100) // 10 workers, queue of 100
	defer func() { <-pool.Shutdown() }()

	err := pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error {
		return process(ctx)
	}))

Results:

Every finished task produces a Result carrying its error, duration and worker
ID. Results are delivered to Config.OnTaskComplete (always) and offered on
Results() (dropped after ResultTimeout if nobody is reading).

Shutdown:

Shutdown stops new submissions with an error wrapping errors.ErrClosed,
lets queued tasks run to completion, and closes the returned channel once
every worker has exited. Panics inside tasks are recovered and reported as
task errors including the stack trace.

Metrics:

Setting Config.Metrics records pool size, active workers, queue depth,
task outcomes and task durations under Config.Name.
*/
package workerpool
