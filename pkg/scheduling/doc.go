/*
Package scheduling provides task execution primitives.

  - workerpool: Fixed worker pool for concurrent task execution
  - scheduler: Cron-based task scheduling

Worker Pool:

	pool := workerpool.New(4, 100) // 4 workers, queue size 100
	defer func() { <-pool.Shutdown() }()

	pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error {
		// Do work
		return nil
	}))

Scheduler:

	s := scheduler.New()
	_ = s.Add("nightly", "0 2 * * *", task)
	s.Start()
	defer func() { <-s.Stop().Done() }()

Both run workerpool.Task values, so the same task can be run on demand or on
a schedule.
*/
package scheduling
