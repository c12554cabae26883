// Package scheduler runs tasks on cron schedules.
//
// It is a thin layer over github.com/robfig/cron/v3 that accepts the same
// workerpool.Task values the worker pool runs, so a batch job can be executed
// once or on a schedule without changes.
//
//	s := scheduler.NewWithConfig(scheduler.Config{
//		OnError: func(id string, err error) { log.Printf("%s: %v", id, err) },
//	})
//	_ = s.Add("refresh", "0 */5 * * * *", task) // every five minutes
//	s.Start()
//	defer func() { <-s.Stop().Done() }()
//
// Expressions take five fields, or six with a leading seconds field, plus the
// descriptors "@hourly", "@daily" and "@every <duration>".
//
// An activation that fires while the previous activation of the same job is
// still running is skipped and reported to Config.OnSkip. Task errors and
// panics are reported to Config.OnError. Stop cancels the context passed to
// running tasks.
package scheduler
