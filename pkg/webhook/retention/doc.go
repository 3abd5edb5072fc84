// Package retention prunes the webhook dead-letter store on a cron
// schedule.
//
//	pruner := retention.NewPruner(store, retention.ConfigFrom(cfg.Webhooks.DeadLetter))
//	scheduler := retention.NewScheduler(pruner)
//	if err := scheduler.Start(ctx); err != nil {
//	    return err
//	}
//
// The scheduler stops when ctx is cancelled. Stores also prune on read, so
// the schedule only bounds disk use; it is not needed for correctness.
package retention
