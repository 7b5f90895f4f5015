// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// StartReconcileScheduler runs the reconciler every interval until the
// returned scheduler is shut down. Overlapping runs are skipped.
func StartReconcileScheduler(r *Reconciler, interval, timeout time.Duration, log logrus.FieldLogger) (gocron.Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("reconcile interval must be positive, got %s", interval)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx := context.Background()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			if _, err := r.Run(ctx); err != nil {
				log.WithError(err).Error("[Scheduler] Reconciliation failed")
			}
		}),
		gocron.WithName("reconcile-purchases"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule reconciliation: %w", err)
	}

	sched.Start()
	log.WithField("interval", interval.String()).Info("[Scheduler] Reconciliation scheduled")
	return sched, nil
}
