package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"meetup-engagement-system/models"
)

// StartEngagementScheduler runs the background jobs: crediting attendance whose event day has
// arrived, and re-evaluating badges so missed awards converge. Caller owns Shutdown.
func StartEngagementScheduler(ctx context.Context, g *GamificationService, badges *BadgeService,
	loc *time.Location, creditEvery, reconcileEvery time.Duration, log *zap.Logger) (gocron.Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	sched, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, err
	}

	// Every hour by default: credit registrations whose event day has come
	_, err = sched.NewJob(
		gocron.DurationJob(creditEvery),
		gocron.NewTask(func() {
			n, err := g.CreditDueAttendance(ctx, models.CivilDate(time.Now(), loc))
			if err != nil {
				log.Error("[Scheduler] attendance credit failed", zap.Error(err))
				return
			}
			if n > 0 {
				log.Info("✅ attendance credited", zap.Int("registrations", n))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(reconcileEvery),
		gocron.NewTask(func() {
			n, err := badges.ReconcileBadges(ctx)
			if err != nil {
				log.Error("[Scheduler] badge reconcile failed", zap.Error(err))
				return
			}
			if n > 0 {
				log.Info("🎖️ badges reconciled", zap.Int("awarded", n))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
