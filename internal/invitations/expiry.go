package invitations

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// RunExpiryJob expires stale invitations and logs the result. It is
// idempotent and safe to run repeatedly.
func RunExpiryJob(ctx context.Context, svc *Service) error {
	startTime := time.Now()

	n, err := svc.ExpireStale(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to expire invitations")
		return fmt.Errorf("invitation expiry failed: %w", err)
	}

	log.Debug().
		Int64("invitations_expired", n).
		Dur("duration", time.Since(startTime)).
		Msg("Invitation expiry job completed")

	return nil
}

// NewExpiryScheduler returns a stopped cron scheduler that runs the expiry
// job on schedule (standard five-field cron syntax, UTC).
func NewExpiryScheduler(schedule string, svc *Service) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC))

	_, err := c.AddFunc(schedule, func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Invitation expiry job panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_ = RunExpiryJob(ctx, svc)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule invitation expiry: %w", err)
	}

	return c, nil
}
