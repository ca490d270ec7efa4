package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sakif/drink-tracker/internal/repository"
)

// Janitor periodically deletes login sessions that expired more than
// retention ago. Expired rows are kept for a while so a late request still
// gets "Token expired" instead of "Invalid token".
type Janitor struct {
	sessions  repository.LoginSessionRepository
	retention time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	cron      *cron.Cron
	now       func() time.Time
}

func NewJanitor(sessions repository.LoginSessionRepository, retention time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{
		sessions:  sessions,
		retention: retention,
		timeout:   time.Minute,
		logger:    logger,
		cron:      cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger))),
		now:       time.Now,
	}
}

// Start schedules Purge on spec (standard cron syntax or descriptors like
// "@hourly") and starts the scheduler.
func (j *Janitor) Start(spec string) error {
	_, err := j.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()
		if _, err := j.Purge(ctx); err != nil {
			j.logger.Error("login session purge failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("service/janitor: bad schedule %q: %w", spec, err)
	}
	j.cron.Start()
	j.logger.Info("login session janitor started", slog.String("schedule", spec))
	return nil
}

// Stop stops scheduling and returns a context that is done once any
// running purge has finished.
func (j *Janitor) Stop() context.Context {
	return j.cron.Stop()
}

// Purge deletes sessions whose expiry is older than now - retention.
func (j *Janitor) Purge(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.retention)
	n, err := j.sessions.PurgeLoginSessions(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.logger.Info("purged expired login sessions",
			slog.Int64("count", n),
			slog.Time("expiredBefore", cutoff),
		)
	}
	return n, nil
}
