package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"diet-agent/internal/notify"
	"diet-agent/internal/user"
)

const (
	defaultWorkers = 4
	// maxCatchUp bounds how far back a tick looks after the process was paused or restarted.
	maxCatchUp = time.Hour
)

// UserLister enumerates the users to schedule.
type UserLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// SettingsReader resolves a user's schedule.
type SettingsReader interface {
	SettingsOrDefault(ctx context.Context, userID string) (user.Settings, error)
}

// Dispatcher handles a fired trigger.
type Dispatcher interface {
	OnTrigger(ctx context.Context, userID string, trig notify.Trigger, firedAt time.Time) (notify.Action, error)
}

// Runner fires every user's registrations from a minute ticker. Each tick covers the window since
// the previous tick, so an occurrence fires at least once; the dispatch ledger drops repeats.
type Runner struct {
	users      UserLister
	settings   SettingsReader
	dispatcher Dispatcher
	workers    int
	interval   time.Duration
	logger     *zap.Logger
	now        func() time.Time
	last       time.Time
}

// NewRunner creates a Runner that fans out over at most workers users at a time.
func NewRunner(users UserLister, settings SettingsReader, dispatcher Dispatcher, workers int, logger *zap.Logger) *Runner {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		users:      users,
		settings:   settings,
		dispatcher: dispatcher,
		workers:    workers,
		interval:   time.Minute,
		logger:     logger,
		now:        time.Now,
	}
}

// Run ticks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("scheduler started", zap.Int("workers", r.workers))
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-t.C:
			if err := r.Tick(ctx); err != nil {
				r.logger.Error("scheduler tick failed", zap.Error(err))
			}
		}
	}
}

// Tick fires every occurrence since the previous tick. The first tick looks back one interval.
func (r *Runner) Tick(ctx context.Context) error {
	now := r.now()
	from := r.last
	if from.IsZero() {
		from = now.Add(-r.interval)
	}
	if now.Sub(from) > maxCatchUp {
		from = now.Add(-maxCatchUp)
	}
	if err := r.fire(ctx, from, now); err != nil {
		return err
	}
	r.last = now
	return nil
}

func (r *Runner) fire(ctx context.Context, from, to time.Time) error {
	ids, err := r.users.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	var g errgroup.Group
	g.SetLimit(r.workers)
	for _, id := range ids {
		g.Go(func() error {
			r.fireUser(ctx, id, from, to)
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) fireUser(ctx context.Context, userID string, from, to time.Time) {
	settings, err := r.settings.SettingsOrDefault(ctx, userID)
	if err != nil {
		r.logger.Error("failed to load settings", zap.String("user_id", userID), zap.Error(err))
		return
	}
	loc := settings.Location()
	for _, reg := range Registrations(settings) {
		for _, at := range reg.Occurrences(from, to, loc) {
			action, err := r.dispatcher.OnTrigger(ctx, userID, reg.Trigger, at)
			if err != nil {
				r.logger.Error("trigger failed",
					zap.String("user_id", userID),
					zap.String("trigger", reg.Trigger.String()),
					zap.Error(err),
				)
				continue
			}
			r.logger.Debug("trigger handled",
				zap.String("user_id", userID),
				zap.String("trigger", reg.Trigger.String()),
				zap.String("action", string(action.Kind)),
				zap.String("reason", action.Reason),
			)
		}
	}
}
