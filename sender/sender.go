// Package sender runs the notification pipeline: fetch the feed, decide who
// gets notified about what, render the emails and dispatch them.
package sender

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"rss-notifier/pkg/notifier"
)

// Feed interface for fetching normalized feed items.
type Feed interface {
	Fetch(ctx context.Context) ([]notifier.Item, error)
}

// Store interface for subscriber access.
type Store interface {
	List(ctx context.Context) ([]*notifier.Subscriber, error)
	SetLastNotified(ctx context.Context, email string, ts int64) error
}

// Mailer interface for rendering and dispatching emails.
type Mailer interface {
	Render(sub *notifier.Subscriber, item notifier.Item) (notifier.Email, error)
	Dispatch(ctx context.Context, emails []notifier.Email) error
}

// Runner executes notification runs.
type Runner struct {
	feed   Feed
	store  Store
	mailer Mailer
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex // one dispatch loop per process
}

// New creates a runner.
func New(feed Feed, store Store, mailer Mailer, logger *slog.Logger) *Runner {
	return &Runner{
		feed:   feed,
		store:  store,
		mailer: mailer,
		logger: logger,
		now:    time.Now,
	}
}

// Run executes one end-to-end notification run.
//
// Delivery is at most once: last_notified_at is advanced when a decision is
// made, before the bulk send. A dispatch failure can drop this run's
// notifications but can never duplicate them on the next run.
func (r *Runner) Run(ctx context.Context) error {
	logger := r.logger.With("run_id", uuid.NewString())

	items, err := r.feed.Fetch(ctx)
	if err != nil {
		logger.Error("Feed fetch failed, aborting run", "error", err)
		return fmt.Errorf("fetch feed: %w", err)
	}

	subs, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}

	decisions := Plan(subs, items)
	logger.Info("Run planned", "items", len(items), "subscribers", len(subs), "decisions", len(decisions))

	if len(decisions) == 0 {
		logger.Info("No notifications to send for now")
		return nil
	}

	now := r.now().Unix()
	emails := make([]notifier.Email, 0, len(decisions))
	for _, d := range decisions {
		email, err := r.mailer.Render(d.Subscriber, d.Item)
		if err != nil {
			return fmt.Errorf("render email: %w", err)
		}

		if err := r.store.SetLastNotified(ctx, d.Subscriber.EmailAddress, now); err != nil {
			return fmt.Errorf("update last notified: %w", err)
		}

		emails = append(emails, email)
	}

	logger.Info("Processing notifications", "count", len(emails))
	if err := r.mailer.Dispatch(ctx, emails); err != nil {
		logger.Error("Dispatch failed, remaining notifications abandoned", "error", err)
		return fmt.Errorf("dispatch: %w", err)
	}

	logger.Info("Notifications processed", "count", len(emails))
	return nil
}

// Trigger starts a run on a background goroutine and returns immediately.
// The caller cannot observe the run's outcome; failures are only logged.
// Returns false when a run is already active, in which case nothing starts:
// two dispatch loops must never race against the same provider account.
func (r *Runner) Trigger() bool {
	if !r.mu.TryLock() {
		r.logger.Warn("Notification run already active, skipping trigger")
		return false
	}

	go func() {
		defer r.mu.Unlock()
		if err := r.Run(context.Background()); err != nil {
			r.logger.Error("Notification run failed", "error", err)
		}
	}()

	return true
}
