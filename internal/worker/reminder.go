package worker

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"spin-bot/internal/models"
)

const (
	DefaultInterval = time.Hour
	// DefaultOverdue is how long a request waits before the admin is reminded.
	DefaultOverdue = 24 * time.Hour
)

type PendingSource interface {
	PendingWithdrawals(ctx context.Context, olderThan time.Duration) ([]models.Withdrawal, error)
}

// Marker remembers which reminders were already sent.
type Marker interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unmark(ctx context.Context, key string) error
}

type Reminder interface {
	WithdrawalReminder(ctx context.Context, w *models.Withdrawal) error
}

// Checker reminds the administrator about withdrawal requests left pending.
type Checker struct {
	Pending  PendingSource
	Marks    Marker
	Reminder Reminder
	Interval time.Duration
	Overdue  time.Duration
}

func NewChecker(pending PendingSource, marks Marker, reminder Reminder) *Checker {
	return &Checker{
		Pending:  pending,
		Marks:    marks,
		Reminder: reminder,
		Interval: DefaultInterval,
		Overdue:  DefaultOverdue,
	}
}

// Start runs a cycle immediately and then on every tick until ctx is done.
func (c *Checker) Start(ctx context.Context) {
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()
	log.Info("Background withdrawal reminder started")

	c.checkPending(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info("Background withdrawal reminder stopped")
			return
		case <-ticker.C:
			c.checkPending(ctx)
		}
	}
}

func reminderKey(id string) string {
	return fmt.Sprintf("withdrawal_reminder_%s", id)
}

// checkPending returns the number of reminders sent.
func (c *Checker) checkPending(ctx context.Context) int {
	log.Debug("Running pending withdrawal check cycle...")

	pending, err := c.Pending.PendingWithdrawals(ctx, c.Overdue)
	if err != nil {
		log.Errorf("Error querying pending withdrawals: %v", err)
		return 0
	}

	sent := 0
	for i := range pending {
		w := &pending[i]

		// The marker is claimed before sending so concurrent instances
		// don't both remind, and released again if the send fails.
		key := reminderKey(w.ID)
		first, err := c.Marks.MarkOnce(ctx, key, c.Overdue)
		if err != nil {
			log.Errorf("Failed to mark reminder for withdrawal %s: %v", w.ID, err)
			continue
		}
		if !first {
			continue
		}

		if err := c.Reminder.WithdrawalReminder(ctx, w); err != nil {
			log.Errorf("Failed to remind about withdrawal %s: %v", w.ID, err)
			if err := c.Marks.Unmark(ctx, key); err != nil {
				log.Errorf("Failed to release reminder mark for withdrawal %s: %v", w.ID, err)
			}
			continue
		}
		sent++
		log.Infof("Reminded admin about withdrawal %s of user %d", w.ID, w.UserID)
	}
	return sent
}
