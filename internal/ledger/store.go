package ledger

import (
	"context"
	"time"

	"spin-bot/internal/models"
)

// Store is the durable record store behind the ledger. Lookups return (nil, nil)
// when the record does not exist. Every write method is atomic: either all the
// records it is given are persisted or none are.
type Store interface {
	GetAccount(ctx context.Context, userID int64) (*models.Account, error)
	// CreateAccount inserts acc. When referrer is non-nil it is saved in the same
	// transaction together with rec.
	CreateAccount(ctx context.Context, acc *models.Account, referrer *models.Account, rec *models.ReferralTransaction) error
	SaveAccount(ctx context.Context, acc *models.Account) error
	ReferralStats(ctx context.Context, referrerID int64) (invited int64, spins int64, err error)
	Stats(ctx context.Context) (*models.Stats, error)

	ListChannels(ctx context.Context) ([]string, error)
	SaveChannels(ctx context.Context, channels []string) error

	// CreateWithdrawal saves the debited account and inserts w.
	CreateWithdrawal(ctx context.Context, acc *models.Account, w *models.Withdrawal) error
	GetWithdrawal(ctx context.Context, id string) (*models.Withdrawal, error)
	// ResolveWithdrawal updates w and, when refund is non-nil, saves the refunded account.
	ResolveWithdrawal(ctx context.Context, w *models.Withdrawal, refund *models.Account) error
	ListPendingWithdrawals(ctx context.Context, createdBefore time.Time) ([]models.Withdrawal, error)
}

// Notifier delivers the outbound messages produced by state transitions.
type Notifier interface {
	ReferralCredited(ctx context.Context, referrer, invited *models.Account, spins int64) error
	WithdrawalRequested(ctx context.Context, acc *models.Account, w *models.Withdrawal) error
	WithdrawalResolved(ctx context.Context, w *models.Withdrawal) error
}
