package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"spin-bot/internal/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

type Options struct {
	DailyBonus    int64
	MinWithdrawal int64
	ReferralSpins int64
	// Location is the reference zone that decides what "today" means for the bonus.
	Location *time.Location
}

func DefaultOptions() Options {
	return Options{
		DailyBonus:    5000,
		MinWithdrawal: 100000,
		ReferralSpins: 1,
		Location:      time.UTC,
	}
}

// Ledger owns every balance, spin-credit, bonus and referral transition.
type Ledger struct {
	store    Store
	rewards  RewardSource
	notifier Notifier
	opts     Options
	locks    *keyedLocker
	now      func() time.Time

	chMu     sync.RWMutex
	channels []string
}

func New(store Store, rewards RewardSource, notifier Notifier, opts Options) *Ledger {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Ledger{
		store:    store,
		rewards:  rewards,
		notifier: notifier,
		opts:     opts,
		locks:    newKeyedLocker(),
		now:      time.Now,
	}
}

func (l *Ledger) MinWithdrawal() int64 { return l.opts.MinWithdrawal }

type SpinResult struct {
	Reward      int64
	Balance     int64
	SpinCredits int64
}

type BonusResult struct {
	Amount  int64
	Balance int64
	Date    string
}

// ParseReferralToken accepts "123" and "ref_123".
func ParseReferralToken(token string) (int64, bool) {
	token = strings.TrimPrefix(strings.TrimSpace(token), "ref_")
	id, err := strconv.ParseInt(token, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ParseAmount parses a withdrawal amount typed by the user.
func ParseAmount(raw string) (int64, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return amount, nil
}

// FirstContact returns the caller's account, creating it on the first call.
// A valid referral token only counts when the account is created by this call.
func (l *Ledger) FirstContact(ctx context.Context, userID int64, username, referralToken string) (*models.Account, bool, error) {
	referrerID, hasReferrer := ParseReferralToken(referralToken)
	if referrerID == userID {
		hasReferrer = false
	}

	keys := []int64{userID}
	if hasReferrer {
		keys = append(keys, referrerID)
	}
	unlock := l.locks.Lock(keys...)
	defer unlock()

	existing, err := l.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load account %d: %w", userID, err)
	}
	if existing != nil {
		return existing, false, nil
	}

	acc := &models.Account{UserID: userID, Username: username}

	var referrer *models.Account
	var rec *models.ReferralTransaction
	if hasReferrer {
		ref, err := l.store.GetAccount(ctx, referrerID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load referrer %d: %w", referrerID, err)
		}
		if ref != nil {
			referrer = ref.Clone()
			referrer.SpinCredits += l.opts.ReferralSpins
			acc.ReferredBy = &referrerID
			rec = &models.ReferralTransaction{
				ReferrerID:    referrerID,
				InvitedUserID: userID,
				Spins:         l.opts.ReferralSpins,
			}
		} else {
			log.Debugf("Ignoring referral token of unknown user %d for %d", referrerID, userID)
		}
	}

	if err := l.store.CreateAccount(ctx, acc, referrer, rec); err != nil {
		return nil, false, fmt.Errorf("failed to create account %d: %w", userID, err)
	}
	log.Infof("Account %d created", userID)

	if referrer != nil {
		log.Infof("User %d invited by %d, credited %d spin(s)", userID, referrerID, l.opts.ReferralSpins)
		if err := l.notifier.ReferralCredited(ctx, referrer, acc, l.opts.ReferralSpins); err != nil {
			log.Errorf("Failed to notify referrer %d: %v", referrerID, err)
		}
	}

	return acc, true, nil
}

// Account returns the stored account.
func (l *Ledger) Account(ctx context.Context, userID int64) (*models.Account, error) {
	acc, err := l.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %d: %w", userID, err)
	}
	if acc == nil {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}

// Spin consumes one spin credit and adds a drawn reward to the balance.
func (l *Ledger) Spin(ctx context.Context, userID int64) (*SpinResult, error) {
	unlock := l.locks.Lock(userID)
	defer unlock()

	acc, err := l.Account(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acc.SpinCredits < 1 {
		return nil, ErrInsufficientCredits
	}

	reward := l.rewards.Draw()
	updated := acc.Clone()
	updated.Balance += reward
	updated.SpinCredits--

	if err := l.store.SaveAccount(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to save spin for %d: %w", userID, err)
	}
	log.Infof("User %d spun %d, balance %d, spins left %d", userID, reward, updated.Balance, updated.SpinCredits)

	return &SpinResult{Reward: reward, Balance: updated.Balance, SpinCredits: updated.SpinCredits}, nil
}

// ClaimDailyBonus credits the daily bonus once per calendar date.
func (l *Ledger) ClaimDailyBonus(ctx context.Context, userID int64) (*BonusResult, error) {
	unlock := l.locks.Lock(userID)
	defer unlock()

	acc, err := l.Account(ctx, userID)
	if err != nil {
		return nil, err
	}

	today := l.now().In(l.opts.Location).Format(dateLayout)
	if acc.LastBonusDate != nil && *acc.LastBonusDate == today {
		return nil, ErrAlreadyClaimedToday
	}

	updated := acc.Clone()
	updated.Balance += l.opts.DailyBonus
	updated.LastBonusDate = &today

	if err := l.store.SaveAccount(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to save bonus for %d: %w", userID, err)
	}
	log.Infof("User %d claimed daily bonus for %s", userID, today)

	return &BonusResult{Amount: l.opts.DailyBonus, Balance: updated.Balance, Date: today}, nil
}

// Withdraw debits the amount and queues a request for manual payout by the admin.
func (l *Ledger) Withdraw(ctx context.Context, userID int64, rawAmount string) (*models.Withdrawal, error) {
	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return nil, err
	}
	if amount < l.opts.MinWithdrawal {
		return nil, ErrBelowMinimum
	}

	unlock := l.locks.Lock(userID)
	defer unlock()

	acc, err := l.Account(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acc.Balance < amount {
		return nil, ErrInsufficientBalance
	}

	updated := acc.Clone()
	updated.Balance -= amount
	w := &models.Withdrawal{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Status:    models.WithdrawalPending,
		CreatedAt: l.now(),
	}

	if err := l.store.CreateWithdrawal(ctx, updated, w); err != nil {
		return nil, fmt.Errorf("failed to save withdrawal for %d: %w", userID, err)
	}
	log.Infof("User %d requested withdrawal %s of %d", userID, w.ID, amount)

	// The request stays pending in the store, so a failed notification is
	// picked up again by the reminder worker.
	if err := l.notifier.WithdrawalRequested(ctx, updated, w); err != nil {
		log.Errorf("Failed to notify admin about withdrawal %s: %v", w.ID, err)
	}

	return w, nil
}

// ResolveWithdrawal approves or rejects a pending request. Rejection refunds the amount.
func (l *Ledger) ResolveWithdrawal(ctx context.Context, id string, approve bool) (*models.Withdrawal, error) {
	w, err := l.store.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load withdrawal %s: %w", id, err)
	}
	if w == nil {
		return nil, ErrWithdrawalNotFound
	}

	unlock := l.locks.Lock(w.UserID)
	defer unlock()

	// Re-read under the account lock so two admins cannot resolve it twice.
	w, err = l.store.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load withdrawal %s: %w", id, err)
	}
	if w == nil {
		return nil, ErrWithdrawalNotFound
	}
	if w.Status != models.WithdrawalPending {
		return nil, ErrWithdrawalResolved
	}

	resolved := *w
	now := l.now()
	resolved.ResolvedAt = &now

	var refund *models.Account
	if approve {
		resolved.Status = models.WithdrawalApproved
	} else {
		resolved.Status = models.WithdrawalRejected
		acc, err := l.Account(ctx, w.UserID)
		if err != nil {
			return nil, err
		}
		refund = acc.Clone()
		refund.Balance += w.Amount
	}

	if err := l.store.ResolveWithdrawal(ctx, &resolved, refund); err != nil {
		return nil, fmt.Errorf("failed to resolve withdrawal %s: %w", id, err)
	}
	log.Infof("Withdrawal %s of user %d %s", id, w.UserID, resolved.Status)

	if err := l.notifier.WithdrawalResolved(ctx, &resolved); err != nil {
		log.Errorf("Failed to notify user %d about withdrawal %s: %v", w.UserID, id, err)
	}

	return &resolved, nil
}

func (l *Ledger) PendingWithdrawals(ctx context.Context, olderThan time.Duration) ([]models.Withdrawal, error) {
	return l.store.ListPendingWithdrawals(ctx, l.now().Add(-olderThan))
}

// ReferralInfo reports how many users the account invited and the spins it earned.
func (l *Ledger) ReferralInfo(ctx context.Context, userID int64) (invited int64, spins int64, err error) {
	return l.store.ReferralStats(ctx, userID)
}

func (l *Ledger) Stats(ctx context.Context) (*models.Stats, error) {
	stats, err := l.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}
	stats.Channels = l.Channels()
	return stats, nil
}
