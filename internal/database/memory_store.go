package database

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"spin-bot/internal/models"
)

// MemoryStore keeps everything in process memory. Used with DB_DRIVER=memory and in tests.
type MemoryStore struct {
	mu          sync.RWMutex
	accounts    map[int64]*models.Account
	channels    []string
	withdrawals map[string]*models.Withdrawal
	referrals   []models.ReferralTransaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:    make(map[int64]*models.Account),
		withdrawals: make(map[string]*models.Withdrawal),
	}
}

func (s *MemoryStore) GetAccount(_ context.Context, userID int64) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[userID].Clone(), nil
}

func (s *MemoryStore) CreateAccount(_ context.Context, acc *models.Account, referrer *models.Account, rec *models.ReferralTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[acc.UserID]; ok {
		return fmt.Errorf("account %d already exists", acc.UserID)
	}
	if referrer != nil {
		if _, ok := s.accounts[referrer.UserID]; !ok {
			return fmt.Errorf("referrer %d does not exist", referrer.UserID)
		}
	}
	if rec != nil && slices.ContainsFunc(s.referrals, func(r models.ReferralTransaction) bool {
		return r.InvitedUserID == rec.InvitedUserID
	}) {
		return fmt.Errorf("user %d already referred", rec.InvitedUserID)
	}

	now := time.Now()
	acc.CreatedAt, acc.UpdatedAt = now, now
	s.accounts[acc.UserID] = acc.Clone()
	if referrer != nil {
		referrer.UpdatedAt = now
		s.accounts[referrer.UserID] = referrer.Clone()
	}
	if rec != nil {
		rec.ID = uint(len(s.referrals) + 1)
		rec.CreatedAt = now
		s.referrals = append(s.referrals, *rec)
	}
	return nil
}

func (s *MemoryStore) SaveAccount(_ context.Context, acc *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(acc)
}

func (s *MemoryStore) saveLocked(acc *models.Account) error {
	if _, ok := s.accounts[acc.UserID]; !ok {
		return fmt.Errorf("account %d does not exist", acc.UserID)
	}
	acc.UpdatedAt = time.Now()
	s.accounts[acc.UserID] = acc.Clone()
	return nil
}

func (s *MemoryStore) ReferralStats(_ context.Context, referrerID int64) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var invited, spins int64
	for _, r := range s.referrals {
		if r.ReferrerID == referrerID {
			invited++
			spins += r.Spins
		}
	}
	return invited, spins, nil
}

func (s *MemoryStore) Stats(_ context.Context) (*models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.Stats{Accounts: int64(len(s.accounts))}
	for _, acc := range s.accounts {
		stats.TotalBalance += acc.Balance
	}
	for _, w := range s.withdrawals {
		if w.Status == models.WithdrawalPending {
			stats.PendingWithdrawals++
			stats.PendingAmount += w.Amount
		}
	}
	return stats, nil
}

func (s *MemoryStore) ListChannels(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.channels), nil
}

func (s *MemoryStore) SaveChannels(_ context.Context, channels []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = slices.Clone(channels)
	return nil
}

func (s *MemoryStore) CreateWithdrawal(_ context.Context, acc *models.Account, w *models.Withdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.withdrawals[w.ID]; ok {
		return fmt.Errorf("withdrawal %s already exists", w.ID)
	}
	if err := s.saveLocked(acc); err != nil {
		return err
	}
	cp := *w
	s.withdrawals[w.ID] = &cp
	return nil
}

func (s *MemoryStore) GetWithdrawal(_ context.Context, id string) (*models.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.withdrawals[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (s *MemoryStore) ResolveWithdrawal(_ context.Context, w *models.Withdrawal, refund *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.withdrawals[w.ID]
	if !ok || cur.Status != models.WithdrawalPending {
		return fmt.Errorf("update withdrawal %s: %w", w.ID, ErrConflict)
	}
	if refund != nil {
		if err := s.saveLocked(refund); err != nil {
			return err
		}
	}
	cp := *w
	s.withdrawals[w.ID] = &cp
	return nil
}

func (s *MemoryStore) ListPendingWithdrawals(_ context.Context, createdBefore time.Time) ([]models.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Withdrawal
	for _, w := range s.withdrawals {
		if w.Status == models.WithdrawalPending && w.CreatedAt.Before(createdBefore) {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
