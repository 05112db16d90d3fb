package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"spin-bot/internal/models"
)

// ErrConflict is returned when a guarded update matched no row.
var ErrConflict = errors.New("record was changed concurrently")

// GormStore persists the ledger through gorm (postgres in production, sqlite locally).
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) GetAccount(ctx context.Context, userID int64) (*models.Account, error) {
	var acc models.Account
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *GormStore) CreateAccount(ctx context.Context, acc *models.Account, referrer *models.Account, rec *models.ReferralTransaction) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(acc).Error; err != nil {
			return fmt.Errorf("insert account: %w", err)
		}
		if referrer == nil {
			return nil
		}
		if err := saveAccount(tx, referrer); err != nil {
			return err
		}
		if rec != nil {
			if err := tx.Create(rec).Error; err != nil {
				return fmt.Errorf("insert referral: %w", err)
			}
		}
		return nil
	})
}

func (s *GormStore) SaveAccount(ctx context.Context, acc *models.Account) error {
	return saveAccount(s.DB.WithContext(ctx), acc)
}

func saveAccount(tx *gorm.DB, acc *models.Account) error {
	res := tx.Model(&models.Account{}).Where("user_id = ?", acc.UserID).Updates(map[string]any{
		"username":        acc.Username,
		"balance":         acc.Balance,
		"spin_credits":    acc.SpinCredits,
		"last_bonus_date": acc.LastBonusDate,
		"referred_by":     acc.ReferredBy,
	})
	if res.Error != nil {
		return fmt.Errorf("update account %d: %w", acc.UserID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update account %d: %w", acc.UserID, gorm.ErrRecordNotFound)
	}
	return nil
}

func (s *GormStore) ReferralStats(ctx context.Context, referrerID int64) (int64, int64, error) {
	var row struct {
		Invited int64
		Spins   int64
	}
	err := s.DB.WithContext(ctx).Model(&models.ReferralTransaction{}).
		Select("COUNT(*) AS invited, COALESCE(SUM(spins), 0) AS spins").
		Where("referrer_id = ?", referrerID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Invited, row.Spins, nil
}

func (s *GormStore) Stats(ctx context.Context) (*models.Stats, error) {
	db := s.DB.WithContext(ctx)
	stats := &models.Stats{}

	var accounts struct {
		Count int64
		Total int64
	}
	if err := db.Model(&models.Account{}).
		Select("COUNT(*) AS count, COALESCE(SUM(balance), 0) AS total").
		Scan(&accounts).Error; err != nil {
		return nil, err
	}
	stats.Accounts = accounts.Count
	stats.TotalBalance = accounts.Total

	var pending struct {
		Count int64
		Total int64
	}
	if err := db.Model(&models.Withdrawal{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Where("status = ?", models.WithdrawalPending).
		Scan(&pending).Error; err != nil {
		return nil, err
	}
	stats.PendingWithdrawals = pending.Count
	stats.PendingAmount = pending.Total

	return stats, nil
}

func (s *GormStore) ListChannels(ctx context.Context) ([]string, error) {
	var channels []string
	err := s.DB.WithContext(ctx).Model(&models.Channel{}).Order("position").Pluck("username", &channels).Error
	if err != nil {
		return nil, err
	}
	return channels, nil
}

// SaveChannels rewrites the whole allow-list.
func (s *GormStore) SaveChannels(ctx context.Context, channels []string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Channel{}).Error; err != nil {
			return fmt.Errorf("clear channels: %w", err)
		}
		if len(channels) == 0 {
			return nil
		}
		rows := make([]models.Channel, len(channels))
		for i, ch := range channels {
			rows[i] = models.Channel{Username: ch, Position: i}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert channels: %w", err)
		}
		return nil
	})
}

func (s *GormStore) CreateWithdrawal(ctx context.Context, acc *models.Account, w *models.Withdrawal) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveAccount(tx, acc); err != nil {
			return err
		}
		if err := tx.Create(w).Error; err != nil {
			return fmt.Errorf("insert withdrawal: %w", err)
		}
		return nil
	})
}

func (s *GormStore) GetWithdrawal(ctx context.Context, id string) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *GormStore) ResolveWithdrawal(ctx context.Context, w *models.Withdrawal, refund *models.Account) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Withdrawal{}).
			Where("id = ? AND status = ?", w.ID, models.WithdrawalPending).
			Updates(map[string]any{"status": w.Status, "resolved_at": w.ResolvedAt})
		if res.Error != nil {
			return fmt.Errorf("update withdrawal %s: %w", w.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("update withdrawal %s: %w", w.ID, ErrConflict)
		}
		if refund != nil {
			return saveAccount(tx, refund)
		}
		return nil
	})
}

func (s *GormStore) ListPendingWithdrawals(ctx context.Context, createdBefore time.Time) ([]models.Withdrawal, error) {
	var out []models.Withdrawal
	err := s.DB.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.WithdrawalPending, createdBefore).
		Order("created_at").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
