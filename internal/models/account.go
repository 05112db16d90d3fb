package models

import (
	"time"
)

// Account is the per-user ledger record. UserID is the Telegram user id.
type Account struct {
	UserID        int64   `gorm:"primaryKey;autoIncrement:false"`
	Username      string  `gorm:"size:255"`
	Balance       int64   `gorm:"not null;default:0"`
	SpinCredits   int64   `gorm:"not null;default:0"`
	LastBonusDate *string `gorm:"size:10"` // YYYY-MM-DD in the bonus time zone
	ReferredBy    *int64  `gorm:"index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Clone returns a deep copy, so callers can mutate without touching stored state.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.LastBonusDate != nil {
		d := *a.LastBonusDate
		c.LastBonusDate = &d
	}
	if a.ReferredBy != nil {
		r := *a.ReferredBy
		c.ReferredBy = &r
	}
	return &c
}
