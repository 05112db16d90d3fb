package models

import (
	"time"
)

// ReferralTransaction records the one-time credit granted for an invited user.
type ReferralTransaction struct {
	ID            uint  `gorm:"primaryKey"`
	ReferrerID    int64 `gorm:"not null;index"`
	InvitedUserID int64 `gorm:"not null;uniqueIndex"`
	Spins         int64 `gorm:"not null"`
	CreatedAt     time.Time
}
