package models

import (
	"time"
)

const (
	WithdrawalPending  = "pending"
	WithdrawalApproved = "approved"
	WithdrawalRejected = "rejected"
)

type Withdrawal struct {
	ID         string `gorm:"primaryKey;size:36"`
	UserID     int64  `gorm:"not null;index"`
	Amount     int64  `gorm:"not null"`
	Status     string `gorm:"size:16;default:'pending';index"`
	CreatedAt  time.Time
	ResolvedAt *time.Time
}
