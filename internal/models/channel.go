package models

// Channel is one entry of the required-subscription allow-list.
type Channel struct {
	ID       uint   `gorm:"primaryKey"`
	Username string `gorm:"size:255;uniqueIndex;not null"`
	Position int    `gorm:"not null;index"`
}
