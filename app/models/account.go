package models

import "time"

// Account is a user's prepaid credit account. The webhook subsystem only ever
// increases CreditBalance, and only through an atomic storage-level increment.
type Account struct {
	ID            string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	DisplayName   string    `gorm:"type:varchar(150);default:''" json:"display_name"`
	Email         string    `gorm:"type:varchar(200);default:''" json:"email"`
	CreditBalance int64     `gorm:"not null;default:0" json:"credit_balance"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
