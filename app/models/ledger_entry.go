package models

import "time"

// Ledger entry types and reference types. RefTypeShopierPayment identifies
// rows written by the Shopier webhook.
const (
	LedgerTypePurchase    = "purchase"
	RefTypeShopierPayment = "shopier_payment"
)

// LedgerEntry is the append-only audit record of a balance-affecting event.
// The unique (ref_type, ref_id) index is the idempotency guarantee for webhook
// deliveries: at most one row can ever exist per provider order reference.
type LedgerEntry struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Type         string    `gorm:"type:varchar(20);not null" json:"type"`
	Amount       float64   `gorm:"type:decimal(10,2);not null" json:"amount"`
	DeltaCredits int64     `gorm:"not null" json:"delta_credits"`
	RefType      string    `gorm:"type:varchar(40);not null;index:ux_ledger_entries_ref,unique,priority:1" json:"ref_type"`
	RefID        string    `gorm:"type:varchar(191);not null;index:ux_ledger_entries_ref,unique,priority:2" json:"ref_id"`
	Reason       string    `gorm:"type:varchar(255);default:''" json:"reason"`
	Description  string    `gorm:"type:text" json:"description"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
