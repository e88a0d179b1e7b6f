package model

import "time"

// CurrencyBalance is the per-owner virtual currency balance, created lazily
// on first credit. Both balances are non-negative.
type CurrencyBalance struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    *int64    `gorm:"index:idx_balance_owner" json:"user_id,omitempty"`
	ClientID  *string   `gorm:"size:36;index:idx_balance_owner" json:"client_id,omitempty"`
	VCoin     int64     `gorm:"column:vcoin;default:0" json:"vcoin"`
	Ruby      int64     `gorm:"default:0" json:"ruby"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
