package model

import "time"

// LoginRewardTemplate is one day of the 30-day login reward cycle.
type LoginRewardTemplate struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Day          int       `gorm:"uniqueIndex;not null" json:"day"` // 1..30
	RewardVCoin  int       `gorm:"column:reward_vcoin;default:0" json:"reward_vcoin"`
	RewardRuby   int       `gorm:"default:0" json:"reward_ruby"`
	RewardEnergy int       `gorm:"default:0" json:"reward_energy"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// LoginRewardRecord is the per-owner streak record. CurrentDay is advanced
// by the evaluation step, not stored optimistically; LastClaimDate is the
// owner-local calendar date of the last claim.
type LoginRewardRecord struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerKey         string    `gorm:"size:40;uniqueIndex;not null" json:"-"`
	UserID           *int64    `gorm:"index:idx_login_owner" json:"user_id,omitempty"`
	ClientID         *string   `gorm:"size:36;index:idx_login_owner" json:"client_id,omitempty"`
	CurrentDay       int       `gorm:"default:0" json:"current_day"`
	LastClaimDate    *string   `gorm:"size:10" json:"last_claim_date,omitempty"` // YYYY-MM-DD
	TotalDaysClaimed int       `gorm:"default:0" json:"total_days_claimed"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
