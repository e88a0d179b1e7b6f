package model

import "time"

// MilestoneClaim records a one-time relationship milestone reward claim
// for (owner, character, milestone level).
type MilestoneClaim struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	// OwnerKey denormalizes Owner.Key(): the unique index must sit on a
	// non-null column, or every owner's NULL side makes rows distinct.
	OwnerKey  string     `gorm:"size:40;uniqueIndex:uniq_milestone_claim;not null" json:"-"`
	UserID    *int64     `gorm:"index:idx_milestone_owner" json:"user_id,omitempty"`
	ClientID  *string    `gorm:"size:36;index:idx_milestone_owner" json:"client_id,omitempty"`
	Character string     `gorm:"size:64;uniqueIndex:uniq_milestone_claim;not null" json:"character"`
	Milestone int        `gorm:"uniqueIndex:uniq_milestone_claim;not null" json:"milestone"`
	Claimed   bool       `gorm:"default:false" json:"claimed"`
	ClaimedAt *time.Time `json:"claimed_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
