package model

import "time"

// PlayerStats is the per-owner progression state, created lazily with
// defaults level 1 / 0 xp / 100 energy. Level is always derived from XP.
type PlayerStats struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      *int64    `gorm:"index:idx_stats_owner" json:"user_id,omitempty"`
	ClientID    *string   `gorm:"size:36;index:idx_stats_owner" json:"client_id,omitempty"`
	Level       int       `gorm:"default:1" json:"level"`
	XP          int64     `gorm:"column:xp;default:0" json:"xp"`
	Energy      int       `gorm:"default:100" json:"energy"`
	LoginStreak int       `gorm:"default:0" json:"login_streak"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
