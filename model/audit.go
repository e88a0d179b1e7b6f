package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records one reward operation (claim, credit) for support
// follow-up. Written asynchronously in batches by the audit service.
type AuditLog struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID    string         `gorm:"size:64;index" json:"trace_id"`
	UserID     *int64         `gorm:"index" json:"user_id,omitempty"`
	ClientID   *string        `gorm:"size:36;index" json:"client_id,omitempty"`
	Action     string         `gorm:"size:64;index;not null" json:"action"`
	Request    datatypes.JSON `json:"request"`
	Response   datatypes.JSON `json:"response"`
	Error      string         `gorm:"size:255" json:"error"`
	IP         string         `gorm:"size:45" json:"ip"`
	DurationMs int            `json:"duration_ms"`
	CreatedAt  time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}
