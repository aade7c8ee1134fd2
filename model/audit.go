package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records moderation-relevant actions.
type AuditLog struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID    string         `gorm:"index:idx_audit_trace;size:36" json:"trace_id"`
	UserID     *int64         `gorm:"index:idx_audit_user" json:"user_id"`
	Action     string         `gorm:"size:64;not null" json:"action"`
	TargetType string         `gorm:"size:16" json:"target_type"`
	TargetID   int64          `json:"target_id"`
	Detail     datatypes.JSON `json:"detail"`
	IP         string         `gorm:"size:45" json:"ip"`
	CreatedAt  time.Time      `gorm:"index:idx_audit_created;autoCreateTime:milli" json:"created_at"`
}
