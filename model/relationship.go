package model

import "time"

// Relationship types.
const (
	RelationFollow = "follow"
	RelationBlock  = "block"
)

// Relationship is a directed follow or block edge between two users.
type Relationship struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	FromUserID int64     `gorm:"uniqueIndex:idx_relationship;not null" json:"from_user_id"`
	ToUserID   int64     `gorm:"uniqueIndex:idx_relationship;index:idx_relationship_to;not null" json:"to_user_id"`
	Type       string    `gorm:"uniqueIndex:idx_relationship;size:8;not null" json:"type"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
