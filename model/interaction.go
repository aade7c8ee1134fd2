package model

import "time"

// Object types shared by polymorphic rows (likes, notes, comments, reports).
const (
	ObjectPost    = "post"
	ObjectRecord  = "tasted_record"
	ObjectBean    = "bean"
	ObjectComment = "comment"
	ObjectUser    = "user"
)

// Comment is attached to a post or tasted record. Replies go one level deep.
type Comment struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ObjectType string    `gorm:"size:16;index:idx_comment_object;not null" json:"object_type"`
	ObjectID   int64     `gorm:"index:idx_comment_object;not null" json:"object_id"`
	AuthorID   int64     `gorm:"index;not null" json:"author_id"`
	ParentID   *int64    `gorm:"index" json:"parent_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	LikeCount  int64     `gorm:"not null" json:"like_count"`
	IsDeleted  bool      `gorm:"not null" json:"is_deleted"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	Author     *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Replies    []Comment `gorm:"foreignKey:ParentID" json:"replies,omitempty"`
}

// Like is one user's like on a post, tasted record or comment.
type Like struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"uniqueIndex:idx_like;not null" json:"user_id"`
	ObjectType string    `gorm:"uniqueIndex:idx_like;index:idx_like_object;size:16;not null" json:"object_type"`
	ObjectID   int64     `gorm:"uniqueIndex:idx_like;index:idx_like_object;not null" json:"object_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Note is a user's saved reference to a post, tasted record or bean.
type Note struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"uniqueIndex:idx_note;not null" json:"user_id"`
	ObjectType string    `gorm:"uniqueIndex:idx_note;size:16;not null" json:"object_type"`
	ObjectID   int64     `gorm:"uniqueIndex:idx_note;not null" json:"object_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// Report statuses.
const (
	ReportPending  = "pending"
	ReportResolved = "resolved"
	ReportRejected = "rejected"
)

// Report is a user's complaint about a piece of content or another user.
type Report struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ReporterID int64     `gorm:"index;not null" json:"reporter_id"`
	ObjectType string    `gorm:"size:16;index:idx_report_object;not null" json:"object_type"`
	ObjectID   int64     `gorm:"index:idx_report_object;not null" json:"object_id"`
	Reason     string    `gorm:"size:255;not null" json:"reason"`
	Status     string    `gorm:"size:16;index;not null" json:"status"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
