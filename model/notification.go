package model

import "time"

// Notification types.
const (
	NotifyLike    = "like"
	NotifyComment = "comment"
	NotifyReply   = "reply"
	NotifyFollow  = "follow"
	NotifyNotice  = "notice"
)

// Notification is an in-app notification delivered to UserID.
type Notification struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"index:idx_notification_user;not null" json:"-"`
	ActorID    int64     `json:"actor_id"`
	Type       string    `gorm:"size:16;not null" json:"type"`
	Message    string    `gorm:"size:255;not null" json:"message"`
	ObjectType string    `gorm:"size:16" json:"object_type"`
	ObjectID   int64     `json:"object_id"`
	IsRead     bool      `gorm:"not null;index:idx_notification_user" json:"is_read"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// PushDevice is a device token registered for push delivery.
type PushDevice struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64     `gorm:"index;not null" json:"-"`
	Token      string    `gorm:"uniqueIndex;size:255;not null" json:"token"`
	DeviceType string    `gorm:"size:16" json:"device_type"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NotificationSetting holds per-user opt-ins. A missing row means all on.
type NotificationSetting struct {
	UserID    int64 `gorm:"primaryKey" json:"-"`
	Like      bool  `gorm:"not null" json:"like"`
	Comment   bool  `gorm:"not null" json:"comment"`
	Follow    bool  `gorm:"not null" json:"follow"`
	Marketing bool  `gorm:"not null" json:"marketing"`
}

// DefaultNotificationSetting is used until the user saves their own.
func DefaultNotificationSetting(userID int64) NotificationSetting {
	return NotificationSetting{UserID: userID, Like: true, Comment: true, Follow: true, Marketing: true}
}

// Allows reports whether a notification of type t may be delivered.
func (s NotificationSetting) Allows(t string) bool {
	switch t {
	case NotifyLike:
		return s.Like
	case NotifyComment, NotifyReply:
		return s.Comment
	case NotifyFollow:
		return s.Follow
	case NotifyNotice:
		return s.Marketing
	}
	return true
}

// Event is an app banner/promotion shown for a period of time.
type Event struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Title     string    `gorm:"size:128;not null" json:"title"`
	Content   string    `gorm:"type:text" json:"content"`
	ImageURL  string    `gorm:"size:255" json:"image_url"`
	Link      string    `gorm:"size:255" json:"link"`
	StartAt   time.Time `gorm:"index;not null" json:"start_at"`
	EndAt     time.Time `gorm:"index;not null" json:"end_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
