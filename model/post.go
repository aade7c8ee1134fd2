package model

import "time"

// Post subjects.
const (
	SubjectNormal   = "normal"
	SubjectCafe     = "cafe"
	SubjectBean     = "bean"
	SubjectWorry    = "worry"
	SubjectGear     = "gear"
	SubjectQuestion = "question"
)

// Subjects lists every valid post subject.
var Subjects = []string{SubjectNormal, SubjectCafe, SubjectBean, SubjectWorry, SubjectGear, SubjectQuestion}

// ValidSubject reports whether s is a known post subject.
func ValidSubject(s string) bool {
	for _, v := range Subjects {
		if v == s {
			return true
		}
	}
	return false
}

// Post is a general discussion article, optionally linked to tasted records.
type Post struct {
	ID            int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	AuthorID      int64          `gorm:"index:idx_post_author;not null" json:"author_id"`
	Subject       string         `gorm:"size:16;index:idx_post_subject;not null" json:"subject"`
	Title         string         `gorm:"size:128;not null" json:"title"`
	Content       string         `gorm:"type:text;not null" json:"content"`
	Tag           string         `gorm:"size:255" json:"tag"`
	ViewCount     int64          `gorm:"not null" json:"view_count"`
	LikeCount     int64          `gorm:"not null" json:"like_count"`
	CreatedAt     time.Time      `gorm:"autoCreateTime;index:idx_post_created" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	Author        *User          `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	TastedRecords []TastedRecord `gorm:"many2many:post_tasted_records;" json:"tasted_records"`
	Photos        []Photo        `gorm:"foreignKey:PostID" json:"photos"`
}

// Photo is an uploaded image. It is free until attached to a post or record.
type Photo struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UploaderID int64     `gorm:"index;not null" json:"-"`
	PostID     *int64    `gorm:"index" json:"-"`
	RecordID   *int64    `gorm:"index" json:"-"`
	ObjectKey  string    `gorm:"size:255;not null" json:"-"`
	URL        string    `gorm:"size:512;not null" json:"url"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
