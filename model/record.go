package model

import "time"

// TastedRecord is a user's tasting journal entry for a bean.
type TastedRecord struct {
	ID          int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	AuthorID    int64            `gorm:"index:idx_record_author;not null" json:"author_id"`
	BeanID      int64            `gorm:"index:idx_record_bean;not null" json:"bean_id"`
	Content     string           `gorm:"type:text;not null" json:"content"`
	Tag         string           `gorm:"size:255" json:"tag"`
	IsPrivate   bool             `gorm:"not null" json:"is_private"`
	ViewCount   int64            `gorm:"not null" json:"view_count"`
	LikeCount   int64            `gorm:"not null" json:"like_count"`
	CreatedAt   time.Time        `gorm:"autoCreateTime;index:idx_record_created" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	Author      *User            `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Bean        *Bean            `gorm:"foreignKey:BeanID" json:"bean,omitempty"`
	TasteReview *BeanTasteReview `gorm:"foreignKey:RecordID" json:"taste_review,omitempty"`
	Photos      []Photo          `gorm:"foreignKey:RecordID" json:"photos"`
}

// BeanTasteReview is the structured part of a tasted record.
type BeanTasteReview struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"-"`
	RecordID   int64      `gorm:"uniqueIndex;not null" json:"-"`
	Star       float64    `gorm:"not null" json:"star"`
	Flavor     string     `gorm:"size:255" json:"flavor"`
	Body       int        `json:"body"`
	Acidity    int        `json:"acidity"`
	Bitterness int        `json:"bitterness"`
	Sweetness  int        `json:"sweetness"`
	Place      string     `gorm:"size:128" json:"place"`
	TastedAt   *time.Time `json:"tasted_at"`
}
