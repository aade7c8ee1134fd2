package model

import "time"

// Bean types.
const (
	BeanTypeSingle = "single"
	BeanTypeBlend  = "blend"
)

// Bean is a coffee bean, either from the official catalogue or created by a
// user while writing a tasted record.
type Bean struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string     `gorm:"index;size:128;not null" json:"name"`
	BeanType      string     `gorm:"size:16;not null" json:"bean_type"`
	IsDecaf       bool       `gorm:"not null" json:"is_decaf"`
	OriginCountry string     `gorm:"size:128" json:"origin_country"`
	Region        string     `gorm:"size:128" json:"region"`
	Roastery      string     `gorm:"size:128" json:"roastery"`
	RoastingPoint int        `json:"roasting_point"` // 0 unknown, 1 light .. 5 dark
	Process       string     `gorm:"size:64" json:"process"`
	Variety       string     `gorm:"size:128" json:"variety"`
	Extraction    string     `gorm:"size:64" json:"extraction"`
	Flavor        string     `gorm:"size:255" json:"flavor"`
	ImageURL      string     `gorm:"size:255" json:"image_url"`
	IsOfficial    bool       `gorm:"not null;index" json:"is_official"`
	IsUserCreated bool       `gorm:"not null" json:"is_user_created"`
	CreatorID     *int64     `json:"-"`
	AvgStar       float64    `gorm:"not null" json:"avg_star"`
	RecordCount   int64      `gorm:"not null;index" json:"record_count"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	Taste         *BeanTaste `gorm:"foreignKey:BeanID" json:"taste,omitempty"`
}

// BeanTaste is the official taste profile of a bean.
type BeanTaste struct {
	BeanID     int64  `gorm:"primaryKey" json:"-"`
	Flavor     string `gorm:"size:255" json:"flavor"`
	Body       int    `json:"body"`
	Acidity    int    `json:"acidity"`
	Bitterness int    `json:"bitterness"`
	Sweetness  int    `json:"sweetness"`
}

// Profile returns the taste axes.
func (t BeanTaste) Profile() TasteProfile {
	return TasteProfile{Body: t.Body, Acidity: t.Acidity, Bitterness: t.Bitterness, Sweetness: t.Sweetness}
}
