package model

import (
	"time"

	"gorm.io/datatypes"
)

// Login providers. Only LoginTypeApp has a password.
const (
	LoginTypeApp   = "app"
	LoginTypeKakao = "kakao"
	LoginTypeNaver = "naver"
	LoginTypeApple = "apple"
)

// User is a BrewBuds account.
type User struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string     `gorm:"uniqueIndex;size:128;not null" json:"email,omitempty"`
	Nickname     string     `gorm:"uniqueIndex;size:32;not null" json:"nickname"`
	PasswordHash string     `gorm:"size:64" json:"-"`
	LoginType    string     `gorm:"size:16;not null" json:"login_type,omitempty"`
	ProfileImage string     `gorm:"size:255" json:"profile_image"`
	Gender       string     `gorm:"size:8" json:"gender,omitempty"`
	BirthYear    int        `json:"birth_year,omitempty"`
	IsActive     bool       `gorm:"not null" json:"-"`
	IsStaff      bool       `gorm:"not null" json:"-"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLoginAt  *time.Time `json:"-"`
	LastLoginIP  string     `gorm:"size:45" json:"-"`
}

// Public strips private fields for embedding in other users' views.
func (u User) Public() User {
	return User{
		ID:           u.ID,
		Nickname:     u.Nickname,
		ProfileImage: u.ProfileImage,
		CreatedAt:    u.CreatedAt,
	}
}

// CoffeeLife flags which coffee activities a user is into.
type CoffeeLife struct {
	CafeTour         bool `json:"cafe_tour"`
	CoffeeExtraction bool `json:"coffee_extraction"`
	CoffeeStudy      bool `json:"coffee_study"`
	CafeAlba         bool `json:"cafe_alba"`
	CafeWork         bool `json:"cafe_work"`
	CafeOperation    bool `json:"cafe_operation"`
}

// TasteProfile scores the four taste axes, each 0..5.
type TasteProfile struct {
	Body       int `json:"body"`
	Acidity    int `json:"acidity"`
	Bitterness int `json:"bitterness"`
	Sweetness  int `json:"sweetness"`
}

// IsZero reports whether no axis was set.
func (t TasteProfile) IsZero() bool {
	return t.Body == 0 && t.Acidity == 0 && t.Bitterness == 0 && t.Sweetness == 0
}

// Vector returns the axes in the order body, acidity, bitterness, sweetness.
func (t TasteProfile) Vector() []float64 {
	return []float64{float64(t.Body), float64(t.Acidity), float64(t.Bitterness), float64(t.Sweetness)}
}

// UserDetail holds profile fields edited from the "my page" screen.
type UserDetail struct {
	UserID             int64                            `gorm:"primaryKey" json:"-"`
	Introduction       string                           `gorm:"type:text" json:"introduction"`
	ProfileLink        string                           `gorm:"size:255" json:"profile_link"`
	CoffeeLife         datatypes.JSONType[CoffeeLife]   `json:"coffee_life"`
	PreferredBeanTaste datatypes.JSONType[TasteProfile] `json:"preferred_bean_taste"`
	IsCertificated     bool                             `gorm:"not null" json:"is_certificated"`
}
