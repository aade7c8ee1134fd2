// Package user handles accounts: signup, sessions, profiles and withdrawal.
package user

import (
	"context"
	"errors"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/brewbuds/server/apperr"
	"github.com/brewbuds/server/cache"
	"github.com/brewbuds/server/config"
	mw "github.com/brewbuds/server/middleware"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/service/match"
	"github.com/brewbuds/server/service/paging"
	"github.com/brewbuds/server/service/relationship"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SignupInput struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Nickname  string `json:"nickname" binding:"required"`
	Gender    string `json:"gender"`
	BirthYear int    `json:"birth_year"`
}

// UpdateInput changes only the fields that are set.
type UpdateInput struct {
	Nickname           *string             `json:"nickname"`
	ProfileImage       *string             `json:"profile_image"`
	Gender             *string             `json:"gender"`
	BirthYear          *int                `json:"birth_year"`
	Introduction       *string             `json:"introduction"`
	ProfileLink        *string             `json:"profile_link"`
	CoffeeLife         *model.CoffeeLife   `json:"coffee_life"`
	PreferredBeanTaste *model.TasteProfile `json:"preferred_bean_taste"`
}

// Session is an issued login.
type Session struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Me is the signed-in user's own profile.
type Me struct {
	*model.User
	Detail model.UserDetail `json:"detail"`
}

// Profile is another user's public profile with relationship flags.
type Profile struct {
	model.User
	Introduction   string           `json:"introduction"`
	ProfileLink    string           `json:"profile_link"`
	CoffeeLife     model.CoffeeLife `json:"coffee_life"`
	IsCertificated bool             `json:"is_certificated"`
	Followers      int64            `json:"follower_cnt"`
	Following      int64            `json:"following_cnt"`
	Records        int64            `json:"tasted_record_cnt"`
	Posts          int64            `json:"post_cnt"`
	IsFollowing    bool             `json:"is_following"`
	IsFollower     bool             `json:"is_follower"`
	IsBlocking     bool             `json:"is_blocking"`
}

type Service struct {
	db     *gorm.DB
	cache  cache.Cache
	rel    *relationship.Service
	sec    config.SecurityConfig
	logger *zap.Logger
}

func New(db *gorm.DB, c cache.Cache, rel *relationship.Service, sec config.SecurityConfig, logger *zap.Logger) *Service {
	return &Service{db: db, cache: c, rel: rel, sec: sec, logger: logger}
}

func validNickname(n string) (string, error) {
	n = strings.TrimSpace(n)
	if l := utf8.RuneCountInString(n); l < 2 || l > 32 {
		return "", apperr.Validation("nickname must be 2 to 32 characters")
	}
	return n, nil
}

func (svc *Service) nicknameTaken(ctx context.Context, nickname string, except int64) (bool, error) {
	var n int64
	err := svc.db.WithContext(ctx).Model(&model.User{}).
		Where("nickname = ? AND id <> ?", nickname, except).Count(&n).Error
	return n > 0, err
}

// NicknameAvailable reports whether nickname is valid and unused.
func (svc *Service) NicknameAvailable(ctx context.Context, nickname string) (bool, error) {
	nickname, err := validNickname(nickname)
	if err != nil {
		return false, err
	}
	taken, err := svc.nicknameTaken(ctx, nickname, 0)
	return !taken, err
}

// Signup creates an app account with an empty profile detail.
func (svc *Service) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(in.Email))
	if err != nil {
		return nil, apperr.Validation("invalid email")
	}
	email := strings.ToLower(addr.Address)
	if l := len(in.Password); l < 8 || l > 64 {
		return nil, apperr.Validation("password must be 8 to 64 characters")
	}
	nickname, err := validNickname(in.Nickname)
	if err != nil {
		return nil, err
	}

	var n int64
	if err := svc.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, apperr.Conflict("email already registered")
	}
	taken, err := svc.nicknameTaken(ctx, nickname, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.Conflict("nickname already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		Email:        email,
		Nickname:     nickname,
		PasswordHash: string(hash),
		LoginType:    model.LoginTypeApp,
		Gender:       in.Gender,
		BirthYear:    in.BirthYear,
		IsActive:     true,
	}
	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("email or nickname already taken")
			}
			return err
		}
		return tx.Create(&model.UserDetail{
			UserID:             u.ID,
			CoffeeLife:         datatypes.NewJSONType(model.CoffeeLife{}),
			PreferredBeanTaste: datatypes.NewJSONType(model.TasteProfile{}),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (svc *Service) issue(ctx context.Context, userID int64) (string, error) {
	token, err := mw.GenerateToken(userID, svc.sec.JWTSecret, svc.sec.JWTTTLH)
	if err != nil {
		return "", err
	}
	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := svc.cache.Set(cacheCtx, cache.SessionKey(token), strconv.FormatInt(userID, 10), svc.sec.JWTTTLH); err != nil {
		return "", err
	}
	return token, nil
}

// Login checks the password and opens a session.
func (svc *Service) Login(ctx context.Context, email, password, ip string) (*Session, error) {
	var u model.User
	err := svc.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	if !u.IsActive {
		return nil, apperr.Forbidden("account withdrawn")
	}

	token, err := svc.issue(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if err := svc.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", u.ID).Updates(map[string]interface{}{
		"last_login_at": now,
		"last_login_ip": ip,
	}).Error; err != nil {
		svc.logger.Warn("last login not recorded", zap.Int64("user_id", u.ID), zap.Error(err))
	}
	u.LastLoginAt = &now
	u.LastLoginIP = ip
	return &Session{Token: token, User: &u}, nil
}

// Logout ends the session of token.
func (svc *Service) Logout(ctx context.Context, token string) error {
	return svc.cache.Del(ctx, cache.SessionKey(token))
}

// Refresh replaces oldToken with a new session.
func (svc *Service) Refresh(ctx context.Context, userID int64, oldToken string) (string, error) {
	var u model.User
	err := svc.db.WithContext(ctx).Select("id", "is_active").First(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !u.IsActive) {
		return "", apperr.Unauthorized("account is not active")
	}
	if err != nil {
		return "", err
	}
	if err := svc.Logout(ctx, oldToken); err != nil {
		return "", err
	}
	return svc.issue(ctx, userID)
}

func (svc *Service) active(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := svc.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (svc *Service) detail(ctx context.Context, userID int64) (model.UserDetail, error) {
	d := model.UserDetail{
		UserID:             userID,
		CoffeeLife:         datatypes.NewJSONType(model.CoffeeLife{}),
		PreferredBeanTaste: datatypes.NewJSONType(model.TasteProfile{}),
	}
	err := svc.db.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&d).Error
	return d, err
}

// Me returns the signed-in user's own profile.
func (svc *Service) Me(ctx context.Context, userID int64) (*Me, error) {
	u, err := svc.active(ctx, userID)
	if err != nil {
		return nil, err
	}
	d, err := svc.detail(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Me{User: u, Detail: d}, nil
}

func validTaste(t model.TasteProfile) error {
	for name, v := range map[string]int{"body": t.Body, "acidity": t.Acidity, "bitterness": t.Bitterness, "sweetness": t.Sweetness} {
		if v < 1 || v > 5 {
			return apperr.Validation("preferred %s must be between 1 and 5", name)
		}
	}
	return nil
}

// UpdateMe edits the user row and the profile detail.
func (svc *Service) UpdateMe(ctx context.Context, userID int64, in UpdateInput) (*Me, error) {
	if _, err := svc.active(ctx, userID); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if in.Nickname != nil {
		nickname, err := validNickname(*in.Nickname)
		if err != nil {
			return nil, err
		}
		taken, err := svc.nicknameTaken(ctx, nickname, userID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperr.Conflict("nickname already taken")
		}
		fields["nickname"] = nickname
	}
	if in.ProfileImage != nil {
		fields["profile_image"] = *in.ProfileImage
	}
	if in.Gender != nil {
		fields["gender"] = *in.Gender
	}
	if in.BirthYear != nil {
		if y := *in.BirthYear; y != 0 && (y < 1900 || y > time.Now().Year()) {
			return nil, apperr.Validation("invalid birth_year")
		}
		fields["birth_year"] = *in.BirthYear
	}
	if in.PreferredBeanTaste != nil {
		if err := validTaste(*in.PreferredBeanTaste); err != nil {
			return nil, err
		}
	}

	d, err := svc.detail(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Introduction != nil {
		d.Introduction = *in.Introduction
	}
	if in.ProfileLink != nil {
		d.ProfileLink = *in.ProfileLink
	}
	if in.CoffeeLife != nil {
		d.CoffeeLife = datatypes.NewJSONType(*in.CoffeeLife)
	}
	if in.PreferredBeanTaste != nil {
		d.PreferredBeanTaste = datatypes.NewJSONType(*in.PreferredBeanTaste)
	}

	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(fields) > 0 {
			if err := tx.Model(&model.User{}).Where("id = ?", userID).Updates(fields).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return apperr.Conflict("nickname already taken")
				}
				return err
			}
		}
		return tx.Save(&d).Error
	})
	if err != nil {
		return nil, err
	}
	return svc.Me(ctx, userID)
}

// Profile returns another user's public profile as seen by viewer.
func (svc *Service) Profile(ctx context.Context, viewer, id int64) (*Profile, error) {
	u, err := svc.active(ctx, id)
	if err != nil {
		return nil, err
	}
	blockedBy, err := svc.rel.IsBlocked(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	if blockedBy {
		return nil, apperr.NotFound("user not found")
	}
	d, err := svc.detail(ctx, id)
	if err != nil {
		return nil, err
	}
	p := &Profile{
		User:           u.Public(),
		Introduction:   d.Introduction,
		ProfileLink:    d.ProfileLink,
		CoffeeLife:     d.CoffeeLife.Data(),
		IsCertificated: d.IsCertificated,
	}
	if p.Followers, p.Following, err = svc.rel.Counts(ctx, id); err != nil {
		return nil, err
	}
	db := svc.db.WithContext(ctx)
	records := db.Model(&model.TastedRecord{}).Where("author_id = ?", id)
	if viewer != id {
		records = records.Where("is_private = ?", false)
	}
	if err := records.Count(&p.Records).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Post{}).Where("author_id = ?", id).Count(&p.Posts).Error; err != nil {
		return nil, err
	}
	if viewer != 0 && viewer != id {
		if p.IsFollowing, err = svc.rel.IsFollowing(ctx, viewer, id); err != nil {
			return nil, err
		}
		if p.IsFollower, err = svc.rel.IsFollowing(ctx, id, viewer); err != nil {
			return nil, err
		}
		if p.IsBlocking, err = svc.rel.IsBlocked(ctx, viewer, id); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Search finds active users by nickname, hiding blocked users.
func (svc *Service) Search(ctx context.Context, viewer int64, term string, req paging.Request) (paging.Result[model.User], error) {
	req = req.Normalize()
	term = strings.TrimSpace(term)
	if term == "" {
		return paging.Result[model.User]{}, apperr.Validation("q is required")
	}
	hidden, err := svc.rel.HiddenUserIDs(ctx, viewer)
	if err != nil {
		return paging.Result[model.User]{}, err
	}
	q := svc.db.WithContext(ctx).Model(&model.User{}).
		Where("is_active = ? AND nickname"+match.Like, true, match.Contains(term))
	if len(hidden) > 0 {
		q = q.Where("id NOT IN ?", hidden)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return paging.Result[model.User]{}, err
	}
	var users []model.User
	if err := q.Order("nickname ASC, id ASC").Offset(req.Offset()).Limit(req.Size).Find(&users).Error; err != nil {
		return paging.Result[model.User]{}, err
	}
	for i := range users {
		users[i] = users[i].Public()
	}
	return paging.New(users, total, req), nil
}

// Withdraw deactivates the account. Open sessions run until they expire but
// the account can no longer log in, and its devices stop receiving pushes.
func (svc *Service) Withdraw(ctx context.Context, userID int64) error {
	return svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.User{}).Where("id = ? AND is_active = ?", userID, true).Update("is_active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("user not found")
		}
		return tx.Where("user_id = ?", userID).Delete(&model.PushDevice{}).Error
	})
}
