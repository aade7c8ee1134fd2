package user

import (
	"context"
	"testing"
	"time"

	"github.com/brewbuds/server/apperr"
	"github.com/brewbuds/server/cache"
	"github.com/brewbuds/server/config"
	mw "github.com/brewbuds/server/middleware"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/service/notify"
	"github.com/brewbuds/server/service/paging"
	"github.com/brewbuds/server/service/relationship"
	"github.com/brewbuds/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const secret = "test-secret"

func newService(t *testing.T) (*Service, *gorm.DB, cache.Cache, *relationship.Service) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, _ := testutil.SetupTestCache(t)
	rel := relationship.New(db, &notify.Recorder{}, zap.NewNop())
	sec := config.SecurityConfig{JWTSecret: secret, JWTTTLH: time.Hour}
	return New(db, c, rel, sec, zap.NewNop()), db, c, rel
}

func signup(t *testing.T, svc *Service, email, nickname string) *model.User {
	t.Helper()
	u, err := svc.Signup(context.Background(), SignupInput{Email: email, Password: "password1", Nickname: nickname})
	require.NoError(t, err)
	return u
}

func TestSignup(t *testing.T) {
	svc, db, _, _ := newService(t)
	ctx := context.Background()

	u := signup(t, svc, "Alice@Example.com", "alice")
	assert.Equal(t, "alice@example.com", u.Email)
	assert.True(t, u.IsActive)
	assert.NotEqual(t, "password1", u.PasswordHash)

	var d model.UserDetail
	require.NoError(t, db.First(&d, "user_id = ?", u.ID).Error)

	_, err := svc.Signup(ctx, SignupInput{Email: "alice@example.com", Password: "password1", Nickname: "other"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = svc.Signup(ctx, SignupInput{Email: "new@example.com", Password: "password1", Nickname: "alice"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestSignup_Validation(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()
	cases := []SignupInput{
		{Email: "not-an-email", Password: "password1", Nickname: "alice"},
		{Email: "a@example.com", Password: "short", Nickname: "alice"},
		{Email: "a@example.com", Password: "password1", Nickname: "a"},
	}
	for _, in := range cases {
		_, err := svc.Signup(ctx, in)
		assert.ErrorIs(t, err, apperr.ErrValidation, in)
	}
}

func TestLoginLogoutRefresh(t *testing.T) {
	svc, db, c, _ := newService(t)
	ctx := context.Background()
	u := signup(t, svc, "alice@example.com", "alice")

	_, err := svc.Login(ctx, "alice@example.com", "wrong-pass", "127.0.0.1")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = svc.Login(ctx, "nobody@example.com", "password1", "127.0.0.1")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	s, err := svc.Login(ctx, "ALICE@example.com", "password1", "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, s.User.ID)
	claims, err := mw.ParseToken(s.Token, secret)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	ok, _ := c.Exists(ctx, cache.SessionKey(s.Token))
	assert.True(t, ok)

	var stored model.User
	require.NoError(t, db.First(&stored, u.ID).Error)
	assert.Equal(t, "127.0.0.1", stored.LastLoginIP)
	assert.NotNil(t, stored.LastLoginAt)

	fresh, err := svc.Refresh(ctx, u.ID, s.Token)
	require.NoError(t, err)
	ok, _ = c.Exists(ctx, cache.SessionKey(s.Token))
	assert.False(t, ok)
	ok, _ = c.Exists(ctx, cache.SessionKey(fresh))
	assert.True(t, ok)

	require.NoError(t, svc.Logout(ctx, fresh))
	ok, _ = c.Exists(ctx, cache.SessionKey(fresh))
	assert.False(t, ok)
}

func TestNicknameAvailable(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()
	signup(t, svc, "alice@example.com", "alice")

	ok, err := svc.NicknameAvailable(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = svc.NicknameAvailable(ctx, " bob ")
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = svc.NicknameAvailable(ctx, "x")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdateMe(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()
	u := signup(t, svc, "alice@example.com", "alice")
	signup(t, svc, "bob@example.com", "bob")

	taken := "bob"
	_, err := svc.UpdateMe(ctx, u.ID, UpdateInput{Nickname: &taken})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	bad := model.TasteProfile{Body: 6, Acidity: 3, Bitterness: 3, Sweetness: 3}
	_, err = svc.UpdateMe(ctx, u.ID, UpdateInput{PreferredBeanTaste: &bad})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	name, intro := "alice2", "pour-over every morning"
	taste := model.TasteProfile{Body: 4, Acidity: 2, Bitterness: 3, Sweetness: 5}
	life := model.CoffeeLife{CafeTour: true}
	me, err := svc.UpdateMe(ctx, u.ID, UpdateInput{
		Nickname:           &name,
		Introduction:       &intro,
		CoffeeLife:         &life,
		PreferredBeanTaste: &taste,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice2", me.Nickname)
	assert.Equal(t, intro, me.Detail.Introduction)
	assert.Equal(t, taste, me.Detail.PreferredBeanTaste.Data())
	assert.True(t, me.Detail.CoffeeLife.Data().CafeTour)

	// Keeping the current nickname is not a conflict.
	_, err = svc.UpdateMe(ctx, u.ID, UpdateInput{Nickname: &name})
	assert.NoError(t, err)
}

func TestProfile(t *testing.T) {
	svc, db, _, rel := newService(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, db, "alice")
	b := testutil.CreateUser(t, db, "bob")
	bean := testutil.CreateBean(t, db, "Yirgacheffe")
	require.NoError(t, db.Create(&model.TastedRecord{AuthorID: b.ID, BeanID: bean.ID, Content: "a"}).Error)
	require.NoError(t, db.Create(&model.TastedRecord{AuthorID: b.ID, BeanID: bean.ID, Content: "b", IsPrivate: true}).Error)
	require.NoError(t, rel.Follow(ctx, a.ID, b.ID))

	p, err := svc.Profile(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Empty(t, p.Email)
	assert.Equal(t, int64(1), p.Followers)
	assert.Equal(t, int64(1), p.Records)
	assert.True(t, p.IsFollowing)
	assert.False(t, p.IsFollower)

	own, err := svc.Profile(ctx, b.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), own.Records)

	require.NoError(t, rel.Block(ctx, b.ID, a.ID))
	_, err = svc.Profile(ctx, a.ID, b.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	p, err = svc.Profile(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, p.IsBlocking)
}

func TestSearch(t *testing.T) {
	svc, db, _, rel := newService(t)
	ctx := context.Background()
	viewer := testutil.CreateUser(t, db, "viewer")
	testutil.CreateUser(t, db, "latte_lover")
	blocked := testutil.CreateUser(t, db, "latte_hater")
	gone := testutil.CreateUser(t, db, "latte_gone")
	require.NoError(t, db.Model(gone).Update("is_active", false).Error)
	require.NoError(t, rel.Block(ctx, viewer.ID, blocked.ID))

	res, err := svc.Search(ctx, viewer.ID, "latte", paging.Request{})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "latte_lover", res.Results[0].Nickname)
	assert.Empty(t, res.Results[0].Email)

	_, err = svc.Search(ctx, viewer.ID, " ", paging.Request{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestWithdraw(t *testing.T) {
	svc, db, _, _ := newService(t)
	ctx := context.Background()
	u := signup(t, svc, "alice@example.com", "alice")
	require.NoError(t, db.Create(&model.PushDevice{UserID: u.ID, Token: "ExponentPushToken[a]"}).Error)

	require.NoError(t, svc.Withdraw(ctx, u.ID))
	assert.ErrorIs(t, svc.Withdraw(ctx, u.ID), apperr.ErrNotFound)

	var n int64
	db.Model(&model.PushDevice{}).Where("user_id = ?", u.ID).Count(&n)
	assert.Zero(t, n)

	_, err := svc.Login(ctx, "alice@example.com", "password1", "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = svc.Me(ctx, u.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
