package like

import (
	"context"
	"sync"
	"testing"

	"github.com/brewbuds/server/apperr"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/service/notify"
	"github.com/brewbuds/server/service/relationship"
	"github.com/brewbuds/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	svc    *Service
	rel    *relationship.Service
	rec    *notify.Recorder
	author *model.User
	fan    *model.User
	post   *model.Post
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	rec := &notify.Recorder{}
	rel := relationship.New(db, rec, zap.NewNop())
	f := &fixture{db: db, rec: rec, rel: rel, svc: New(db, rel, rec, zap.NewNop())}
	f.author = testutil.CreateUser(t, db, "author")
	f.fan = testutil.CreateUser(t, db, "fan")
	f.post = &model.Post{AuthorID: f.author.ID, Subject: model.SubjectNormal, Title: "hello", Content: "world"}
	require.NoError(t, db.Create(f.post).Error)
	return f
}

func (f *fixture) likeCount(t *testing.T) int64 {
	var p model.Post
	require.NoError(t, f.db.First(&p, f.post.ID).Error)
	return p.LikeCount
}

func TestToggle_LikeUnlike(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.Toggle(ctx, f.fan.ID, model.ObjectPost, f.post.ID)
	require.NoError(t, err)
	assert.Equal(t, Result{Liked: true, LikeCount: 1}, res)
	assert.Equal(t, int64(1), f.likeCount(t))

	sent := f.rec.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, f.author.ID, sent[0].UserID)
	assert.Equal(t, model.NotifyLike, sent[0].Type)

	res, err = f.svc.Toggle(ctx, f.fan.ID, model.ObjectPost, f.post.ID)
	require.NoError(t, err)
	assert.Equal(t, Result{Liked: false, LikeCount: 0}, res)
	assert.Equal(t, int64(0), f.likeCount(t))
	assert.Len(t, f.rec.Sent(), 1, "unlike does not notify")
}

func TestToggle_CounterNeverNegative(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, f.db.Create(&model.Like{UserID: f.fan.ID, ObjectType: model.ObjectPost, ObjectID: f.post.ID}).Error)

	res, err := f.svc.Toggle(ctx, f.fan.ID, model.ObjectPost, f.post.ID)
	require.NoError(t, err)
	assert.False(t, res.Liked)
	assert.Equal(t, int64(0), res.LikeCount)
	assert.Equal(t, int64(0), f.likeCount(t))
}

func TestToggle_Errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Toggle(ctx, f.fan.ID, model.ObjectBean, 1)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Toggle(ctx, f.fan.ID, model.ObjectPost, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, f.rel.Block(ctx, f.author.ID, f.fan.ID))
	_, err = f.svc.Toggle(ctx, f.fan.ID, model.ObjectPost, f.post.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestToggle_PrivateRecord(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	bean := testutil.CreateBean(t, f.db, "Kenya AA")
	rec := &model.TastedRecord{AuthorID: f.author.ID, BeanID: bean.ID, Content: "juicy", IsPrivate: true}
	require.NoError(t, f.db.Create(rec).Error)

	_, err := f.svc.Toggle(ctx, f.fan.ID, model.ObjectRecord, rec.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	res, err := f.svc.Toggle(ctx, f.author.ID, model.ObjectRecord, rec.ID)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.Empty(t, f.rec.Sent(), "liking your own record does not notify")
}

func TestToggle_Concurrent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	users := make([]*model.User, 8)
	for i := range users {
		users[i] = testutil.CreateUser(t, f.db, "u"+string(rune('a'+i)))
	}

	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			_, err := f.svc.Toggle(ctx, uid, model.ObjectPost, f.post.ID)
			assert.NoError(t, err)
		}(u.ID)
	}
	wg.Wait()
	assert.Equal(t, int64(len(users)), f.likeCount(t))
}

func TestLikedIDs(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.Toggle(ctx, f.fan.ID, model.ObjectPost, f.post.ID)
	require.NoError(t, err)

	liked, err := f.svc.LikedIDs(ctx, f.fan.ID, model.ObjectPost, []int64{f.post.ID, 42})
	require.NoError(t, err)
	assert.True(t, liked[f.post.ID])
	assert.False(t, liked[42])

	liked, err = f.svc.LikedIDs(ctx, 0, model.ObjectPost, []int64{f.post.ID})
	require.NoError(t, err)
	assert.Empty(t, liked)

	likers, err := f.svc.Likers(ctx, model.ObjectPost, f.post.ID, 10)
	require.NoError(t, err)
	require.Len(t, likers, 1)
	assert.Equal(t, "fan", likers[0].Nickname)
}
