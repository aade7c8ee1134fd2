package ranking

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/brewbuds/server/apperr"
	"github.com/brewbuds/server/cache"
	"github.com/brewbuds/server/config"
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
	db    *gorm.DB
	cache cache.Cache
	rel   *relationship.Service
	svc   *Service
	alice *model.User
	bob   *model.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, _ := testutil.SetupTestCache(t)
	rel := relationship.New(db, &notify.Recorder{}, zap.NewNop())
	f := &fixture{db: db, cache: c, rel: rel}
	f.svc = New(db, c, rel, config.RankingConfig{TopPosts: 2, TopBeans: 2}, zap.NewNop())
	f.alice = testutil.CreateUser(t, db, "alice")
	f.bob = testutil.CreateUser(t, db, "bob")
	return f
}

func (f *fixture) post(t *testing.T, author int64, subject string, likes, views int64, age time.Duration) int64 {
	t.Helper()
	p := &model.Post{AuthorID: author, Subject: subject, Title: "t", Content: "c",
		LikeCount: likes, ViewCount: views, CreatedAt: time.Now().Add(-age)}
	require.NoError(t, f.db.Create(p).Error)
	return p.ID
}

func TestTopPosts_WarmAndRead(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	top := f.post(t, f.alice.ID, model.SubjectCafe, 9, 0, time.Hour)
	second := f.post(t, f.bob.ID, model.SubjectGear, 3, 50, time.Hour)
	third := f.post(t, f.bob.ID, model.SubjectCafe, 3, 10, time.Hour)
	f.post(t, f.alice.ID, model.SubjectCafe, 100, 0, 8*24*time.Hour)

	require.NoError(t, f.svc.WarmTopPosts(ctx))
	raw, err := f.cache.Get(ctx, cache.TopPostsKey(""))
	require.NoError(t, err)
	assert.JSONEq(t, "["+itoa(top)+","+itoa(second)+"]", raw)
	_, err = f.cache.Get(ctx, cache.TopPostsKey(model.SubjectWorry))
	require.NoError(t, err, "every subject gets a key, even an empty one")

	ids, err := f.svc.TopPostIDs(ctx, 0, model.SubjectCafe)
	require.NoError(t, err)
	assert.Equal(t, []int64{top, third}, ids)

	require.NoError(t, f.rel.Block(ctx, f.bob.ID, f.alice.ID))
	ids, err = f.svc.TopPostIDs(ctx, f.bob.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []int64{second}, ids)

	_, err = f.svc.TopPostIDs(ctx, 0, "gossip")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestTopPosts_ReadThrough(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	id := f.post(t, f.alice.ID, model.SubjectBean, 1, 1, time.Minute)

	ids, err := f.svc.TopPostIDs(ctx, 0, model.SubjectBean)
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, ids)

	ok, err := f.cache.Exists(ctx, cache.TopPostsKey(model.SubjectBean))
	require.NoError(t, err)
	assert.True(t, ok, "a miss stores the computed ranking")

	require.NoError(t, f.cache.Set(ctx, cache.TopPostsKey(model.SubjectBean), "[]", TTL))
	ids, err = f.svc.TopPostIDs(ctx, 0, model.SubjectBean)
	require.NoError(t, err)
	assert.Empty(t, ids, "cached value wins until the next warm")
}

func TestTopBeans(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	guji := testutil.CreateBean(t, f.db, "Guji")
	huila := testutil.CreateBean(t, f.db, "Huila")
	old := testutil.CreateBean(t, f.db, "Old")
	homebrew := &model.Bean{Name: "Homebrew", BeanType: model.BeanTypeSingle, IsUserCreated: true, CreatorID: &f.alice.ID}
	require.NoError(t, f.db.Create(homebrew).Error)

	rec := func(bean int64, age time.Duration) {
		require.NoError(t, f.db.Create(&model.TastedRecord{
			AuthorID: f.bob.ID, BeanID: bean, Content: "x", CreatedAt: time.Now().Add(-age),
		}).Error)
	}
	rec(guji.ID, time.Hour)
	rec(huila.ID, time.Hour)
	rec(huila.ID, 2*time.Hour)
	rec(homebrew.ID, time.Hour)
	rec(homebrew.ID, time.Hour)
	rec(homebrew.ID, time.Hour)
	for i := 0; i < 5; i++ {
		rec(old.ID, 10*24*time.Hour)
	}

	entries, err := f.svc.TopBeans(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []BeanEntry{
		{Rank: 1, BeanID: homebrew.ID, Records: 3},
		{Rank: 2, BeanID: huila.ID, Records: 2},
	}, entries)

	require.NoError(t, f.rel.Block(ctx, f.alice.ID, f.bob.ID))
	entries, err = f.svc.TopBeans(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []BeanEntry{{Rank: 1, BeanID: huila.ID, Records: 2}}, entries)
}

func TestTopBeans_TiesByBeanID(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	first := testutil.CreateBean(t, f.db, "Yirgacheffe")
	second := testutil.CreateBean(t, f.db, "Sidamo")
	for _, id := range []int64{second.ID, first.ID} {
		require.NoError(t, f.db.Create(&model.TastedRecord{AuthorID: f.bob.ID, BeanID: id, Content: "x"}).Error)
	}

	entries, err := f.svc.TopBeans(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []BeanEntry{
		{Rank: 1, BeanID: first.ID, Records: 1},
		{Rank: 2, BeanID: second.ID, Records: 1},
	}, entries)
}

func TestTopBeans_EmptyWeekIsNotRecomputed(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	entries, err := f.svc.TopBeans(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
	warmed, err := f.cache.Exists(ctx, cache.TopBeansWarmedKey)
	require.NoError(t, err)
	assert.True(t, warmed)

	guji := testutil.CreateBean(t, f.db, "Guji")
	require.NoError(t, f.db.Create(&model.TastedRecord{AuthorID: f.bob.ID, BeanID: guji.ID, Content: "x"}).Error)
	entries, err = f.svc.TopBeans(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries, "an empty ranking holds until the next warm")

	require.NoError(t, f.svc.WarmTopBeans(ctx))
	entries, err = f.svc.TopBeans(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []BeanEntry{{Rank: 1, BeanID: guji.ID, Records: 1}}, entries)
}

func TestRefresh_UsesWindow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	id := f.post(t, f.alice.ID, model.SubjectNormal, 1, 0, 3*24*time.Hour)

	f.svc.now = func() time.Time { return time.Now().Add(7 * 24 * time.Hour) }
	require.NoError(t, f.svc.Refresh(ctx))
	ids, err := f.svc.TopPostIDs(ctx, 0, "")
	require.NoError(t, err)
	assert.Empty(t, ids)

	f.svc.now = time.Now
	require.NoError(t, f.svc.Refresh(ctx))
	ids, err = f.svc.TopPostIDs(ctx, 0, "")
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, ids)
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
