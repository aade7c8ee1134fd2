package comment

import (
	"context"
	"testing"

	"github.com/brewbuds/server/apperr"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/service/like"
	"github.com/brewbuds/server/service/notify"
	"github.com/brewbuds/server/service/paging"
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
	alice  *model.User
	bob    *model.User
	post   *model.Post
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	rec := &notify.Recorder{}
	rel := relationship.New(db, rec, zap.NewNop())
	likes := like.New(db, rel, rec, zap.NewNop())
	f := &fixture{db: db, rec: rec, rel: rel, svc: New(db, rel, likes, rec, zap.NewNop())}
	f.author = testutil.CreateUser(t, db, "author")
	f.alice = testutil.CreateUser(t, db, "alice")
	f.bob = testutil.CreateUser(t, db, "bob")
	f.post = &model.Post{AuthorID: f.author.ID, Subject: model.SubjectNormal, Title: "t", Content: "c"}
	require.NoError(t, db.Create(f.post).Error)
	return f
}

func TestCreate_ReplyReparentsAndNotifies(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	top, err := f.svc.Create(ctx, f.alice.ID, model.ObjectPost, f.post.ID, nil, "  nice beans ")
	require.NoError(t, err)
	assert.Equal(t, "nice beans", top.Content)

	reply, err := f.svc.Create(ctx, f.bob.ID, model.ObjectPost, f.post.ID, &top.ID, "agreed")
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, top.ID, *reply.ParentID)

	nested, err := f.svc.Create(ctx, f.alice.ID, model.ObjectPost, f.post.ID, &reply.ID, "thanks")
	require.NoError(t, err)
	assert.Equal(t, top.ID, *nested.ParentID, "reply to a reply attaches to the top-level comment")

	names := map[int64]string{f.author.ID: "author", f.alice.ID: "alice", f.bob.ID: "bob"}
	var types []string
	for _, n := range f.rec.Sent() {
		types = append(types, n.Type+":"+names[n.UserID])
	}
	assert.Equal(t, []string{
		"comment:author",
		"reply:alice", "comment:author",
		"comment:author",
	}, types, "alice replying on her own thread only notifies the post author")
}

func TestCreate_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.alice.ID, model.ObjectPost, f.post.ID, nil, "   ")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Create(ctx, f.alice.ID, model.ObjectBean, 1, nil, "x")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Create(ctx, f.alice.ID, model.ObjectPost, 999, nil, "x")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	other := &model.Post{AuthorID: f.author.ID, Subject: model.SubjectCafe, Title: "o", Content: "o"}
	require.NoError(t, f.db.Create(other).Error)
	top, err := f.svc.Create(ctx, f.alice.ID, model.ObjectPost, other.ID, nil, "x")
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.alice.ID, model.ObjectPost, f.post.ID, &top.ID, "wrong thread")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	require.NoError(t, f.rel.Block(ctx, f.author.ID, f.bob.ID))
	_, err = f.svc.Create(ctx, f.bob.ID, model.ObjectPost, f.post.ID, nil, "let me in")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestCreate_PrivateRecordHidden(t *testing.T) {
	f := setup(t)
	bean := testutil.CreateBean(t, f.db, "Yirgacheffe")
	rec := &model.TastedRecord{AuthorID: f.author.ID, BeanID: bean.ID, Content: "secret", IsPrivate: true}
	require.NoError(t, f.db.Create(rec).Error)

	_, err := f.svc.Create(context.Background(), f.alice.ID, model.ObjectRecord, rec.ID, nil, "hi")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.Create(context.Background(), f.author.ID, model.ObjectRecord, rec.ID, nil, "note to self")
	assert.NoError(t, err)
}

func TestList_ThreadsAndDeletedPlaceholders(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.alice.ID, model.ObjectPost, f.post.ID, nil, "first")
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.bob.ID, model.ObjectPost, f.post.ID, &first.ID, "reply")
	require.NoError(t, err)
	lonely, err := f.svc.Create(ctx, f.bob.ID, model.ObjectPost, f.post.ID, nil, "lonely")
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.author.ID, model.ObjectPost, f.post.ID, nil, "third")
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, f.alice.ID, first.ID))
	require.NoError(t, f.svc.Delete(ctx, f.bob.ID, lonely.ID))

	res, err := f.svc.List(ctx, f.author.ID, model.ObjectPost, f.post.ID, paging.Request{})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, int64(2), res.Count)

	placeholder := res.Results[0]
	assert.True(t, placeholder.IsDeleted)
	assert.Empty(t, placeholder.Content)
	assert.Nil(t, placeholder.Author)
	require.Len(t, placeholder.Replies, 1)
	assert.Equal(t, "reply", placeholder.Replies[0].Content)
	assert.Equal(t, "bob", placeholder.Replies[0].Author.Nickname)
	assert.Empty(t, placeholder.Replies[0].Author.Email)

	assert.Equal(t, "third", res.Results[1].Content)

	var n int64
	require.NoError(t, f.db.Model(&model.Comment{}).Where("id = ?", lonely.ID).Count(&n).Error)
	assert.Zero(t, n, "comment without replies is removed")
}

func TestList_HidesBlockedAuthors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.alice.ID, model.ObjectPost, f.post.ID, nil, "from alice")
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.bob.ID, model.ObjectPost, f.post.ID, nil, "from bob")
	require.NoError(t, err)
	require.NoError(t, f.rel.Block(ctx, f.bob.ID, f.alice.ID))

	res, err := f.svc.List(ctx, f.bob.ID, model.ObjectPost, f.post.ID, paging.Request{})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "from bob", res.Results[0].Content)
}

func TestDelete_LastReplyRemovesDeletedParent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	top, err := f.svc.Create(ctx, f.alice.ID, model.ObjectPost, f.post.ID, nil, "top")
	require.NoError(t, err)
	reply, err := f.svc.Create(ctx, f.bob.ID, model.ObjectPost, f.post.ID, &top.ID, "reply")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(ctx, f.bob.ID, top.ID), apperr.ErrForbidden)
	require.NoError(t, f.svc.Delete(ctx, f.alice.ID, top.ID))
	assert.ErrorIs(t, f.svc.Delete(ctx, f.alice.ID, top.ID), apperr.ErrNotFound)

	require.NoError(t, f.svc.Delete(ctx, f.bob.ID, reply.ID))
	var n int64
	require.NoError(t, f.db.Model(&model.Comment{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestUpdateAndCounts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	c, err := f.svc.Create(ctx, f.alice.ID, model.ObjectPost, f.post.ID, nil, "tpyo")
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, f.bob.ID, c.ID, "hijack")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	updated, err := f.svc.Update(ctx, f.alice.ID, c.ID, "typo")
	require.NoError(t, err)
	assert.Equal(t, "typo", updated.Content)

	_, err = f.svc.Create(ctx, f.bob.ID, model.ObjectPost, f.post.ID, &c.ID, "reply")
	require.NoError(t, err)
	counts, err := f.svc.Counts(ctx, model.ObjectPost, []int64{f.post.ID, 999})
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[f.post.ID])
	assert.Zero(t, counts[999])

	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		return Purge(tx, model.ObjectPost, f.post.ID)
	}))
	counts, err = f.svc.Counts(ctx, model.ObjectPost, []int64{f.post.ID})
	require.NoError(t, err)
	assert.Zero(t, counts[f.post.ID])
}
