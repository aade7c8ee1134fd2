package relationship

import (
	"context"
	"testing"

	"github.com/brewbuds/server/apperr"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/service/notify"
	"github.com/brewbuds/server/service/paging"
	"github.com/brewbuds/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFollow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	rec := &notify.Recorder{}
	svc := New(db, rec, zap.NewNop())
	ctx := context.Background()
	a := testutil.CreateUser(t, db, "alice")
	b := testutil.CreateUser(t, db, "bob")

	assert.ErrorIs(t, svc.Follow(ctx, a.ID, a.ID), apperr.ErrValidation)
	assert.ErrorIs(t, svc.Follow(ctx, a.ID, 9999), apperr.ErrNotFound)

	require.NoError(t, svc.Follow(ctx, a.ID, b.ID))
	assert.ErrorIs(t, svc.Follow(ctx, a.ID, b.ID), apperr.ErrConflict)

	ok, err := svc.IsFollowing(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = svc.IsFollowing(ctx, b.ID, a.ID)
	assert.False(t, ok)

	mutual, _ := svc.IsMutualFollow(ctx, a.ID, b.ID)
	assert.False(t, mutual)
	require.NoError(t, svc.Follow(ctx, b.ID, a.ID))
	mutual, _ = svc.IsMutualFollow(ctx, a.ID, b.ID)
	assert.True(t, mutual)

	sent := rec.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, model.NotifyFollow, sent[0].Type)
	assert.Equal(t, b.ID, sent[0].UserID)

	require.NoError(t, svc.Unfollow(ctx, a.ID, b.ID))
	assert.ErrorIs(t, svc.Unfollow(ctx, a.ID, b.ID), apperr.ErrNotFound)
}

func TestFollow_InactiveTarget(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, &notify.Recorder{}, zap.NewNop())
	a := testutil.CreateUser(t, db, "alice")
	gone := testutil.CreateUser(t, db, "gone")
	require.NoError(t, db.Model(gone).Update("is_active", false).Error)

	assert.ErrorIs(t, svc.Follow(context.Background(), a.ID, gone.ID), apperr.ErrNotFound)
}

func TestBlock_RemovesFollowsBothWays(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, &notify.Recorder{}, zap.NewNop())
	ctx := context.Background()
	a := testutil.CreateUser(t, db, "alice")
	b := testutil.CreateUser(t, db, "bob")

	require.NoError(t, svc.Follow(ctx, a.ID, b.ID))
	require.NoError(t, svc.Follow(ctx, b.ID, a.ID))

	require.NoError(t, svc.Block(ctx, a.ID, b.ID))
	assert.ErrorIs(t, svc.Block(ctx, a.ID, b.ID), apperr.ErrConflict)
	assert.ErrorIs(t, svc.Block(ctx, a.ID, a.ID), apperr.ErrValidation)

	f1, _ := svc.IsFollowing(ctx, a.ID, b.ID)
	f2, _ := svc.IsFollowing(ctx, b.ID, a.ID)
	assert.False(t, f1)
	assert.False(t, f2)

	blocked, _ := svc.IsBlocked(ctx, a.ID, b.ID)
	assert.True(t, blocked)
	blocked, _ = svc.IsBlocked(ctx, b.ID, a.ID)
	assert.False(t, blocked)
	either, _ := svc.IsBlockedEither(ctx, b.ID, a.ID)
	assert.True(t, either)

	// Blocked in either direction means no following.
	assert.ErrorIs(t, svc.Follow(ctx, b.ID, a.ID), apperr.ErrForbidden)

	require.NoError(t, svc.Unblock(ctx, a.ID, b.ID))
	assert.ErrorIs(t, svc.Unblock(ctx, a.ID, b.ID), apperr.ErrNotFound)
	require.NoError(t, svc.Follow(ctx, b.ID, a.ID))
}

func TestHiddenUserIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, &notify.Recorder{}, zap.NewNop())
	ctx := context.Background()
	me := testutil.CreateUser(t, db, "me")
	x := testutil.CreateUser(t, db, "x")
	y := testutil.CreateUser(t, db, "y")
	testutil.CreateUser(t, db, "z")

	require.NoError(t, svc.Block(ctx, me.ID, x.ID))
	require.NoError(t, svc.Block(ctx, y.ID, me.ID))

	ids, err := svc.HiddenUserIDs(ctx, me.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{x.ID, y.ID}, ids)

	ids, err = svc.HiddenUserIDs(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestLists(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, &notify.Recorder{}, zap.NewNop())
	ctx := context.Background()
	star := testutil.CreateUser(t, db, "star")
	fans := []*model.User{
		testutil.CreateUser(t, db, "fan1"),
		testutil.CreateUser(t, db, "fan2"),
		testutil.CreateUser(t, db, "fan3"),
	}
	for _, f := range fans {
		require.NoError(t, svc.Follow(ctx, f.ID, star.ID))
	}
	require.NoError(t, svc.Follow(ctx, star.ID, fans[0].ID))
	require.NoError(t, svc.Block(ctx, star.ID, fans[2].ID))

	page, err := svc.Followers(ctx, star.ID, paging.Request{Size: 10})
	require.NoError(t, err)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "fan2", page.Results[0].Nickname, "newest edge first")
	assert.Empty(t, page.Results[0].Email, "public view")

	following, err := svc.Following(ctx, star.ID, paging.Request{})
	require.NoError(t, err)
	require.Len(t, following.Results, 1)
	assert.Equal(t, fans[0].ID, following.Results[0].ID)

	blocked, err := svc.Blocked(ctx, star.ID, paging.Request{})
	require.NoError(t, err)
	require.Len(t, blocked.Results, 1)

	followers, followingN, err := svc.Counts(ctx, star.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), followers)
	assert.Equal(t, int64(1), followingN)

	ids, err := svc.FollowerIDs(ctx, star.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{fans[0].ID, fans[1].ID}, ids)
	ids, err = svc.FollowingIDs(ctx, star.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{fans[0].ID}, ids)
}
