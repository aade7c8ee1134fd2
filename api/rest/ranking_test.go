package rest_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/brewbuds/server/audit"
	"github.com/brewbuds/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rankedPosts struct {
	Results []struct {
		ID        int64 `json:"id"`
		LikeCount int64 `json:"like_count"`
	} `json:"results"`
}

func TestTopPosts_ByLikes(t *testing.T) {
	s := newServer(t)
	_, aTok := s.register(t, "alice")
	_, bTok := s.register(t, "bobby")
	quiet := s.createPost(t, aTok, "quiet")
	popular := s.createPost(t, aTok, "popular")
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, fmt.Sprintf("/api/likes/post/%d", popular), bTok, nil).Code)

	w := s.do(http.MethodGet, "/api/ranking/posts", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[rankedPosts](t, w)
	require.Len(t, res.Results, 2)
	assert.Equal(t, popular, res.Results[0].ID)
	assert.Equal(t, quiet, res.Results[1].ID)

	w = s.do(http.MethodGet, "/api/ranking/posts?subject=nope", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTopPosts_HidesBlockedAuthor(t *testing.T) {
	s := newServer(t)
	aID, aTok := s.register(t, "alice")
	_, bTok := s.register(t, "bobby")
	s.createPost(t, aTok, "hello")

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, fmt.Sprintf("/api/users/%d/block", aID), bTok, nil).Code)
	w := s.do(http.MethodGet, "/api/ranking/posts", bTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[rankedPosts](t, w).Results)
}

func TestTopBeans(t *testing.T) {
	s := newServer(t)
	_, aTok := s.register(t, "alice")
	kenya := testutil.CreateBean(t, s.db, "Kenya AA")
	guji := testutil.CreateBean(t, s.db, "Guji")
	s.createRecord(t, aTok, guji.ID, false)
	s.createRecord(t, aTok, guji.ID, false)
	s.createRecord(t, aTok, kenya.ID, false)

	w := s.do(http.MethodGet, "/api/ranking/beans", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[struct {
		Results []struct {
			Rank    int   `json:"rank"`
			Records int64 `json:"record_count_week"`
			Bean    struct {
				ID int64 `json:"id"`
			} `json:"bean"`
		} `json:"results"`
	}](t, w)
	require.Len(t, res.Results, 2)
	assert.Equal(t, guji.ID, res.Results[0].Bean.ID)
	assert.Equal(t, int64(2), res.Results[0].Records)
	assert.Equal(t, 2, res.Results[1].Rank)
}

func TestAdmin_RefreshRanking(t *testing.T) {
	s := newServer(t)
	id, token := s.register(t, "admin")
	s.makeStaff(t, id)

	// Warm once with no posts, then add one: readers keep the snapshot
	// until a refresh.
	w := s.do(http.MethodGet, "/api/ranking/posts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[rankedPosts](t, w).Results)
	postID := s.createPost(t, token, "fresh")

	w = s.do(http.MethodGet, "/api/ranking/posts", "", nil)
	assert.Empty(t, decode[rankedPosts](t, w).Results)

	w = s.do(http.MethodPost, "/api/admin/ranking/refresh", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/ranking/posts", "", nil)
	res := decode[rankedPosts](t, w)
	require.Len(t, res.Results, 1)
	assert.Equal(t, postID, res.Results[0].ID)

	entries := s.audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionRankingRefresh, entries[0].Action)
}
