package rest

import (
	"net/http"

	mw "github.com/brewbuds/server/middleware"
	"github.com/brewbuds/server/service/bean"
	"github.com/brewbuds/server/service/post"
	"github.com/brewbuds/server/service/ranking"
	"github.com/gin-gonic/gin"
)

// RankingHandler serves the weekly top posts and top beans.
type RankingHandler struct {
	ranking *ranking.Service
	posts   *post.Service
	beans   *bean.Service
}

// NewRankingHandler creates a RankingHandler.
func NewRankingHandler(r *ranking.Service, posts *post.Service, beans *bean.Service) *RankingHandler {
	return &RankingHandler{ranking: r, posts: posts, beans: beans}
}

// RankedBean is one row of the bean ranking.
type RankedBean struct {
	Rank    int        `json:"rank"`
	Records int64      `json:"record_count_week"`
	Bean    *bean.View `json:"bean"`
}

// TopPosts handles GET /api/ranking/posts?subject=
func (h *RankingHandler) TopPosts(c *gin.Context) {
	ctx := c.Request.Context()
	viewer := mw.GetUserID(c)
	ids, err := h.ranking.TopPostIDs(ctx, viewer, c.Query("subject"))
	if err != nil {
		respondError(c, err)
		return
	}
	views, err := h.posts.Load(ctx, viewer, ids)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": views})
}

// TopBeans handles GET /api/ranking/beans.
func (h *RankingHandler) TopBeans(c *gin.Context) {
	ctx := c.Request.Context()
	viewer := mw.GetUserID(c)
	entries, err := h.ranking.TopBeans(ctx, viewer)
	if err != nil {
		respondError(c, err)
		return
	}
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.BeanID
	}
	views, err := h.beans.Load(ctx, viewer, ids)
	if err != nil {
		respondError(c, err)
		return
	}
	byID := make(map[int64]*bean.View, len(views))
	for i := range views {
		byID[views[i].ID] = &views[i]
	}
	out := make([]RankedBean, 0, len(entries))
	for _, e := range entries {
		if v, ok := byID[e.BeanID]; ok {
			out = append(out, RankedBean{Rank: len(out) + 1, Records: e.Records, Bean: v})
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}
