package rest

import (
	"net/http"

	mw "github.com/brewbuds/server/middleware"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/service/feed"
	"github.com/brewbuds/server/service/paging"
	"github.com/brewbuds/server/service/post"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PostHandler serves posts and their feed.
type PostHandler struct {
	posts  *post.Service
	feed   *feed.Service
	logger *zap.Logger
}

func NewPostHandler(posts *post.Service, f *feed.Service, logger *zap.Logger) *PostHandler {
	return &PostHandler{posts: posts, feed: f, logger: logger}
}

// Feed handles GET /api/posts?feed_type=&subject=
func (h *PostHandler) Feed(c *gin.Context) {
	var q feedQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	viewer := mw.GetUserID(c)
	ids, err := h.feed.IDs(ctx, model.ObjectPost, feed.Request{
		Viewer:  viewer,
		Type:    q.Type,
		Subject: q.Subject,
		Request: q.Request,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	views, err := h.posts.Load(ctx, viewer, ids.Results)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paging.Result[post.View]{Results: views, Count: ids.Count, HasNext: ids.HasNext})
}

// Latest handles GET /api/posts/latest?subject=, newest first without feed grouping.
func (h *PostHandler) Latest(c *gin.Context) {
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	res, err := h.posts.List(c.Request.Context(), mw.GetUserID(c), c.Query("subject"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Create handles POST /api/posts.
func (h *PostHandler) Create(c *gin.Context) {
	var req post.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	v, err := h.posts.Create(c.Request.Context(), mw.GetUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

// Detail handles GET /api/posts/:id and counts the view.
func (h *PostHandler) Detail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	viewer := mw.GetUserID(c)
	v, err := h.posts.Get(ctx, viewer, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if first, err := h.feed.MarkViewed(ctx, model.ObjectPost, id, viewer, c.ClientIP()); err != nil {
		h.logger.Warn("post view not counted", zap.Int64("post_id", id), zap.Error(err))
	} else if first {
		v.ViewCount++
	}
	c.JSON(http.StatusOK, v)
}

// Update handles PATCH /api/posts/:id.
func (h *PostHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req post.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	v, err := h.posts.Update(c.Request.Context(), mw.GetUserID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Delete handles DELETE /api/posts/:id.
func (h *PostHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.posts.Delete(c.Request.Context(), mw.GetUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ByUser handles GET /api/users/:id/posts.
func (h *PostHandler) ByUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	res, err := h.posts.ListByAuthor(c.Request.Context(), mw.GetUserID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Search handles GET /api/search/posts?q=
func (h *PostHandler) Search(c *gin.Context) {
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	res, err := h.posts.Search(c.Request.Context(), mw.GetUserID(c), c.Query("q"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
