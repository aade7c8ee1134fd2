package rest

import (
	"net/http"

	mw "github.com/brewbuds/server/middleware"
	"github.com/brewbuds/server/service/comment"
	"github.com/gin-gonic/gin"
)

// CommentHandler serves comment threads on posts and tasted records.
type CommentHandler struct {
	comments *comment.Service
}

func NewCommentHandler(comments *comment.Service) *CommentHandler {
	return &CommentHandler{comments: comments}
}

type commentRequest struct {
	Content  string `json:"content" binding:"required"`
	ParentID *int64 `json:"parent"`
}

// List returns GET /api/<objects>/:id/comments for one object type.
func (h *CommentHandler) List(objectType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		req, ok := pageRequest(c)
		if !ok {
			return
		}
		res, err := h.comments.List(c.Request.Context(), mw.GetUserID(c), objectType, id, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// Create returns POST /api/<objects>/:id/comments for one object type.
func (h *CommentHandler) Create(objectType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req commentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		cm, err := h.comments.Create(c.Request.Context(), mw.GetUserID(c), objectType, id, req.ParentID, req.Content)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, cm)
	}
}

// Update handles PATCH /api/comments/:id.
func (h *CommentHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cm, err := h.comments.Update(c.Request.Context(), mw.GetUserID(c), id, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cm)
}

// Delete handles DELETE /api/comments/:id.
func (h *CommentHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.comments.Delete(c.Request.Context(), mw.GetUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
