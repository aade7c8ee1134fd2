package rest

import (
	"net/http"

	"github.com/brewbuds/server/audit"
	mw "github.com/brewbuds/server/middleware"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/service/paging"
	"github.com/brewbuds/server/service/relationship"
	"github.com/brewbuds/server/service/user"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserHandler serves profiles and follow/block relations.
type UserHandler struct {
	users  *user.Service
	rel    *relationship.Service
	audit  audit.Logger
	logger *zap.Logger
}

func NewUserHandler(users *user.Service, rel *relationship.Service, al audit.Logger, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, rel: rel, audit: al, logger: logger}
}

// Me handles GET /api/users/me.
func (h *UserHandler) Me(c *gin.Context) {
	me, err := h.users.Me(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, me)
}

// UpdateMe handles PATCH /api/users/me.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req user.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	me, err := h.users.UpdateMe(c.Request.Context(), mw.GetUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, me)
}

// Withdraw handles DELETE /api/users/me.
func (h *UserHandler) Withdraw(c *gin.Context) {
	uid := mw.GetUserID(c)
	if err := h.users.Withdraw(c.Request.Context(), uid); err != nil {
		respondError(c, err)
		return
	}
	h.audit.Log(auditEntry(c, audit.ActionWithdraw, model.ObjectUser, uid, nil))
	h.logger.Info("user withdrew", zap.Int64("user_id", uid))
	c.Status(http.StatusNoContent)
}

// Profile handles GET /api/users/:id.
func (h *UserHandler) Profile(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.users.Profile(c.Request.Context(), mw.GetUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Search handles GET /api/search/users?q=
func (h *UserHandler) Search(c *gin.Context) {
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	res, err := h.users.Search(c.Request.Context(), mw.GetUserID(c), c.Query("q"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Follow handles POST /api/users/:id/follow.
func (h *UserHandler) Follow(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.rel.Follow(c.Request.Context(), mw.GetUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"following": true})
}

// Unfollow handles DELETE /api/users/:id/follow.
func (h *UserHandler) Unfollow(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.rel.Unfollow(c.Request.Context(), mw.GetUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Block handles POST /api/users/:id/block.
func (h *UserHandler) Block(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.rel.Block(c.Request.Context(), mw.GetUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	h.audit.Log(auditEntry(c, audit.ActionBlock, model.ObjectUser, id, nil))
	c.JSON(http.StatusCreated, gin.H{"blocking": true})
}

// Unblock handles DELETE /api/users/:id/block.
func (h *UserHandler) Unblock(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.rel.Unblock(c.Request.Context(), mw.GetUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	h.audit.Log(auditEntry(c, audit.ActionUnblock, model.ObjectUser, id, nil))
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) relationList(c *gin.Context, userID int64,
	list func(*gin.Context, int64, paging.Request) (paging.Result[model.User], error)) {
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	res, err := list(c, userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Followers handles GET /api/users/:id/followers.
func (h *UserHandler) Followers(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	h.relationList(c, id, func(c *gin.Context, id int64, req paging.Request) (paging.Result[model.User], error) {
		return h.rel.Followers(c.Request.Context(), id, req)
	})
}

// Following handles GET /api/users/:id/following.
func (h *UserHandler) Following(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	h.relationList(c, id, func(c *gin.Context, id int64, req paging.Request) (paging.Result[model.User], error) {
		return h.rel.Following(c.Request.Context(), id, req)
	})
}

// Blocked handles GET /api/users/me/blocks.
func (h *UserHandler) Blocked(c *gin.Context) {
	h.relationList(c, mw.GetUserID(c), func(c *gin.Context, id int64, req paging.Request) (paging.Result[model.User], error) {
		return h.rel.Blocked(c.Request.Context(), id, req)
	})
}
