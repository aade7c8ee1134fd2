package rest

import (
	"net/http"
	"strconv"

	mw "github.com/brewbuds/server/middleware"
	"github.com/brewbuds/server/service/bean"
	"github.com/brewbuds/server/service/recommend"
	"github.com/gin-gonic/gin"
)

// BeanHandler serves the bean catalogue, recent searches and
// recommendations.
type BeanHandler struct {
	beans     *bean.Service
	recommend *recommend.Service
}

func NewBeanHandler(beans *bean.Service, rec *recommend.Service) *BeanHandler {
	return &BeanHandler{beans: beans, recommend: rec}
}

// Search handles GET /api/beans with catalogue filters.
func (h *BeanHandler) Search(c *gin.Context) {
	var req bean.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.beans.Search(c.Request.Context(), mw.GetUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Detail handles GET /api/beans/:id.
func (h *BeanHandler) Detail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	b, err := h.beans.Get(c.Request.Context(), mw.GetUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// Recommend handles GET /api/beans/recommend?limit=
func (h *BeanHandler) Recommend(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit > 50 {
		limit = 50
	}
	beans, err := h.recommend.Recommend(c.Request.Context(), mw.GetUserID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": beans})
}

// Recent handles GET /api/search/recent.
func (h *BeanHandler) Recent(c *gin.Context) {
	terms, err := h.beans.Recent(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": terms})
}

// RemoveRecent handles DELETE /api/search/recent?q=, or clears every
// term when q is empty.
func (h *BeanHandler) RemoveRecent(c *gin.Context) {
	ctx := c.Request.Context()
	uid := mw.GetUserID(c)
	var err error
	if q := c.Query("q"); q != "" {
		err = h.beans.RemoveRecent(ctx, uid, q)
	} else {
		err = h.beans.ClearRecent(ctx, uid)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
