package rest

import (
	"net/http"

	mw "github.com/brewbuds/server/middleware"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/service/feed"
	"github.com/brewbuds/server/service/paging"
	"github.com/brewbuds/server/service/record"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecordHandler serves tasted records and their feed.
type RecordHandler struct {
	records *record.Service
	feed    *feed.Service
	logger  *zap.Logger
}

func NewRecordHandler(records *record.Service, f *feed.Service, logger *zap.Logger) *RecordHandler {
	return &RecordHandler{records: records, feed: f, logger: logger}
}

type feedQuery struct {
	Type    string `form:"feed_type"`
	Subject string `form:"subject"`
	paging.Request
}

// Feed handles GET /api/records?feed_type=common|following|refresh.
func (h *RecordHandler) Feed(c *gin.Context) {
	var q feedQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	viewer := mw.GetUserID(c)
	ids, err := h.feed.IDs(ctx, model.ObjectRecord, feed.Request{Viewer: viewer, Type: q.Type, Request: q.Request})
	if err != nil {
		respondError(c, err)
		return
	}
	views, err := h.records.Load(ctx, viewer, ids.Results)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paging.Result[record.View]{Results: views, Count: ids.Count, HasNext: ids.HasNext})
}

// Create handles POST /api/records.
func (h *RecordHandler) Create(c *gin.Context) {
	var req record.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	v, err := h.records.Create(c.Request.Context(), mw.GetUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

// Detail handles GET /api/records/:id and counts the view.
func (h *RecordHandler) Detail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	viewer := mw.GetUserID(c)
	v, err := h.records.Get(ctx, viewer, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if first, err := h.feed.MarkViewed(ctx, model.ObjectRecord, id, viewer, c.ClientIP()); err != nil {
		h.logger.Warn("record view not counted", zap.Int64("record_id", id), zap.Error(err))
	} else if first {
		v.ViewCount++
	}
	c.JSON(http.StatusOK, v)
}

// Update handles PATCH /api/records/:id.
func (h *RecordHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req record.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	v, err := h.records.Update(c.Request.Context(), mw.GetUserID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Delete handles DELETE /api/records/:id.
func (h *RecordHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.records.Delete(c.Request.Context(), mw.GetUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ByUser handles GET /api/users/:id/records.
func (h *RecordHandler) ByUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	res, err := h.records.ListByAuthor(c.Request.Context(), mw.GetUserID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ByBean handles GET /api/beans/:id/records.
func (h *RecordHandler) ByBean(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	res, err := h.records.ListByBean(c.Request.Context(), mw.GetUserID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Search handles GET /api/search/records?q=
func (h *RecordHandler) Search(c *gin.Context) {
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	res, err := h.records.Search(c.Request.Context(), mw.GetUserID(c), c.Query("q"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
