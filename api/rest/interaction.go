package rest

import (
	"net/http"

	"github.com/brewbuds/server/audit"
	mw "github.com/brewbuds/server/middleware"
	"github.com/brewbuds/server/service/like"
	"github.com/brewbuds/server/service/note"
	"github.com/brewbuds/server/service/report"
	"github.com/gin-gonic/gin"
)

// InteractionHandler serves likes, notes and reports.
type InteractionHandler struct {
	likes   *like.Service
	notes   *note.Service
	reports *report.Service
	audit   audit.Logger
}

func NewInteractionHandler(likes *like.Service, notes *note.Service, reports *report.Service, al audit.Logger) *InteractionHandler {
	return &InteractionHandler{likes: likes, notes: notes, reports: reports, audit: al}
}

// ToggleLike handles POST /api/likes/:type/:id.
func (h *InteractionHandler) ToggleLike(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.likes.Toggle(c.Request.Context(), mw.GetUserID(c), c.Param("type"), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// AddNote handles POST /api/notes/:type/:id.
func (h *InteractionHandler) AddNote(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	n, err := h.notes.Create(c.Request.Context(), mw.GetUserID(c), c.Param("type"), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

// RemoveNote handles DELETE /api/notes/:type/:id.
func (h *InteractionHandler) RemoveNote(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.notes.Delete(c.Request.Context(), mw.GetUserID(c), c.Param("type"), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Notes handles GET /api/users/me/notes?type=
func (h *InteractionHandler) Notes(c *gin.Context) {
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	res, err := h.notes.List(c.Request.Context(), mw.GetUserID(c), c.Query("type"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type reportRequest struct {
	ObjectType string `json:"object_type" binding:"required"`
	ObjectID   int64  `json:"object_id" binding:"required,gt=0"`
	Reason     string `json:"reason" binding:"required"`
}

// Report handles POST /api/reports.
func (h *InteractionHandler) Report(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := h.reports.Create(c.Request.Context(), mw.GetUserID(c), req.ObjectType, req.ObjectID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit.Log(auditEntry(c, audit.ActionReportCreate, "report", r.ID,
		gin.H{"object_type": r.ObjectType, "object_id": r.ObjectID}))
	c.JSON(http.StatusCreated, r)
}
