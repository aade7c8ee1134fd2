package rest

import (
	"net/http"

	mw "github.com/brewbuds/server/middleware"
	"github.com/brewbuds/server/service/notify"
	"github.com/gin-gonic/gin"
)

// NotificationHandler serves the notification inbox, push devices and
// notification settings.
type NotificationHandler struct {
	notify *notify.Service
}

func NewNotificationHandler(n *notify.Service) *NotificationHandler {
	return &NotificationHandler{notify: n}
}

// List handles GET /api/notifications.
func (h *NotificationHandler) List(c *gin.Context) {
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	res, err := h.notify.List(c.Request.Context(), mw.GetUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Unread handles GET /api/notifications/unread.
func (h *NotificationHandler) Unread(c *gin.Context) {
	n, err := h.notify.UnreadCount(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

// MarkRead handles POST /api/notifications/:id/read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.notify.MarkRead(c.Request.Context(), mw.GetUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllRead handles POST /api/notifications/read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.notify.MarkAllRead(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// Delete handles DELETE /api/notifications/:id.
func (h *NotificationHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.notify.Delete(c.Request.Context(), mw.GetUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type deviceRequest struct {
	Token      string `json:"token" binding:"required,max=255"`
	DeviceType string `json:"device_type" binding:"omitempty,oneof=ios android web"`
}

// RegisterDevice handles POST /api/devices.
func (h *NotificationHandler) RegisterDevice(c *gin.Context) {
	var req deviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	dev, err := h.notify.RegisterDevice(c.Request.Context(), mw.GetUserID(c), req.Token, req.DeviceType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dev)
}

// RemoveDevice handles DELETE /api/devices?token=
func (h *NotificationHandler) RemoveDevice(c *gin.Context) {
	if err := h.notify.RemoveDevice(c.Request.Context(), mw.GetUserID(c), c.Query("token")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Settings handles GET /api/notifications/settings.
func (h *NotificationHandler) Settings(c *gin.Context) {
	s, err := h.notify.Settings(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// UpdateSettings handles PUT /api/notifications/settings. Omitted flags
// keep their current value.
func (h *NotificationHandler) UpdateSettings(c *gin.Context) {
	ctx := c.Request.Context()
	uid := mw.GetUserID(c)
	s, err := h.notify.Settings(ctx, uid)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := c.ShouldBindJSON(&s); err != nil {
		badRequest(c, err)
		return
	}
	s.UserID = uid
	if err := h.notify.UpdateSettings(ctx, s); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}
