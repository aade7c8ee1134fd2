package rest

import (
	"net/http"

	"github.com/brewbuds/server/service/event"
	"github.com/gin-gonic/gin"
)

// EventHandler serves promotional events.
type EventHandler struct {
	events *event.Service
}

func NewEventHandler(events *event.Service) *EventHandler {
	return &EventHandler{events: events}
}

// List handles GET /api/events?status=ongoing|ended|all.
func (h *EventHandler) List(c *gin.Context) {
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	res, err := h.events.List(c.Request.Context(), c.Query("status"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Detail handles GET /api/events/:id.
func (h *EventHandler) Detail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	e, err := h.events.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}
