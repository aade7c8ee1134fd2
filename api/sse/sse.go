// Package sse streams live notifications to connected clients.
package sse

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/brewbuds/server/cache"
	"github.com/brewbuds/server/config"
	mw "github.com/brewbuds/server/middleware"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Notices is what the stream needs from the notification service.
type Notices interface {
	Subscribe(ctx context.Context, userID int64) (<-chan *cache.Message, func(), error)
	UnreadCount(ctx context.Context, userID int64) (int64, error)
}

type Handler struct {
	notices   Notices
	sec       config.SecurityConfig
	c         cache.Cache
	keepalive time.Duration
	logger    *zap.Logger
}

func NewHandler(notices Notices, c cache.Cache, sec config.SecurityConfig, logger *zap.Logger) *Handler {
	return &Handler{notices: notices, c: c, sec: sec, keepalive: 30 * time.Second, logger: logger}
}

// WithKeepalive changes the interval of keepalive comments.
func (h *Handler) WithKeepalive(d time.Duration) *Handler {
	h.keepalive = d
	return h
}

// token prefers the Authorization header; browsers using EventSource cannot
// set it and pass ?token= instead.
func token(c *gin.Context) string {
	if v := c.GetHeader("Authorization"); strings.HasPrefix(v, "Bearer ") {
		return strings.TrimPrefix(v, "Bearer ")
	}
	return c.Query("token")
}

func (h *Handler) authenticate(c *gin.Context) (int64, bool) {
	tok := token(c)
	if tok == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token", "code": "unauthorized"})
		return 0, false
	}
	claims, err := mw.ParseToken(tok, h.sec.JWTSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": "unauthorized"})
		return 0, false
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if ok, err := h.c.Exists(ctx, cache.SessionKey(tok)); err != nil || !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired", "code": "unauthorized"})
		return 0, false
	}
	return claims.UserID, true
}

// ServeSSE handles GET /sse. The first event is "connected" with the unread
// count; every new notification follows as a "notification" event whose id
// is the notification id.
func (h *Handler) ServeSSE(c *gin.Context) {
	userID, ok := h.authenticate(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	msgCh, unsub, err := h.notices.Subscribe(ctx, userID)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "internal"})
		return
	}
	defer unsub()

	unread, err := h.notices.UnreadCount(ctx, userID)
	if err != nil {
		h.logger.Warn("sse unread count", zap.Int64("user_id", userID), zap.Error(err))
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	hello, _ := json.Marshal(gin.H{"user_id": userID, "unread": unread})
	fmt.Fprintf(c.Writer, "event: connected\ndata: %s\n\n", hello)
	c.Writer.Flush()
	h.logger.Debug("sse connected", zap.Int64("user_id", userID))

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			writeNotification(c.Writer, msg.Payload)
			c.Writer.Flush()
		case <-ticker.C:
			fmt.Fprint(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()
		case <-ctx.Done():
			h.logger.Debug("sse closed", zap.Int64("user_id", userID))
			return
		}
	}
}

func writeNotification(w gin.ResponseWriter, payload string) {
	var head struct {
		ID int64 `json:"id"`
	}
	if json.Unmarshal([]byte(payload), &head) == nil && head.ID != 0 {
		fmt.Fprintf(w, "id: %d\n", head.ID)
	}
	fmt.Fprintf(w, "event: notification\ndata: %s\n\n", payload)
}
