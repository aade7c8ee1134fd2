package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/brewbuds/server/apperr"
	"github.com/brewbuds/server/audit"
	mw "github.com/brewbuds/server/middleware"
	"github.com/brewbuds/server/service/paging"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// respondError writes err as a JSON error body. Unknown errors are attached
// to the context for the logger middleware and hidden behind a 500.
func respondError(c *gin.Context, err error) {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		c.JSON(ae.Status, gin.H{"error": ae.Message, "code": ae.Code})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "code": apperr.ErrNotFound.Code})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": apperr.ErrValidation.Code})
}

// paramID parses a positive integer path parameter, answering 400 otherwise.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name, "code": apperr.ErrValidation.Code})
		return 0, false
	}
	return id, true
}

func pageRequest(c *gin.Context) (paging.Request, bool) {
	var req paging.Request
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return req, false
	}
	return req, true
}

func auditEntry(c *gin.Context, action, targetType string, targetID int64, detail interface{}) audit.Entry {
	return audit.Entry{
		TraceID:    mw.GetTraceID(c),
		UserID:     mw.GetUserID(c),
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Detail:     detail,
		IP:         c.ClientIP(),
	}
}
