package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesByCode(t *testing.T) {
	err := NotFound("post %d not found", 7)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "post 7 not found", err.Error())
	assert.Equal(t, http.StatusNotFound, err.Status)
}

func TestIs_ThroughWrap(t *testing.T) {
	err := fmt.Errorf("like: %w", Forbidden("blocked"))
	assert.True(t, errors.Is(err, ErrForbidden))

	var ae *Error
	assert.True(t, errors.As(err, &ae))
	assert.Equal(t, http.StatusForbidden, ae.Status)
	assert.Equal(t, "forbidden", ae.Code)
}

func TestConstructors_Status(t *testing.T) {
	assert.Equal(t, http.StatusConflict, Conflict("x").Status)
	assert.Equal(t, http.StatusBadRequest, Validation("x").Status)
	assert.Equal(t, http.StatusUnauthorized, Unauthorized("x").Status)
}
