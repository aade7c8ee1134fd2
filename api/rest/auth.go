package rest

import (
	"net/http"

	mw "github.com/brewbuds/server/middleware"
	"github.com/brewbuds/server/service/user"
	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication REST endpoints.
type AuthHandler struct {
	users *user.Service
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(users *user.Service) *AuthHandler {
	return &AuthHandler{users: users}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required,max=64"`
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req user.SignupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.users.Signup(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, err := h.users.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.users.Logout(c.Request.Context(), mw.GetToken(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Refresh handles POST /api/auth/refresh.
// The old session is ended and a new token issued.
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, err := h.users.Refresh(c.Request.Context(), mw.GetUserID(c), mw.GetToken(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// NicknameCheck handles GET /api/auth/nickname?nickname=...
func (h *AuthHandler) NicknameCheck(c *gin.Context) {
	ok, err := h.users.NicknameAvailable(c.Request.Context(), c.Query("nickname"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": ok})
}
