package rest

import (
	"net/http"

	mw "github.com/brewbuds/server/middleware"
	"github.com/brewbuds/server/service/photo"
	"github.com/gin-gonic/gin"
)

// PhotoHandler serves image uploads.
type PhotoHandler struct {
	photos *photo.Service
}

func NewPhotoHandler(photos *photo.Service) *PhotoHandler {
	return &PhotoHandler{photos: photos}
}

// Upload handles POST /api/photos (multipart field "images").
func (h *PhotoHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, err)
		return
	}
	photos, err := h.photos.Upload(c.Request.Context(), mw.GetUserID(c), form.File["images"])
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"photos": photos})
}

// Delete handles DELETE /api/photos/:id.
func (h *PhotoHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.photos.Delete(c.Request.Context(), mw.GetUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
