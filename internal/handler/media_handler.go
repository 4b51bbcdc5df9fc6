package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edumart/edumart-api/internal/service"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
	"github.com/edumart/edumart-api/pkg/response"
)

// MediaHandler exposes signed video streaming and cover image uploads.
type MediaHandler struct {
	service   *service.MediaService
	maxUpload int64
}

// NewMediaHandler constructs the handler.
func NewMediaHandler(service *service.MediaService, maxUpload int64) *MediaHandler {
	if maxUpload <= 0 {
		maxUpload = 5 << 20
	}
	return &MediaHandler{service: service, maxUpload: maxUpload}
}

// LectureStream godoc
// @Summary Signed playback token for a lecture video
// @Description Preview lectures are open to any signed-in user. Other
// @Description lectures require the course in the caller's library.
// @Tags Library
// @Produce json
// @Param id path string true "Lecture ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /library/lectures/{id}/stream [get]
func (h *MediaHandler) LectureStream(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	stream, err := h.service.LectureStream(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stream, nil)
}

// UploadCover godoc
// @Summary Upload a course cover image
// @Tags Courses
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Course ID"
// @Param file formData file true "Image file"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /instructor/courses/{id}/cover [post]
func (h *MediaHandler) UploadCover(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "a file upload is required"))
		return
	}
	if file.Size > h.maxUpload {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "cover image exceeds the size limit"))
		return
	}
	src, err := file.Open()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unreadable file upload"))
		return
	}
	defer src.Close() //nolint:errcheck
	data, err := io.ReadAll(io.LimitReader(src, h.maxUpload))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unreadable file upload"))
		return
	}
	path, err := h.service.UploadCover(c.Request.Context(), c.Param("id"), file.Filename, data, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, gin.H{"path": path}, nil)
}
