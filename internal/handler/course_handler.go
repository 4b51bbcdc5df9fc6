package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/service"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
	"github.com/edumart/edumart-api/pkg/response"
)

// CourseHandler exposes the instructor authoring endpoints for courses,
// chapters and lectures.
type CourseHandler struct {
	service *service.CourseService
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(svc *service.CourseService) *CourseHandler {
	return &CourseHandler{service: svc}
}

// Create godoc
// @Summary Create a draft course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body dto.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /instructor/courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid course payload"))
		return
	}
	course, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, course, nil)
}

// Update godoc
// @Summary Update course draft fields
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.UpdateCourseRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /instructor/courses/{id} [patch]
func (h *CourseHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid update payload"))
		return
	}
	course, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Delete godoc
// @Summary Delete a course
// @Description Soft deletes a course. Courses with a pending review request
// @Description cannot be deleted.
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /instructor/courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Get godoc
// @Summary Course detail for its owner
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /instructor/courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	detail, curriculum, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"course": detail, "curriculum": curriculum}, nil)
}

// ListMine godoc
// @Summary List own courses
// @Tags Courses
// @Produce json
// @Param search query string false "Title search"
// @Param category_id query string false "Category ID"
// @Success 200 {object} response.Envelope
// @Router /instructor/courses [get]
func (h *CourseHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var query dto.CourseQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid course query"))
		return
	}
	courses, pagination, err := h.service.ListMine(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// AddChapter godoc
// @Summary Add a chapter
// @Tags Curriculum
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.CreateChapterRequest true "Chapter payload"
// @Success 201 {object} response.Envelope
// @Router /instructor/courses/{id}/chapters [post]
func (h *CourseHandler) AddChapter(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid chapter payload"))
		return
	}
	chapter, err := h.service.AddChapter(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, chapter, nil)
}

// UpdateChapter godoc
// @Summary Update a chapter
// @Tags Curriculum
// @Accept json
// @Produce json
// @Param id path string true "Chapter ID"
// @Param payload body dto.UpdateChapterRequest true "Chapter payload"
// @Success 200 {object} response.Envelope
// @Router /instructor/chapters/{id} [patch]
func (h *CourseHandler) UpdateChapter(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid chapter payload"))
		return
	}
	chapter, err := h.service.UpdateChapter(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, chapter, nil)
}

// DeleteChapter godoc
// @Summary Delete a chapter and its lectures
// @Tags Curriculum
// @Produce json
// @Param id path string true "Chapter ID"
// @Success 204
// @Router /instructor/chapters/{id} [delete]
func (h *CourseHandler) DeleteChapter(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.DeleteChapter(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddLecture godoc
// @Summary Add a lecture to a chapter
// @Tags Curriculum
// @Accept json
// @Produce json
// @Param id path string true "Chapter ID"
// @Param payload body dto.CreateLectureRequest true "Lecture payload"
// @Success 201 {object} response.Envelope
// @Router /instructor/chapters/{id}/lectures [post]
func (h *CourseHandler) AddLecture(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateLectureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid lecture payload"))
		return
	}
	lecture, err := h.service.AddLecture(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, lecture, nil)
}

// UpdateLecture godoc
// @Summary Update a lecture
// @Tags Curriculum
// @Accept json
// @Produce json
// @Param id path string true "Lecture ID"
// @Param payload body dto.UpdateLectureRequest true "Lecture payload"
// @Success 200 {object} response.Envelope
// @Router /instructor/lectures/{id} [patch]
func (h *CourseHandler) UpdateLecture(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateLectureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid lecture payload"))
		return
	}
	lecture, err := h.service.UpdateLecture(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lecture, nil)
}

// DeleteLecture godoc
// @Summary Delete a lecture
// @Tags Curriculum
// @Produce json
// @Param id path string true "Lecture ID"
// @Success 204
// @Router /instructor/lectures/{id} [delete]
func (h *CourseHandler) DeleteLecture(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.DeleteLecture(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListVersions godoc
// @Summary Version history of a course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /instructor/courses/{id}/versions [get]
func (h *CourseHandler) ListVersions(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	versions, err := h.service.ListVersions(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}

// Diff godoc
// @Summary Draft changes against the live version
// @Description Field level differences between the current draft and the last
// @Description approved snapshot.
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /instructor/courses/{id}/diff [get]
func (h *CourseHandler) Diff(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	changes, err := h.service.Diff(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, changes, nil)
}
