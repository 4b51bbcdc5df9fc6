package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/models"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
	"github.com/edumart/edumart-api/pkg/response"
)

type moderationService interface {
	SubmitForReview(ctx context.Context, courseID string, actor *models.JWTClaims) (*models.ModerationRequest, error)
	Decide(ctx context.Context, requestID string, req dto.DecideModerationRequest, actor *models.JWTClaims) (*models.ModerationRequest, error)
	Hide(ctx context.Context, courseID string, reason string, actor *models.JWTClaims) error
	List(ctx context.Context, query dto.ModerationQuery, actor *models.JWTClaims) ([]models.ModerationRequestDetail, *models.Pagination, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ModerationRequestDetail, *models.CourseVersion, error)
}

// ModerationHandler exposes the review workflow endpoints.
type ModerationHandler struct {
	service moderationService
}

// NewModerationHandler constructs the handler.
func NewModerationHandler(service moderationService) *ModerationHandler {
	return &ModerationHandler{service: service}
}

// Submit godoc
// @Summary Submit a course for review
// @Description Snapshots the draft and opens a review request. A course can
// @Description hold at most one pending request.
// @Tags Moderation
// @Produce json
// @Param id path string true "Course ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /instructor/courses/{id}/submit [post]
func (h *ModerationHandler) Submit(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "moderation service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.service.SubmitForReview(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, request, nil)
}

// List godoc
// @Summary List review requests
// @Description Reviewers see all requests. Instructors see requests for their
// @Description own courses only.
// @Tags Moderation
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param course_id query string false "Course ID"
// @Success 200 {object} response.Envelope
// @Router /moderation/requests [get]
func (h *ModerationHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "moderation service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.ModerationQuery{
		CourseID:  strings.TrimSpace(c.Query("course_id")),
		SortOrder: c.Query("sort_order"),
	}
	if raw := c.Query("status"); raw != "" {
		parts := strings.Split(raw, ",")
		statuses := make([]models.ModerationStatus, 0, len(parts))
		for _, part := range parts {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			statuses = append(statuses, models.ModerationStatus(part))
		}
		query.Status = statuses
	}
	query.Page = queryInt(c, "page")
	query.PageSize = queryInt(c, "page_size")
	requests, pagination, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Get godoc
// @Summary Review request detail
// @Description Request metadata plus the immutable version snapshot under
// @Description review.
// @Tags Moderation
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /moderation/requests/{id} [get]
func (h *ModerationHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "moderation service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, version, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"request": request, "version": version}, nil)
}

// Decide godoc
// @Summary Approve or reject a review request
// @Description Approval promotes the snapshot live and publishes the course.
// @Description Rejection requires a reason. Each request is decided once.
// @Tags Moderation
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.DecideModerationRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /moderation/requests/{id}/decision [post]
func (h *ModerationHandler) Decide(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "moderation service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.DecideModerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}
	request, err := h.service.Decide(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Hide godoc
// @Summary Hide a published course
// @Description Unpublishes a live course without touching its drafts or
// @Description version history.
// @Tags Moderation
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.HideCourseRequest true "Hide payload"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /moderation/courses/{id}/hide [post]
func (h *ModerationHandler) Hide(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "moderation service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.HideCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Reason) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "a reason is required"))
		return
	}
	if err := h.service.Hide(c.Request.Context(), c.Param("id"), req.Reason, claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
