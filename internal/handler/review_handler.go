package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/service"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
	"github.com/edumart/edumart-api/pkg/response"
)

// ReviewHandler exposes course review endpoints.
type ReviewHandler struct {
	service *service.ReviewService
}

// NewReviewHandler constructs the handler.
func NewReviewHandler(svc *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{service: svc}
}

// Create godoc
// @Summary Review a purchased course
// @Description One review per buyer per course. Submitting again replaces the
// @Description previous review.
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.CreateReviewRequest true "Review payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/reviews [post]
func (h *ReviewHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid review payload"))
		return
	}
	review, err := h.service.Create(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, review, nil)
}

// List godoc
// @Summary List course reviews
// @Tags Reviews
// @Produce json
// @Param id path string true "Course ID"
// @Param min_rating query int false "Minimum rating"
// @Success 200 {object} response.Envelope
// @Router /catalog/courses/{id}/reviews [get]
func (h *ReviewHandler) List(c *gin.Context) {
	var query dto.ReviewQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid review query"))
		return
	}
	reviews, pagination, err := h.service.List(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reviews, pagination)
}
