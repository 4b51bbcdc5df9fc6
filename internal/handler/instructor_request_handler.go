package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/models"
	"github.com/edumart/edumart-api/internal/service"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
	"github.com/edumart/edumart-api/pkg/response"
)

// InstructorRequestHandler exposes the instructor application workflow.
type InstructorRequestHandler struct {
	service *service.InstructorRequestService
}

// NewInstructorRequestHandler constructs the handler.
func NewInstructorRequestHandler(svc *service.InstructorRequestService) *InstructorRequestHandler {
	return &InstructorRequestHandler{service: svc}
}

// Apply godoc
// @Summary Apply for the instructor role
// @Description Students may hold one pending application at a time.
// @Tags Instructor requests
// @Accept json
// @Produce json
// @Param payload body dto.ApplyInstructorRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /instructor-requests [post]
func (h *InstructorRequestHandler) Apply(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ApplyInstructorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid application payload"))
		return
	}
	request, err := h.service.Apply(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, request, nil)
}

// Mine godoc
// @Summary Own instructor applications
// @Tags Instructor requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /instructor-requests/mine [get]
func (h *InstructorRequestHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requests, err := h.service.Mine(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// List godoc
// @Summary List instructor applications
// @Tags Instructor requests
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Success 200 {object} response.Envelope
// @Router /admin/instructor-requests [get]
func (h *InstructorRequestHandler) List(c *gin.Context) {
	query := dto.InstructorRequestQuery{
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "page_size"),
	}
	if raw := c.Query("status"); raw != "" {
		parts := strings.Split(raw, ",")
		statuses := make([]models.InstructorRequestStatus, 0, len(parts))
		for _, part := range parts {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			statuses = append(statuses, models.InstructorRequestStatus(part))
		}
		query.Status = statuses
	}
	requests, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Decide godoc
// @Summary Approve or decline an application
// @Description Approval grants the instructor role. Each application is
// @Description decided once.
// @Tags Instructor requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.DecideInstructorRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/instructor-requests/{id}/decision [post]
func (h *InstructorRequestHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.DecideInstructorRequest
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
