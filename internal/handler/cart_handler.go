package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/models"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
	"github.com/edumart/edumart-api/pkg/response"
)

type cartService interface {
	Get(ctx context.Context, actor *models.JWTClaims) (*dto.CartView, error)
	AddItem(ctx context.Context, req dto.AddCartItemRequest, actor *models.JWTClaims) error
	RemoveItem(ctx context.Context, courseID string, actor *models.JWTClaims) error
}

// CartHandler exposes the shopping cart endpoints.
type CartHandler struct {
	service cartService
}

// NewCartHandler constructs the handler.
func NewCartHandler(service cartService) *CartHandler {
	return &CartHandler{service: service}
}

// Get godoc
// @Summary Current cart contents
// @Tags Cart
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /cart [get]
func (h *CartHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "cart service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	cart, err := h.service.Get(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cart, nil)
}

// AddItem godoc
// @Summary Add a course to the cart
// @Tags Cart
// @Accept json
// @Produce json
// @Param payload body dto.AddCartItemRequest true "Item payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /cart/items [post]
func (h *CartHandler) AddItem(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "cart service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid item payload"))
		return
	}
	if err := h.service.AddItem(c.Request.Context(), req, claims); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, gin.H{"course_id": req.CourseID}, nil)
}

// RemoveItem godoc
// @Summary Remove a course from the cart
// @Tags Cart
// @Produce json
// @Param id path string true "Course ID"
// @Success 204
// @Router /cart/items/{id} [delete]
func (h *CartHandler) RemoveItem(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "cart service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.RemoveItem(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
