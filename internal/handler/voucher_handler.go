package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/service"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
	"github.com/edumart/edumart-api/pkg/response"
)

// VoucherHandler exposes voucher management and validation endpoints.
type VoucherHandler struct {
	service *service.VoucherService
}

// NewVoucherHandler constructs the handler.
func NewVoucherHandler(svc *service.VoucherService) *VoucherHandler {
	return &VoucherHandler{service: svc}
}

// List godoc
// @Summary List vouchers
// @Tags Vouchers
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/vouchers [get]
func (h *VoucherHandler) List(c *gin.Context) {
	vouchers, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vouchers, nil)
}

// Create godoc
// @Summary Create a voucher
// @Tags Vouchers
// @Accept json
// @Produce json
// @Param payload body dto.CreateVoucherRequest true "Voucher payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/vouchers [post]
func (h *VoucherHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid voucher payload"))
		return
	}
	voucher, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, voucher, nil)
}

// Update godoc
// @Summary Update a voucher
// @Description The voucher code is immutable. Other fields can change.
// @Tags Vouchers
// @Accept json
// @Produce json
// @Param code path string true "Voucher code"
// @Param payload body dto.UpdateVoucherRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/vouchers/{code} [patch]
func (h *VoucherHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid voucher payload"))
		return
	}
	voucher, err := h.service.Update(c.Request.Context(), c.Param("code"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, voucher, nil)
}

// Preview godoc
// @Summary Check whether a voucher applies to a subtotal
// @Tags Vouchers
// @Produce json
// @Param code path string true "Voucher code"
// @Param subtotal query int false "Cart subtotal in minor units"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /vouchers/{code}/validate [get]
func (h *VoucherHandler) Preview(c *gin.Context) {
	subtotal, err := strconv.ParseInt(c.DefaultQuery("subtotal", "0"), 10, 64)
	if err != nil || subtotal < 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "subtotal must be a non-negative integer"))
		return
	}
	preview, err := h.service.Preview(c.Request.Context(), c.Param("code"), subtotal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview, nil)
}
