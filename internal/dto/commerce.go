package dto

import "github.com/edumart/edumart-api/internal/models"

// AddCartItemRequest payload for placing a course in the cart.
type AddCartItemRequest struct {
	CourseID string `json:"course_id" validate:"required"`
}

// CheckoutRequest payload for converting the cart into an order. The payment
// reference is an opaque token from the external payment collaborator.
type CheckoutRequest struct {
	VoucherCode string `json:"voucher_code"`
	PaymentRef  string `json:"payment_ref" validate:"required"`
}

// CartView is the computed cart returned to clients.
type CartView struct {
	Items    []models.CartItemDetail `json:"items"`
	Subtotal int64                   `json:"subtotal"`
}

// OrderQuery mirrors order listing filters.
type OrderQuery struct {
	Status   models.OrderStatus `form:"status"`
	Page     int                `form:"page"`
	PageSize int                `form:"page_size"`
}

// CreateVoucherRequest payload for admin voucher creation.
type CreateVoucherRequest struct {
	Code       string             `json:"code" validate:"required,min=3,max=40"`
	Type       models.VoucherType `json:"type" validate:"required,oneof=PERCENT FIXED"`
	Value      int64              `json:"value" validate:"required,gt=0"`
	MinTotal   int64              `json:"min_total" validate:"gte=0"`
	UsageLimit int                `json:"usage_limit" validate:"gte=0"`
	ExpiresAt  *string            `json:"expires_at"`
}

// UpdateVoucherRequest payload for editing voucher terms.
type UpdateVoucherRequest struct {
	Value      *int64  `json:"value" validate:"omitempty,gt=0"`
	MinTotal   *int64  `json:"min_total" validate:"omitempty,gte=0"`
	UsageLimit *int    `json:"usage_limit" validate:"omitempty,gte=0"`
	Active     *bool   `json:"active"`
	ExpiresAt  *string `json:"expires_at"`
}

// VoucherPreview reports the terms and the computed discount a voucher would
// grant against the supplied subtotal, without redeeming it.
type VoucherPreview struct {
	Code      string             `json:"code"`
	Type      models.VoucherType `json:"type"`
	Value     int64              `json:"value"`
	MinTotal  int64              `json:"min_total"`
	Discount  int64              `json:"discount"`
	ExpiresAt *string            `json:"expires_at,omitempty"`
}

// CreateReviewRequest payload for rating a purchased course.
type CreateReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// ReviewQuery mirrors review listing filters.
type ReviewQuery struct {
	MinRating int `form:"min_rating"`
	Page      int `form:"page"`
	PageSize  int `form:"page_size"`
}

// SalesExportQuery bounds the admin sales export window.
type SalesExportQuery struct {
	From string `form:"from" validate:"required"`
	To   string `form:"to" validate:"required"`
}
