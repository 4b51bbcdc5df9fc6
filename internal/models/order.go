package models

import "time"

// OrderStatus captures the lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPaid     OrderStatus = "PAID"
	OrderStatusRefunded OrderStatus = "REFUNDED"
)

// Order is one completed checkout. Item prices are frozen at checkout time.
type Order struct {
	ID             string      `db:"id" json:"id"`
	UserID         string      `db:"user_id" json:"user_id"`
	Status         OrderStatus `db:"status" json:"status"`
	Subtotal       int64       `db:"subtotal" json:"subtotal"`
	DiscountAmount int64       `db:"discount_amount" json:"discount_amount"`
	Total          int64       `db:"total" json:"total"`
	VoucherCode    *string     `db:"voucher_code" json:"voucher_code,omitempty"`
	PaymentRef     string      `db:"payment_ref" json:"payment_ref"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}

// OrderItem is one purchased course within an order.
type OrderItem struct {
	ID          string `db:"id" json:"id"`
	OrderID     string `db:"order_id" json:"order_id"`
	CourseID    string `db:"course_id" json:"course_id"`
	CourseTitle string `db:"course_title" json:"course_title"`
	UnitPrice   int64  `db:"unit_price" json:"unit_price"`
}

// OrderDetail bundles an order with its items.
type OrderDetail struct {
	Order
	Items []OrderItem `json:"items"`
}

// OrderFilter constrains order listings.
type OrderFilter struct {
	UserID   string
	Status   OrderStatus
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}
