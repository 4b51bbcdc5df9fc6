package models

import "time"

// VoucherType distinguishes percentage and fixed-amount discounts.
type VoucherType string

const (
	VoucherTypePercent VoucherType = "PERCENT"
	VoucherTypeFixed   VoucherType = "FIXED"
)

// Voucher is an admin-managed discount code. used_count is incremented
// atomically at checkout and never exceeds usage_limit.
type Voucher struct {
	ID         string      `db:"id" json:"id"`
	Code       string      `db:"code" json:"code"`
	Type       VoucherType `db:"type" json:"type"`
	Value      int64       `db:"value" json:"value"`
	MinTotal   int64       `db:"min_total" json:"min_total"`
	UsageLimit int         `db:"usage_limit" json:"usage_limit"`
	UsedCount  int         `db:"used_count" json:"used_count"`
	Active     bool        `db:"active" json:"active"`
	ExpiresAt  *time.Time  `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"`
}

// Discount computes the amount a voucher takes off the given subtotal. The
// result never exceeds the subtotal.
func (v *Voucher) Discount(subtotal int64) int64 {
	var discount int64
	switch v.Type {
	case VoucherTypePercent:
		discount = subtotal * v.Value / 100
	case VoucherTypeFixed:
		discount = v.Value
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
