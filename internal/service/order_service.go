package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/models"
	"github.com/edumart/edumart-api/pkg/export"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
)

type orderStore interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	CreateTx(ctx context.Context, tx *sqlx.Tx, order *models.Order, items []models.OrderItem) error
	FindByID(ctx context.Context, id string) (*models.Order, error)
	ListItems(ctx context.Context, orderID string) ([]models.OrderItem, error)
	List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error)
	HasPurchased(ctx context.Context, userID, courseID string) (bool, error)
	PurchasedCourses(ctx context.Context, userID string) ([]models.CourseDetail, error)
}

type checkoutCartStore interface {
	GetOrCreate(ctx context.Context, userID string) (*models.Cart, error)
	ListItems(ctx context.Context, cartID string) ([]models.CartItemDetail, error)
	ClearTx(ctx context.Context, tx *sqlx.Tx, cartID string) error
}

type voucherStore interface {
	FindByCode(ctx context.Context, code string) (*models.Voucher, error)
	RedeemTx(ctx context.Context, tx *sqlx.Tx, code string, now time.Time) error
}

type studentCounter interface {
	IncrementStudentCountTx(ctx context.Context, tx *sqlx.Tx, courseID string) error
}

// OrderService turns carts into orders. Checkout freezes item prices, redeems
// the voucher, grants access, and empties the cart in one transaction.
type OrderService struct {
	orders   orderStore
	carts    checkoutCartStore
	vouchers voucherStore
	courses  studentCounter
	audit    auditLogger
	notifier Notifier
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewOrderService constructs the service.
func NewOrderService(
	orders orderStore,
	carts checkoutCartStore,
	vouchers voucherStore,
	courses studentCounter,
	audit auditLogger,
	notifier Notifier,
	logger *zap.Logger,
) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		orders:   orders,
		carts:    carts,
		vouchers: vouchers,
		courses:  courses,
		audit:    audit,
		notifier: notifier,
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

// Checkout converts the actor's cart into a paid order. Items that went
// unpublished since they were added abort the checkout so the buyer can
// remove them deliberately.
func (s *OrderService) Checkout(ctx context.Context, req dto.CheckoutRequest, actor *models.JWTClaims) (*models.OrderDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if strings.TrimSpace(req.PaymentRef) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payment_ref is required")
	}

	cart, err := s.carts.GetOrCreate(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cart")
	}
	items, err := s.carts.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cart items")
	}
	if len(items) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cart is empty")
	}

	var subtotal int64
	orderItems := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		if !item.Published {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("course %q is no longer available", item.CourseTitle))
		}
		owned, err := s.orders.HasPurchased(ctx, actor.UserID, item.CourseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check purchases")
		}
		if owned {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("course %q is already purchased", item.CourseTitle))
		}
		subtotal += item.Price
		orderItems = append(orderItems, models.OrderItem{
			CourseID:    item.CourseID,
			CourseTitle: item.CourseTitle,
			UnitPrice:   item.Price,
		})
	}

	var voucher *models.Voucher
	var voucherCode *string
	var discount int64
	if code := strings.TrimSpace(req.VoucherCode); code != "" {
		voucher, err = s.vouchers.FindByCode(ctx, code)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "unknown voucher code")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load voucher")
		}
		if err := validateVoucher(voucher, subtotal); err != nil {
			return nil, err
		}
		discount = voucher.Discount(subtotal)
		upper := strings.ToUpper(code)
		voucherCode = &upper
	}

	now := time.Now().UTC()
	tx, err := s.orders.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open checkout transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	if voucher != nil {
		if err := s.vouchers.RedeemTx(ctx, tx, voucher.Code, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrConflict, "voucher is no longer redeemable")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to redeem voucher")
		}
	}

	order := &models.Order{
		UserID:         actor.UserID,
		Status:         models.OrderStatusPaid,
		Subtotal:       subtotal,
		DiscountAmount: discount,
		Total:          subtotal - discount,
		VoucherCode:    voucherCode,
		PaymentRef:     strings.TrimSpace(req.PaymentRef),
		CreatedAt:      now,
	}
	if err := s.orders.CreateTx(ctx, tx, order, orderItems); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create order")
	}
	for _, item := range orderItems {
		if err := s.courses.IncrementStudentCountTx(ctx, tx, item.CourseID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grant course access")
		}
	}
	if err := s.carts.ClearTx(ctx, tx, cart.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear cart")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit checkout")
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     "ORDER_CREATE",
		Resource:   "order",
		ResourceID: &order.ID,
		NewValues:  mustJSON(map[string]interface{}{"total": order.Total, "items": len(orderItems)}),
	})
	if s.notifier != nil {
		s.notifier.Dispatch(models.Notification{
			UserID:   actor.UserID,
			Category: models.NotificationOrderCompleted,
			Title:    "Purchase complete",
			Body:     fmt.Sprintf("Your order for %d course(s) is confirmed.", len(orderItems)),
		})
	}
	return &models.OrderDetail{Order: *order, Items: orderItems}, nil
}

// Get returns one order with items. Buyers see their own orders; admins any.
func (s *OrderService) Get(ctx context.Context, orderID string, actor *models.JWTClaims) (*models.OrderDetail, error) {
	order, err := s.accessibleOrder(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}
	items, err := s.orders.ListItems(ctx, orderID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order items")
	}
	return &models.OrderDetail{Order: *order, Items: items}, nil
}

// List returns the actor's purchase history; admins see every order.
func (s *OrderService) List(ctx context.Context, query dto.OrderQuery, actor *models.JWTClaims) ([]models.Order, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.OrderFilter{
		Status:   query.Status,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if actor.Role != models.RoleAdmin {
		filter.UserID = actor.UserID
	}
	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list orders")
	}
	return orders, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Library returns the actor's purchased courses.
func (s *OrderService) Library(ctx context.Context, actor *models.JWTClaims) ([]models.CourseDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	courses, err := s.orders.PurchasedCourses(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list library")
	}
	return courses, nil
}

// HasPurchased reports whether the user owns the course.
func (s *OrderService) HasPurchased(ctx context.Context, userID, courseID string) (bool, error) {
	return s.orders.HasPurchased(ctx, userID, courseID)
}

// Invoice renders the order as a PDF document.
func (s *OrderService) Invoice(ctx context.Context, orderID string, actor *models.JWTClaims) ([]byte, error) {
	detail, err := s.Get(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}
	dataset := export.Dataset{
		Headers: []string{"Course", "Price"},
	}
	for _, item := range detail.Items {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Course": item.CourseTitle,
			"Price":  formatAmount(item.UnitPrice),
		})
	}
	dataset.Rows = append(dataset.Rows,
		map[string]string{"Course": "Subtotal", "Price": formatAmount(detail.Subtotal)},
		map[string]string{"Course": "Discount", "Price": formatAmount(-detail.DiscountAmount)},
		map[string]string{"Course": "Total", "Price": formatAmount(detail.Total)},
	)
	payload, err := s.pdf.Render(dataset, fmt.Sprintf("Invoice %s", detail.ID))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render invoice")
	}
	return payload, nil
}

func (s *OrderService) accessibleOrder(ctx context.Context, orderID string, actor *models.JWTClaims) (*models.Order, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load order")
	}
	if order.UserID != actor.UserID && actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	return order, nil
}

func (s *OrderService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "order-service"
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

// validateVoucher checks redeemability ahead of the atomic redemption so the
// buyer gets a specific error message.
func validateVoucher(voucher *models.Voucher, subtotal int64) error {
	if !voucher.Active {
		return appErrors.Clone(appErrors.ErrValidation, "voucher is not active")
	}
	if voucher.ExpiresAt != nil && time.Now().UTC().After(*voucher.ExpiresAt) {
		return appErrors.Clone(appErrors.ErrValidation, "voucher has expired")
	}
	if voucher.UsageLimit > 0 && voucher.UsedCount >= voucher.UsageLimit {
		return appErrors.Clone(appErrors.ErrValidation, "voucher usage limit reached")
	}
	if subtotal < voucher.MinTotal {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("order total below voucher minimum of %s", formatAmount(voucher.MinTotal)))
	}
	return nil
}

func formatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
