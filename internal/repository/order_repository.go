package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edumart/edumart-api/internal/models"
)

// OrderRepository persists orders and their items.
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository constructs the repository.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// BeginTxx starts the checkout transaction.
func (r *OrderRepository) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, opts)
}

// CreateTx inserts an order and its items inside the checkout transaction.
func (r *OrderRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, order *models.Order, items []models.OrderItem) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	const orderQuery = `INSERT INTO orders (id, user_id, status, subtotal, discount_amount, total, voucher_code, payment_ref, created_at)
	VALUES (:id, :user_id, :status, :subtotal, :discount_amount, :total, :voucher_code, :payment_ref, :created_at)`
	if _, err := tx.NamedExecContext(ctx, orderQuery, order); err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	const itemQuery = `INSERT INTO order_items (id, order_id, course_id, course_title, unit_price)
	VALUES (:id, :order_id, :course_id, :course_title, :unit_price)`
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		items[i].OrderID = order.ID
		if _, err := tx.NamedExecContext(ctx, itemQuery, &items[i]); err != nil {
			return fmt.Errorf("create order item: %w", err)
		}
	}
	return nil
}

// FindByID returns an order by identifier.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	const query = `SELECT id, user_id, status, subtotal, discount_amount, total, voucher_code, payment_ref, created_at
	FROM orders WHERE id = $1`
	var order models.Order
	if err := r.db.GetContext(ctx, &order, query, id); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListItems returns the items of an order.
func (r *OrderRepository) ListItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	const query = `SELECT id, order_id, course_id, course_title, unit_price FROM order_items WHERE order_id = $1`
	var items []models.OrderItem
	if err := r.db.SelectContext(ctx, &items, query, orderID); err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return items, nil
}

// List returns orders matching the filter, newest first.
func (r *OrderRepository) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error) {
	base := `FROM orders`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 10
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, user_id, status, subtotal, discount_amount, total, voucher_code, payment_ref, created_at
	%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var orders []models.Order
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	return orders, total, nil
}

// HasPurchased reports whether the user already owns the course through a
// paid order.
func (r *OrderRepository) HasPurchased(ctx context.Context, userID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM order_items i
	JOIN orders o ON o.id = i.order_id
	WHERE o.user_id = $1 AND i.course_id = $2 AND o.status = $3
	LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, userID, courseID, models.OrderStatusPaid); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check purchase: %w", err)
	}
	return true, nil
}

// PurchasedCourses returns the courses the user owns through paid orders,
// most recent purchase first.
func (r *OrderRepository) PurchasedCourses(ctx context.Context, userID string) ([]models.CourseDetail, error) {
	const query = `SELECT c.id, c.instructor_id, c.category_id, c.title, c.short_description, c.long_description,
	c.price, c.cover_image_url, c.difficulty, c.prerequisites, c.outcomes, c.published, c.current_version,
	c.average_rating, c.rating_count, c.student_count, c.deleted, c.created_at, c.updated_at, c.published_at,
	u.full_name AS instructor_name, cat.name AS category_name
	FROM order_items i
	JOIN orders o ON o.id = i.order_id
	JOIN courses c ON c.id = i.course_id
	LEFT JOIN users u ON u.id = c.instructor_id
	LEFT JOIN categories cat ON cat.id = c.category_id
	WHERE o.user_id = $1 AND o.status = $2
	ORDER BY o.created_at DESC`
	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, userID, models.OrderStatusPaid); err != nil {
		return nil, fmt.Errorf("list purchased courses: %w", err)
	}
	return courses, nil
}

// SalesRow is one line of the admin sales export.
type SalesRow struct {
	OrderID     string    `db:"order_id"`
	CreatedAt   time.Time `db:"created_at"`
	BuyerEmail  string    `db:"buyer_email"`
	CourseTitle string    `db:"course_title"`
	UnitPrice   int64     `db:"unit_price"`
	VoucherCode *string   `db:"voucher_code"`
}

// SalesBetween returns paid order lines in the given window for export.
func (r *OrderRepository) SalesBetween(ctx context.Context, from, to time.Time) ([]SalesRow, error) {
	const query = `SELECT o.id AS order_id, o.created_at, u.email AS buyer_email,
	i.course_title, i.unit_price, o.voucher_code
	FROM orders o
	JOIN order_items i ON i.order_id = o.id
	JOIN users u ON u.id = o.user_id
	WHERE o.status = $1 AND o.created_at >= $2 AND o.created_at < $3
	ORDER BY o.created_at ASC`
	var rows []SalesRow
	if err := r.db.SelectContext(ctx, &rows, query, models.OrderStatusPaid, from, to); err != nil {
		return nil, fmt.Errorf("sales export query: %w", err)
	}
	return rows, nil
}
