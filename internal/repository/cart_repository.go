package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edumart/edumart-api/internal/models"
)

// CartRepository handles the single open cart per user and its items.
type CartRepository struct {
	db *sqlx.DB
}

// NewCartRepository constructs the repository.
func NewCartRepository(db *sqlx.DB) *CartRepository {
	return &CartRepository{db: db}
}

// GetOrCreate returns the user's cart, creating it on first use.
func (r *CartRepository) GetOrCreate(ctx context.Context, userID string) (*models.Cart, error) {
	const query = `SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1 LIMIT 1`
	var cart models.Cart
	err := r.db.GetContext(ctx, &cart, query, userID)
	if err == nil {
		return &cart, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("find cart: %w", err)
	}

	now := time.Now().UTC()
	cart = models.Cart{ID: uuid.NewString(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	const insert = `INSERT INTO carts (id, user_id, created_at, updated_at) VALUES (:id, :user_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, insert, &cart); err != nil {
		if IsUniqueViolation(err) {
			// lost a create race; the other request's cart wins
			if err := r.db.GetContext(ctx, &cart, query, userID); err != nil {
				return nil, fmt.Errorf("find cart after race: %w", err)
			}
			return &cart, nil
		}
		return nil, fmt.Errorf("create cart: %w", err)
	}
	return &cart, nil
}

// ListItems returns the cart contents with current course pricing.
func (r *CartRepository) ListItems(ctx context.Context, cartID string) ([]models.CartItemDetail, error) {
	const query = `SELECT i.id, i.cart_id, i.course_id, i.added_at,
	c.title AS course_title, c.cover_image_url, c.price, c.published
	FROM cart_items i
	JOIN courses c ON c.id = i.course_id
	WHERE i.cart_id = $1
	ORDER BY i.added_at ASC`
	var items []models.CartItemDetail
	if err := r.db.SelectContext(ctx, &items, query, cartID); err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	return items, nil
}

// HasItem reports whether the course is already in the cart.
func (r *CartRepository) HasItem(ctx context.Context, cartID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM cart_items WHERE cart_id = $1 AND course_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, cartID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check cart item: %w", err)
	}
	return true, nil
}

// AddItem places a course into the cart.
func (r *CartRepository) AddItem(ctx context.Context, item *models.CartItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now().UTC()
	}
	const query = `INSERT INTO cart_items (id, cart_id, course_id, added_at) VALUES (:id, :cart_id, :course_id, :added_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("add cart item: %w", err)
	}
	return nil
}

// RemoveItem deletes a course from the cart.
func (r *CartRepository) RemoveItem(ctx context.Context, cartID, courseID string) error {
	const query = `DELETE FROM cart_items WHERE cart_id = $1 AND course_id = $2`
	if _, err := r.db.ExecContext(ctx, query, cartID, courseID); err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

// ClearTx empties the cart inside the checkout transaction.
func (r *CartRepository) ClearTx(ctx context.Context, tx *sqlx.Tx, cartID string) error {
	const query = `DELETE FROM cart_items WHERE cart_id = $1`
	if _, err := tx.ExecContext(ctx, query, cartID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
