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

// ReviewRepository persists course reviews.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// BeginTxx starts the review transaction.
func (r *ReviewRepository) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, opts)
}

// UpsertTx creates or updates the user's review for a course inside the
// rating transaction. One review per (course_id, user_id).
func (r *ReviewRepository) UpsertTx(ctx context.Context, tx *sqlx.Tx, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	review.UpdatedAt = now
	const query = `INSERT INTO reviews (id, course_id, user_id, rating, comment, created_at, updated_at)
	VALUES (:id, :course_id, :user_id, :rating, :comment, :created_at, :updated_at)
	ON CONFLICT (course_id, user_id) DO UPDATE
	SET rating = EXCLUDED.rating, comment = EXCLUDED.comment, updated_at = EXCLUDED.updated_at`
	if _, err := tx.NamedExecContext(ctx, query, review); err != nil {
		return fmt.Errorf("upsert review: %w", err)
	}
	return nil
}

// FindByCourseAndUser returns the user's review for a course.
func (r *ReviewRepository) FindByCourseAndUser(ctx context.Context, courseID, userID string) (*models.Review, error) {
	const query = `SELECT id, course_id, user_id, rating, comment, created_at, updated_at
	FROM reviews WHERE course_id = $1 AND user_id = $2 LIMIT 1`
	var review models.Review
	if err := r.db.GetContext(ctx, &review, query, courseID, userID); err != nil {
		return nil, err
	}
	return &review, nil
}

// List returns reviews matching the filter, newest first.
func (r *ReviewRepository) List(ctx context.Context, filter models.ReviewFilter) ([]models.ReviewDetail, int, error) {
	base := `FROM reviews rv LEFT JOIN users u ON u.id = rv.user_id`
	conditions := []string{}
	var args []interface{}

	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		conditions = append(conditions, fmt.Sprintf("rv.course_id = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("rv.user_id = $%d", len(args)))
	}
	if filter.MinRating > 0 {
		args = append(args, filter.MinRating)
		conditions = append(conditions, fmt.Sprintf("rv.rating >= $%d", len(args)))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + joinConditions(conditions)
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

	query := fmt.Sprintf(`SELECT rv.id, rv.course_id, rv.user_id, rv.rating, rv.comment, rv.created_at, rv.updated_at,
	u.full_name AS author_name
	%s ORDER BY rv.created_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var reviews []models.ReviewDetail
	if err := r.db.SelectContext(ctx, &reviews, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}
	return reviews, total, nil
}

func joinConditions(conditions []string) string {
	out := ""
	for i, c := range conditions {
		if i > 0 {
			out += " AND "
		}
		out += c
	}
	return out
}
