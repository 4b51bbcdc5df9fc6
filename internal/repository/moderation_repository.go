package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/edumart/edumart-api/internal/models"
)

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation, used to map the one-pending-per-course index to a conflict.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// ModerationRepository persists course review requests. The one-pending-per
// course invariant is carried by a partial unique index on
// (course_id) WHERE status = 'PENDING', so concurrent submissions race on the
// database, not on a query-then-insert check.
type ModerationRepository struct {
	db *sqlx.DB
}

// NewModerationRepository constructs the repository.
func NewModerationRepository(db *sqlx.DB) *ModerationRepository {
	return &ModerationRepository{db: db}
}

const moderationColumns = `m.id, m.course_id, m.version_id, m.instructor_id, m.status, m.rejection_reason,
	m.reviewer_note, m.reviewed_by, m.submitted_at, m.decided_at`

// BeginTxx starts a workflow transaction.
func (r *ModerationRepository) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, opts)
}

// CreateTx inserts a new pending request inside the submission transaction.
func (r *ModerationRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, request *models.ModerationRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.ModerationStatusPending
	}
	if request.SubmittedAt.IsZero() {
		request.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO moderation_requests
	(id, course_id, version_id, instructor_id, status, rejection_reason, reviewer_note, reviewed_by, submitted_at, decided_at)
	VALUES (:id, :course_id, :version_id, :instructor_id, :status, :rejection_reason, :reviewer_note, :reviewed_by, :submitted_at, :decided_at)`
	if _, err := tx.NamedExecContext(ctx, query, request); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create moderation request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *ModerationRepository) GetByID(ctx context.Context, id string) (*models.ModerationRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM moderation_requests m WHERE m.id = $1`, moderationColumns)
	var request models.ModerationRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// GetDetailByID fetches a request with course and submitter info.
func (r *ModerationRepository) GetDetailByID(ctx context.Context, id string) (*models.ModerationRequestDetail, error) {
	query := fmt.Sprintf(`SELECT %s, c.title AS course_title, u.full_name AS instructor_name, v.version_number
	FROM moderation_requests m
	LEFT JOIN courses c ON c.id = m.course_id
	LEFT JOIN users u ON u.id = m.instructor_id
	LEFT JOIN course_versions v ON v.id = m.version_id
	WHERE m.id = $1`, moderationColumns)
	var detail models.ModerationRequestDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetPendingForCourse returns the pending request for a course, if any.
func (r *ModerationRepository) GetPendingForCourse(ctx context.Context, courseID string) (*models.ModerationRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM moderation_requests m WHERE m.course_id = $1 AND m.status = $2 LIMIT 1`, moderationColumns)
	var request models.ModerationRequest
	if err := r.db.GetContext(ctx, &request, query, courseID, models.ModerationStatusPending); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns requests matching the filter with total count. The default
// order is oldest submissions first so reviewers work the backlog in order.
func (r *ModerationRepository) List(ctx context.Context, filter models.ModerationFilter) ([]models.ModerationRequestDetail, int, error) {
	base := `FROM moderation_requests m
LEFT JOIN courses c ON c.id = m.course_id
LEFT JOIN users u ON u.id = m.instructor_id
LEFT JOIN course_versions v ON v.id = m.version_id`
	var conditions []string
	var args []interface{}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("m.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		conditions = append(conditions, fmt.Sprintf("m.course_id = $%d", len(args)))
	}
	if filter.InstructorID != "" {
		args = append(args, filter.InstructorID)
		conditions = append(conditions, fmt.Sprintf("m.instructor_id = $%d", len(args)))
	}
	if filter.ReviewerID != "" {
		args = append(args, filter.ReviewerID)
		conditions = append(conditions, fmt.Sprintf("m.reviewed_by = $%d", len(args)))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf(`SELECT %s, c.title AS course_title, u.full_name AS instructor_name, v.version_number
	%s ORDER BY m.submitted_at %s LIMIT %d OFFSET %d`, moderationColumns, base+clause, order, size, offset)

	var requests []models.ModerationRequestDetail
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list moderation requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count moderation requests: %w", err)
	}
	return requests, total, nil
}

// DecideModerationParams carries a reviewer decision.
type DecideModerationParams struct {
	ID              string
	Status          models.ModerationStatus
	ReviewedBy      string
	DecidedAt       time.Time
	RejectionReason *string
	ReviewerNote    *string
}

// DecideTx applies a reviewer decision inside the caller's transaction. The
// conditional WHERE status = 'PENDING' makes a second decision on the same
// request report sql.ErrNoRows instead of silently overwriting.
func (r *ModerationRepository) DecideTx(ctx context.Context, tx *sqlx.Tx, params DecideModerationParams) error {
	const query = `UPDATE moderation_requests SET status = $2, reviewed_by = $3, decided_at = $4,
	rejection_reason = $5, reviewer_note = $6
	WHERE id = $1 AND status = $7`
	res, err := tx.ExecContext(ctx, query, params.ID, params.Status, params.ReviewedBy, params.DecidedAt,
		params.RejectionReason, params.ReviewerNote, models.ModerationStatusPending)
	if err != nil {
		return fmt.Errorf("decide moderation request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decide moderation request: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
