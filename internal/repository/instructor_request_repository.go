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

// InstructorRequestRepository persists instructor-role applications. Like
// moderation requests, the one-pending-per-user invariant is a partial unique
// index on (user_id) WHERE status = 'PENDING'.
type InstructorRequestRepository struct {
	db *sqlx.DB
}

// NewInstructorRequestRepository constructs the repository.
func NewInstructorRequestRepository(db *sqlx.DB) *InstructorRequestRepository {
	return &InstructorRequestRepository{db: db}
}

const instructorRequestColumns = `r.id, r.user_id, r.motivation, r.expertise, r.status, r.rejection_reason,
	r.reviewer_note, r.reviewed_by, r.submitted_at, r.decided_at`

// BeginTxx starts a workflow transaction.
func (r *InstructorRequestRepository) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, opts)
}

// Create inserts a new pending application.
func (r *InstructorRequestRepository) Create(ctx context.Context, request *models.InstructorRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.InstructorRequestPending
	}
	if request.SubmittedAt.IsZero() {
		request.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO instructor_requests
	(id, user_id, motivation, expertise, status, rejection_reason, reviewer_note, reviewed_by, submitted_at, decided_at)
	VALUES (:id, :user_id, :motivation, :expertise, :status, :rejection_reason, :reviewer_note, :reviewed_by, :submitted_at, :decided_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create instructor request: %w", err)
	}
	return nil
}

// GetByID fetches an application by identifier.
func (r *InstructorRequestRepository) GetByID(ctx context.Context, id string) (*models.InstructorRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM instructor_requests r WHERE r.id = $1`, instructorRequestColumns)
	var request models.InstructorRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// GetPendingForUser returns the pending application for a user, if any.
func (r *InstructorRequestRepository) GetPendingForUser(ctx context.Context, userID string) (*models.InstructorRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM instructor_requests r WHERE r.user_id = $1 AND r.status = $2 LIMIT 1`, instructorRequestColumns)
	var request models.InstructorRequest
	if err := r.db.GetContext(ctx, &request, query, userID, models.InstructorRequestPending); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns applications matching the filter, oldest first.
func (r *InstructorRequestRepository) List(ctx context.Context, filter models.InstructorRequestFilter) ([]models.InstructorRequestDetail, int, error) {
	base := `FROM instructor_requests r LEFT JOIN users u ON u.id = r.user_id`
	var conditions []string
	var args []interface{}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("r.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("r.user_id = $%d", len(args)))
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

	query := fmt.Sprintf(`SELECT %s, u.full_name AS applicant_name, u.email AS applicant_email
	%s ORDER BY r.submitted_at ASC LIMIT %d OFFSET %d`, instructorRequestColumns, base+clause, size, offset)

	var requests []models.InstructorRequestDetail
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list instructor requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count instructor requests: %w", err)
	}
	return requests, total, nil
}

// DecideInstructorRequestParams carries a reviewer decision.
type DecideInstructorRequestParams struct {
	ID              string
	Status          models.InstructorRequestStatus
	ReviewedBy      string
	DecidedAt       time.Time
	RejectionReason *string
	ReviewerNote    *string
}

// DecideTx applies a reviewer decision inside the caller's transaction, using
// the same conditional-update discipline as course moderation.
func (r *InstructorRequestRepository) DecideTx(ctx context.Context, tx *sqlx.Tx, params DecideInstructorRequestParams) error {
	const query = `UPDATE instructor_requests SET status = $2, reviewed_by = $3, decided_at = $4,
	rejection_reason = $5, reviewer_note = $6
	WHERE id = $1 AND status = $7`
	res, err := tx.ExecContext(ctx, query, params.ID, params.Status, params.ReviewedBy, params.DecidedAt,
		params.RejectionReason, params.ReviewerNote, models.InstructorRequestPending)
	if err != nil {
		return fmt.Errorf("decide instructor request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decide instructor request: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateRoleTx grants the role inside the decision transaction.
func (r *InstructorRequestRepository) UpdateRoleTx(ctx context.Context, tx *sqlx.Tx, userID string, role models.UserRole) error {
	const query = `UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, userID, role, time.Now().UTC()); err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}
