package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edumart/edumart-api/internal/models"
)

// CourseVersionRepository persists immutable course version snapshots.
type CourseVersionRepository struct {
	db *sqlx.DB
}

// NewCourseVersionRepository constructs the repository.
func NewCourseVersionRepository(db *sqlx.DB) *CourseVersionRepository {
	return &CourseVersionRepository{db: db}
}

const versionColumns = `id, course_id, version_number, status, title, short_description, long_description,
	category_id, price, cover_image_url, difficulty, prerequisites, outcomes, curriculum, created_at`

// NextVersionNumberTx computes the next version number for a course inside
// the submission transaction. Rejected snapshots keep their number, so the
// sequence is derived from the snapshot history, not the live counter.
func (r *CourseVersionRepository) NextVersionNumberTx(ctx context.Context, tx *sqlx.Tx, courseID string) (int, error) {
	const query = `SELECT COALESCE(MAX(version_number), 0) + 1 FROM course_versions WHERE course_id = $1`
	var next int
	if err := tx.GetContext(ctx, &next, query, courseID); err != nil {
		return 0, fmt.Errorf("next version number: %w", err)
	}
	return next, nil
}

// CreateTx inserts a snapshot inside the submission transaction.
func (r *CourseVersionRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, version *models.CourseVersion) error {
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}
	if version.Status == "" {
		version.Status = models.VersionStatusPending
	}
	const query = `INSERT INTO course_versions
	(id, course_id, version_number, status, title, short_description, long_description, category_id,
	 price, cover_image_url, difficulty, prerequisites, outcomes, curriculum, created_at)
	VALUES (:id, :course_id, :version_number, :status, :title, :short_description, :long_description, :category_id,
	 :price, :cover_image_url, :difficulty, :prerequisites, :outcomes, :curriculum, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, version); err != nil {
		return fmt.Errorf("create course version: %w", err)
	}
	return nil
}

// FindByID returns a snapshot by identifier.
func (r *CourseVersionRepository) FindByID(ctx context.Context, id string) (*models.CourseVersion, error) {
	query := fmt.Sprintf(`SELECT %s FROM course_versions WHERE id = $1`, versionColumns)
	var version models.CourseVersion
	if err := r.db.GetContext(ctx, &version, query, id); err != nil {
		return nil, err
	}
	return &version, nil
}

// FindByIDTx is FindByID inside an open transaction.
func (r *CourseVersionRepository) FindByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.CourseVersion, error) {
	query := fmt.Sprintf(`SELECT %s FROM course_versions WHERE id = $1`, versionColumns)
	var version models.CourseVersion
	if err := tx.GetContext(ctx, &version, query, id); err != nil {
		return nil, err
	}
	return &version, nil
}

// SetStatusTx records the review outcome on a snapshot. The content columns
// stay immutable; only the status moves PENDING -> APPROVED/REJECTED.
func (r *CourseVersionRepository) SetStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.VersionStatus) error {
	const query = `UPDATE course_versions SET status = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("set version status: %w", err)
	}
	return nil
}

// LastApproved returns the most recent approved snapshot for a course.
func (r *CourseVersionRepository) LastApproved(ctx context.Context, courseID string) (*models.CourseVersion, error) {
	query := fmt.Sprintf(`SELECT %s FROM course_versions WHERE course_id = $1 AND status = $2
	ORDER BY version_number DESC LIMIT 1`, versionColumns)
	var version models.CourseVersion
	if err := r.db.GetContext(ctx, &version, query, courseID, models.VersionStatusApproved); err != nil {
		return nil, err
	}
	return &version, nil
}

// ListByCourse returns the full snapshot history, newest first.
func (r *CourseVersionRepository) ListByCourse(ctx context.Context, courseID string) ([]models.CourseVersion, error) {
	query := fmt.Sprintf(`SELECT %s FROM course_versions WHERE course_id = $1 ORDER BY version_number DESC`, versionColumns)
	var versions []models.CourseVersion
	if err := r.db.SelectContext(ctx, &versions, query, courseID); err != nil {
		return nil, fmt.Errorf("list course versions: %w", err)
	}
	return versions, nil
}
