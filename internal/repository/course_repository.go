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

// CourseRepository handles persistence of canonical course records.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseColumns = `c.id, c.instructor_id, c.category_id, c.title, c.short_description, c.long_description,
	c.price, c.cover_image_url, c.difficulty, c.prerequisites, c.outcomes, c.published, c.current_version,
	c.average_rating, c.rating_count, c.student_count, c.deleted, c.created_at, c.updated_at, c.published_at`

// List returns courses filtered by the provided criteria.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	base := `FROM courses c
LEFT JOIN users u ON u.id = c.instructor_id
LEFT JOIN categories cat ON cat.id = c.category_id`
	conditions := []string{"c.deleted = FALSE"}
	var args []interface{}

	if filter.PublishedOnly {
		conditions = append(conditions, "c.published = TRUE")
	}
	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("c.instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if filter.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("c.category_id = $%d", len(args)+1))
		args = append(args, filter.CategoryID)
	}
	if filter.Difficulty != "" {
		conditions = append(conditions, fmt.Sprintf("c.difficulty = $%d", len(args)+1))
		args = append(args, filter.Difficulty)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(c.title) LIKE $%d OR LOWER(c.short_description) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("c.price >= $%d", len(args)+1))
		args = append(args, *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("c.price <= $%d", len(args)+1))
		args = append(args, *filter.MaxPrice)
	}

	clause := " WHERE " + strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"created_at":     "c.created_at",
		"published_at":   "c.published_at",
		"price":          "c.price",
		"title":          "c.title",
		"average_rating": "c.average_rating",
		"student_count":  "c.student_count",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "c.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf(`SELECT %s, u.full_name AS instructor_name, cat.name AS category_name
	%s ORDER BY %s %s LIMIT %d OFFSET %d`, courseColumns, base+clause, orderBy, order, size, offset)

	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course by its ID, excluding soft-deleted rows.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses c WHERE c.id = $1 AND c.deleted = FALSE`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindDetailByID returns a course with instructor and category info.
func (r *CourseRepository) FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	query := fmt.Sprintf(`SELECT %s, u.full_name AS instructor_name, cat.name AS category_name
	FROM courses c
	LEFT JOIN users u ON u.id = c.instructor_id
	LEFT JOIN categories cat ON cat.id = c.category_id
	WHERE c.id = $1 AND c.deleted = FALSE`, courseColumns)
	var detail models.CourseDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create persists a new draft course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	if course.Difficulty == "" {
		course.Difficulty = models.DifficultyBeginner
	}
	const query = `INSERT INTO courses
	(id, instructor_id, category_id, title, short_description, long_description, price, cover_image_url,
	 difficulty, prerequisites, outcomes, published, current_version, average_rating, rating_count,
	 student_count, deleted, created_at, updated_at, published_at)
	VALUES (:id, :instructor_id, :category_id, :title, :short_description, :long_description, :price, :cover_image_url,
	 :difficulty, :prerequisites, :outcomes, :published, :current_version, :average_rating, :rating_count,
	 :student_count, :deleted, :created_at, :updated_at, :published_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update updates the editable fields of a course. Edits never touch the
// published flag or version counter; those move only through promotion.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET category_id = :category_id, title = :title,
	short_description = :short_description, long_description = :long_description, price = :price,
	cover_image_url = :cover_image_url, difficulty = :difficulty, prerequisites = :prerequisites,
	outcomes = :outcomes, updated_at = :updated_at
	WHERE id = :id AND deleted = FALSE`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// SoftDelete flags a course as deleted and unpublishes it.
func (r *CourseRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE courses SET deleted = TRUE, published = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("soft delete course: %w", err)
	}
	return nil
}

// Unpublish clears the published flag. It succeeds only when the course is
// currently published; version counter and moderation history stay untouched.
func (r *CourseRepository) Unpublish(ctx context.Context, id string) error {
	const query = `UPDATE courses SET published = FALSE, updated_at = $2 WHERE id = $1 AND published = TRUE AND deleted = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("unpublish course: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unpublish course: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// PromoteVersionTx replaces the live course fields wholesale from an approved
// snapshot inside the caller's transaction, bumping the version counter and
// publish flag.
func (r *CourseRepository) PromoteVersionTx(ctx context.Context, tx *sqlx.Tx, version *models.CourseVersion, publishedAt time.Time) error {
	const query = `UPDATE courses SET
	title = $2, short_description = $3, long_description = $4, category_id = $5, price = $6,
	cover_image_url = $7, difficulty = $8, prerequisites = $9, outcomes = $10,
	published = TRUE, current_version = $11, published_at = $12, updated_at = $12
	WHERE id = $1 AND deleted = FALSE`
	res, err := tx.ExecContext(ctx, query,
		version.CourseID, version.Title, version.ShortDescription, version.LongDescription,
		version.CategoryID, version.Price, version.CoverImageURL, version.Difficulty,
		version.Prerequisites, version.Outcomes, version.VersionNumber, publishedAt)
	if err != nil {
		return fmt.Errorf("promote course version: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("promote course version: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IncrementStudentCountTx bumps the student counter for each purchased course
// inside the checkout transaction.
func (r *CourseRepository) IncrementStudentCountTx(ctx context.Context, tx *sqlx.Tx, courseID string) error {
	const query = `UPDATE courses SET student_count = student_count + 1, updated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, courseID, time.Now().UTC()); err != nil {
		return fmt.Errorf("increment student count: %w", err)
	}
	return nil
}

// UpdateRatingStatsTx recomputes and stores the aggregate rating inside the
// review transaction.
func (r *CourseRepository) UpdateRatingStatsTx(ctx context.Context, tx *sqlx.Tx, courseID string) error {
	const query = `UPDATE courses SET
	average_rating = COALESCE((SELECT AVG(rating)::numeric(3,2) FROM reviews WHERE course_id = $1), 0),
	rating_count = (SELECT COUNT(*) FROM reviews WHERE course_id = $1),
	updated_at = $2
	WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, courseID, time.Now().UTC()); err != nil {
		return fmt.Errorf("update rating stats: %w", err)
	}
	return nil
}

// BeginTxx starts a database transaction for multi-repository workflows.
func (r *CourseRepository) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, opts)
}
