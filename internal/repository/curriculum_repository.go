package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edumart/edumart-api/internal/models"
)

// CurriculumRepository handles the chapter/lecture tree of a course. Chapters
// and lectures are owned by their course and share its lifecycle.
type CurriculumRepository struct {
	db *sqlx.DB
}

// NewCurriculumRepository constructs the repository.
func NewCurriculumRepository(db *sqlx.DB) *CurriculumRepository {
	return &CurriculumRepository{db: db}
}

// GetTree loads the full curriculum for a course, chapters and lectures in
// position order.
func (r *CurriculumRepository) GetTree(ctx context.Context, courseID string) ([]models.ChapterWithLectures, error) {
	const chapterQuery = `SELECT id, course_id, title, position, created_at, updated_at
	FROM chapters WHERE course_id = $1 ORDER BY position ASC`
	var chapters []models.Chapter
	if err := r.db.SelectContext(ctx, &chapters, chapterQuery, courseID); err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	if len(chapters) == 0 {
		return []models.ChapterWithLectures{}, nil
	}

	const lectureQuery = `SELECT l.id, l.chapter_id, l.title, l.video_url, l.duration_seconds, l.position, l.preview, l.created_at, l.updated_at
	FROM lectures l
	JOIN chapters ch ON ch.id = l.chapter_id
	WHERE ch.course_id = $1
	ORDER BY ch.position ASC, l.position ASC`
	var lectures []models.Lecture
	if err := r.db.SelectContext(ctx, &lectures, lectureQuery, courseID); err != nil {
		return nil, fmt.Errorf("list lectures: %w", err)
	}

	byChapter := make(map[string][]models.Lecture, len(chapters))
	for _, lecture := range lectures {
		byChapter[lecture.ChapterID] = append(byChapter[lecture.ChapterID], lecture)
	}

	tree := make([]models.ChapterWithLectures, 0, len(chapters))
	for _, chapter := range chapters {
		tree = append(tree, models.ChapterWithLectures{
			Chapter:  chapter,
			Lectures: byChapter[chapter.ID],
		})
	}
	return tree, nil
}

// FindChapter returns a chapter by identifier.
func (r *CurriculumRepository) FindChapter(ctx context.Context, id string) (*models.Chapter, error) {
	const query = `SELECT id, course_id, title, position, created_at, updated_at FROM chapters WHERE id = $1`
	var chapter models.Chapter
	if err := r.db.GetContext(ctx, &chapter, query, id); err != nil {
		return nil, err
	}
	return &chapter, nil
}

// FindLecture returns a lecture by identifier.
func (r *CurriculumRepository) FindLecture(ctx context.Context, id string) (*models.Lecture, error) {
	const query = `SELECT id, chapter_id, title, video_url, duration_seconds, position, preview, created_at, updated_at FROM lectures WHERE id = $1`
	var lecture models.Lecture
	if err := r.db.GetContext(ctx, &lecture, query, id); err != nil {
		return nil, err
	}
	return &lecture, nil
}

// CreateChapter appends a chapter at the end of the course's chapter list
// unless an explicit position is given.
func (r *CurriculumRepository) CreateChapter(ctx context.Context, chapter *models.Chapter) error {
	if chapter.ID == "" {
		chapter.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	chapter.CreatedAt = now
	chapter.UpdatedAt = now
	if chapter.Position <= 0 {
		const posQuery = `SELECT COALESCE(MAX(position), 0) + 1 FROM chapters WHERE course_id = $1`
		if err := r.db.GetContext(ctx, &chapter.Position, posQuery, chapter.CourseID); err != nil {
			return fmt.Errorf("next chapter position: %w", err)
		}
	}
	const query = `INSERT INTO chapters (id, course_id, title, position, created_at, updated_at)
	VALUES (:id, :course_id, :title, :position, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, chapter); err != nil {
		return fmt.Errorf("create chapter: %w", err)
	}
	return nil
}

// UpdateChapter renames or repositions a chapter.
func (r *CurriculumRepository) UpdateChapter(ctx context.Context, chapter *models.Chapter) error {
	chapter.UpdatedAt = time.Now().UTC()
	const query = `UPDATE chapters SET title = :title, position = :position, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, chapter); err != nil {
		return fmt.Errorf("update chapter: %w", err)
	}
	return nil
}

// DeleteChapter removes a chapter and its lectures.
func (r *CurriculumRepository) DeleteChapter(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete chapter: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if _, err := tx.ExecContext(ctx, `DELETE FROM lectures WHERE chapter_id = $1`, id); err != nil {
		return fmt.Errorf("delete chapter lectures: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chapters WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete chapter: %w", err)
	}
	return tx.Commit()
}

// CreateLecture appends a lecture at the end of its chapter unless an
// explicit position is given.
func (r *CurriculumRepository) CreateLecture(ctx context.Context, lecture *models.Lecture) error {
	if lecture.ID == "" {
		lecture.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	lecture.CreatedAt = now
	lecture.UpdatedAt = now
	if lecture.Position <= 0 {
		const posQuery = `SELECT COALESCE(MAX(position), 0) + 1 FROM lectures WHERE chapter_id = $1`
		if err := r.db.GetContext(ctx, &lecture.Position, posQuery, lecture.ChapterID); err != nil {
			return fmt.Errorf("next lecture position: %w", err)
		}
	}
	const query = `INSERT INTO lectures (id, chapter_id, title, video_url, duration_seconds, position, preview, created_at, updated_at)
	VALUES (:id, :chapter_id, :title, :video_url, :duration_seconds, :position, :preview, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lecture); err != nil {
		return fmt.Errorf("create lecture: %w", err)
	}
	return nil
}

// UpdateLecture updates lecture fields.
func (r *CurriculumRepository) UpdateLecture(ctx context.Context, lecture *models.Lecture) error {
	lecture.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lectures SET title = :title, video_url = :video_url, duration_seconds = :duration_seconds,
	position = :position, preview = :preview, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, lecture); err != nil {
		return fmt.Errorf("update lecture: %w", err)
	}
	return nil
}

// DeleteLecture removes a lecture.
func (r *CurriculumRepository) DeleteLecture(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM lectures WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete lecture: %w", err)
	}
	return nil
}
