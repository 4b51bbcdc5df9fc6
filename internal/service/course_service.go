package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/models"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
)

type courseStore interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	SoftDelete(ctx context.Context, id string) error
}

type categoryStore interface {
	List(ctx context.Context) ([]models.Category, error)
	FindByID(ctx context.Context, id string) (*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
}

type curriculumStore interface {
	GetTree(ctx context.Context, courseID string) ([]models.ChapterWithLectures, error)
	FindChapter(ctx context.Context, id string) (*models.Chapter, error)
	FindLecture(ctx context.Context, id string) (*models.Lecture, error)
	CreateChapter(ctx context.Context, chapter *models.Chapter) error
	UpdateChapter(ctx context.Context, chapter *models.Chapter) error
	DeleteChapter(ctx context.Context, id string) error
	CreateLecture(ctx context.Context, lecture *models.Lecture) error
	UpdateLecture(ctx context.Context, lecture *models.Lecture) error
	DeleteLecture(ctx context.Context, id string) error
}

type pendingReviewChecker interface {
	GetPendingForCourse(ctx context.Context, courseID string) (*models.ModerationRequest, error)
}

type versionHistoryStore interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.CourseVersion, error)
	LastApproved(ctx context.Context, courseID string) (*models.CourseVersion, error)
}

// CourseService covers instructor authoring: drafts, curriculum editing, and
// version history. Edits only touch the draft row; the published copy moves
// exclusively through the review workflow.
type CourseService struct {
	courses    courseStore
	categories categoryStore
	curriculum curriculumStore
	pending    pendingReviewChecker
	versions   versionHistoryStore
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewCourseService constructs the service.
func NewCourseService(
	courses courseStore,
	categories categoryStore,
	curriculum curriculumStore,
	pending pendingReviewChecker,
	versions versionHistoryStore,
	validate *validator.Validate,
	logger *zap.Logger,
) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CourseService{
		courses:    courses,
		categories: categories,
		curriculum: curriculum,
		pending:    pending,
		versions:   versions,
		validator:  validate,
		logger:     logger,
	}
}

// Create stores a new unpublished draft owned by the actor.
func (s *CourseService) Create(ctx context.Context, req dto.CreateCourseRequest, actor *models.JWTClaims) (*models.Course, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if _, err := s.categories.FindByID(ctx, req.CategoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown category")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
	}

	course := &models.Course{
		InstructorID:     actor.UserID,
		CategoryID:       req.CategoryID,
		Title:            req.Title,
		ShortDescription: req.ShortDescription,
		LongDescription:  req.LongDescription,
		Price:            req.Price,
		CoverImageURL:    req.CoverImageURL,
		Difficulty:       req.Difficulty,
		Prerequisites:    req.Prerequisites,
		Outcomes:         req.Outcomes,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// Update applies partial edits to an owned draft.
func (s *CourseService) Update(ctx context.Context, courseID string, req dto.UpdateCourseRequest, actor *models.JWTClaims) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.ownedCourse(ctx, courseID, actor)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		course.Title = *req.Title
	}
	if req.ShortDescription != nil {
		course.ShortDescription = *req.ShortDescription
	}
	if req.LongDescription != nil {
		course.LongDescription = *req.LongDescription
	}
	if req.CategoryID != nil {
		if _, err := s.categories.FindByID(ctx, *req.CategoryID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "unknown category")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load category")
		}
		course.CategoryID = *req.CategoryID
	}
	if req.Price != nil {
		course.Price = *req.Price
	}
	if req.CoverImageURL != nil {
		course.CoverImageURL = *req.CoverImageURL
	}
	if req.Difficulty != nil {
		course.Difficulty = *req.Difficulty
	}
	if req.Prerequisites != nil {
		course.Prerequisites = *req.Prerequisites
	}
	if req.Outcomes != nil {
		course.Outcomes = *req.Outcomes
	}

	if err := s.courses.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// Delete soft deletes an owned course. A course with an open review request
// cannot be deleted until the request is decided.
func (s *CourseService) Delete(ctx context.Context, courseID string, actor *models.JWTClaims) error {
	if _, err := s.ownedCourse(ctx, courseID, actor); err != nil {
		return err
	}
	if _, err := s.pending.GetPendingForCourse(ctx, courseID); err == nil {
		return appErrors.Clone(appErrors.ErrConflict, "course has a pending review request")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending review")
	}
	if err := s.courses.SoftDelete(ctx, courseID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	return nil
}

// Get returns an owned course with its curriculum for the authoring UI.
func (s *CourseService) Get(ctx context.Context, courseID string, actor *models.JWTClaims) (*models.CourseDetail, []models.ChapterWithLectures, error) {
	if _, err := s.ownedCourse(ctx, courseID, actor); err != nil {
		return nil, nil, err
	}
	detail, err := s.courses.FindDetailByID(ctx, courseID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	tree, err := s.curriculum.GetTree(ctx, courseID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}
	return detail, tree, nil
}

// ListMine returns the actor's courses, drafts included.
func (s *CourseService) ListMine(ctx context.Context, query dto.CourseQuery, actor *models.JWTClaims) ([]models.CourseDetail, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.CourseFilter{
		InstructorID: actor.UserID,
		CategoryID:   query.CategoryID,
		Difficulty:   query.Difficulty,
		Search:       query.Search,
		Page:         query.Page,
		PageSize:     query.PageSize,
		SortBy:       query.SortBy,
		SortOrder:    query.SortOrder,
	}
	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, paginationFor(filter.Page, filter.PageSize, total), nil
}

// AddChapter appends a chapter to an owned course.
func (s *CourseService) AddChapter(ctx context.Context, courseID string, req dto.CreateChapterRequest, actor *models.JWTClaims) (*models.Chapter, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid chapter payload")
	}
	if _, err := s.ownedCourse(ctx, courseID, actor); err != nil {
		return nil, err
	}
	chapter := &models.Chapter{CourseID: courseID, Title: req.Title, Position: req.Position}
	if err := s.curriculum.CreateChapter(ctx, chapter); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create chapter")
	}
	return chapter, nil
}

// UpdateChapter renames or reorders an owned chapter.
func (s *CourseService) UpdateChapter(ctx context.Context, chapterID string, req dto.UpdateChapterRequest, actor *models.JWTClaims) (*models.Chapter, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid chapter payload")
	}
	chapter, err := s.ownedChapter(ctx, chapterID, actor)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		chapter.Title = *req.Title
	}
	if req.Position != nil {
		chapter.Position = *req.Position
	}
	if err := s.curriculum.UpdateChapter(ctx, chapter); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update chapter")
	}
	return chapter, nil
}

// DeleteChapter removes an owned chapter and its lectures.
func (s *CourseService) DeleteChapter(ctx context.Context, chapterID string, actor *models.JWTClaims) error {
	if _, err := s.ownedChapter(ctx, chapterID, actor); err != nil {
		return err
	}
	if err := s.curriculum.DeleteChapter(ctx, chapterID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete chapter")
	}
	return nil
}

// AddLecture appends a lecture to an owned chapter.
func (s *CourseService) AddLecture(ctx context.Context, chapterID string, req dto.CreateLectureRequest, actor *models.JWTClaims) (*models.Lecture, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lecture payload")
	}
	if _, err := s.ownedChapter(ctx, chapterID, actor); err != nil {
		return nil, err
	}
	lecture := &models.Lecture{
		ChapterID:       chapterID,
		Title:           req.Title,
		VideoURL:        req.VideoURL,
		DurationSeconds: req.DurationSeconds,
		Position:        req.Position,
		Preview:         req.Preview,
	}
	if err := s.curriculum.CreateLecture(ctx, lecture); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lecture")
	}
	return lecture, nil
}

// UpdateLecture edits an owned lecture.
func (s *CourseService) UpdateLecture(ctx context.Context, lectureID string, req dto.UpdateLectureRequest, actor *models.JWTClaims) (*models.Lecture, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lecture payload")
	}
	lecture, err := s.ownedLecture(ctx, lectureID, actor)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		lecture.Title = *req.Title
	}
	if req.VideoURL != nil {
		lecture.VideoURL = *req.VideoURL
	}
	if req.DurationSeconds != nil {
		lecture.DurationSeconds = *req.DurationSeconds
	}
	if req.Position != nil {
		lecture.Position = *req.Position
	}
	if req.Preview != nil {
		lecture.Preview = *req.Preview
	}
	if err := s.curriculum.UpdateLecture(ctx, lecture); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lecture")
	}
	return lecture, nil
}

// DeleteLecture removes an owned lecture.
func (s *CourseService) DeleteLecture(ctx context.Context, lectureID string, actor *models.JWTClaims) error {
	if _, err := s.ownedLecture(ctx, lectureID, actor); err != nil {
		return err
	}
	if err := s.curriculum.DeleteLecture(ctx, lectureID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lecture")
	}
	return nil
}

// ListVersions returns the snapshot history of an owned course. Reviewers may
// inspect any course's history.
func (s *CourseService) ListVersions(ctx context.Context, courseID string, actor *models.JWTClaims) ([]models.CourseVersion, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.InstructorID != actor.UserID && !actor.Role.CanReview() {
		return nil, appErrors.ErrForbidden
	}
	versions, err := s.versions.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list versions")
	}
	return versions, nil
}

// Diff compares the draft against the last approved snapshot, listing fields
// that would change on the next publish. A course that was never approved
// diffs against the empty snapshot.
func (s *CourseService) Diff(ctx context.Context, courseID string, actor *models.JWTClaims) ([]models.FieldChange, error) {
	course, err := s.ownedCourse(ctx, courseID, actor)
	if err != nil {
		return nil, err
	}
	var approved models.CourseVersion
	last, err := s.versions.LastApproved(ctx, courseID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approved snapshot")
	}
	if last != nil {
		approved = *last
	}
	return diffCourse(course, &approved), nil
}

func (s *CourseService) ownedCourse(ctx context.Context, courseID string, actor *models.JWTClaims) (*models.Course, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.InstructorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	return course, nil
}

func (s *CourseService) ownedChapter(ctx context.Context, chapterID string, actor *models.JWTClaims) (*models.Chapter, error) {
	chapter, err := s.curriculum.FindChapter(ctx, chapterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "chapter not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load chapter")
	}
	if _, err := s.ownedCourse(ctx, chapter.CourseID, actor); err != nil {
		return nil, err
	}
	return chapter, nil
}

func (s *CourseService) ownedLecture(ctx context.Context, lectureID string, actor *models.JWTClaims) (*models.Lecture, error) {
	lecture, err := s.curriculum.FindLecture(ctx, lectureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecture")
	}
	if _, err := s.ownedChapter(ctx, lecture.ChapterID, actor); err != nil {
		return nil, err
	}
	return lecture, nil
}

func diffCourse(course *models.Course, approved *models.CourseVersion) []models.FieldChange {
	var changes []models.FieldChange
	add := func(field, live, draft string) {
		if live != draft {
			changes = append(changes, models.FieldChange{Field: field, Live: live, Draft: draft})
		}
	}
	add("title", approved.Title, course.Title)
	add("short_description", approved.ShortDescription, course.ShortDescription)
	add("long_description", approved.LongDescription, course.LongDescription)
	add("category_id", approved.CategoryID, course.CategoryID)
	add("price", strconv.FormatInt(approved.Price, 10), strconv.FormatInt(course.Price, 10))
	add("cover_image_url", approved.CoverImageURL, course.CoverImageURL)
	add("difficulty", string(approved.Difficulty), string(course.Difficulty))
	add("prerequisites", approved.Prerequisites, course.Prerequisites)
	add("outcomes", approved.Outcomes, course.Outcomes)
	return changes
}

func paginationFor(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 10
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
