package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/models"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
)

type authoringCourseStoreStub struct {
	courses map[string]*models.Course
	deleted []string
}

func newAuthoringCourseStoreStub() *authoringCourseStoreStub {
	return &authoringCourseStoreStub{courses: map[string]*models.Course{}}
}

func (c *authoringCourseStoreStub) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	var out []models.CourseDetail
	for _, course := range c.courses {
		if filter.InstructorID != "" && course.InstructorID != filter.InstructorID {
			continue
		}
		out = append(out, models.CourseDetail{Course: *course})
	}
	return out, len(out), nil
}

func (c *authoringCourseStoreStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if course, ok := c.courses[id]; ok {
		clone := *course
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (c *authoringCourseStoreStub) FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	if course, ok := c.courses[id]; ok {
		return &models.CourseDetail{Course: *course}, nil
	}
	return nil, sql.ErrNoRows
}

func (c *authoringCourseStoreStub) Create(ctx context.Context, course *models.Course) error {
	course.ID = "course-1"
	c.courses[course.ID] = course
	return nil
}

func (c *authoringCourseStoreStub) Update(ctx context.Context, course *models.Course) error {
	c.courses[course.ID] = course
	return nil
}

func (c *authoringCourseStoreStub) SoftDelete(ctx context.Context, id string) error {
	c.deleted = append(c.deleted, id)
	delete(c.courses, id)
	return nil
}

type authoringCurriculumStub struct {
	tree     []models.ChapterWithLectures
	chapters map[string]*models.Chapter
	lectures map[string]*models.Lecture
	deleted  []string
}

func newAuthoringCurriculumStub() *authoringCurriculumStub {
	return &authoringCurriculumStub{
		chapters: map[string]*models.Chapter{},
		lectures: map[string]*models.Lecture{},
	}
}

func (c *authoringCurriculumStub) GetTree(ctx context.Context, courseID string) ([]models.ChapterWithLectures, error) {
	return c.tree, nil
}

func (c *authoringCurriculumStub) FindChapter(ctx context.Context, id string) (*models.Chapter, error) {
	if chapter, ok := c.chapters[id]; ok {
		clone := *chapter
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (c *authoringCurriculumStub) FindLecture(ctx context.Context, id string) (*models.Lecture, error) {
	if lecture, ok := c.lectures[id]; ok {
		clone := *lecture
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (c *authoringCurriculumStub) CreateChapter(ctx context.Context, chapter *models.Chapter) error {
	chapter.ID = "ch-new"
	c.chapters[chapter.ID] = chapter
	return nil
}

func (c *authoringCurriculumStub) UpdateChapter(ctx context.Context, chapter *models.Chapter) error {
	c.chapters[chapter.ID] = chapter
	return nil
}

func (c *authoringCurriculumStub) DeleteChapter(ctx context.Context, id string) error {
	c.deleted = append(c.deleted, "chapter:"+id)
	delete(c.chapters, id)
	return nil
}

func (c *authoringCurriculumStub) CreateLecture(ctx context.Context, lecture *models.Lecture) error {
	lecture.ID = "lec-new"
	c.lectures[lecture.ID] = lecture
	return nil
}

func (c *authoringCurriculumStub) UpdateLecture(ctx context.Context, lecture *models.Lecture) error {
	c.lectures[lecture.ID] = lecture
	return nil
}

func (c *authoringCurriculumStub) DeleteLecture(ctx context.Context, id string) error {
	c.deleted = append(c.deleted, "lecture:"+id)
	delete(c.lectures, id)
	return nil
}

type pendingCheckerStub struct {
	pending map[string]*models.ModerationRequest
}

func (p *pendingCheckerStub) GetPendingForCourse(ctx context.Context, courseID string) (*models.ModerationRequest, error) {
	if request, ok := p.pending[courseID]; ok {
		return request, nil
	}
	return nil, sql.ErrNoRows
}

type versionHistoryStub struct {
	versions []models.CourseVersion
	approved *models.CourseVersion
}

func (v *versionHistoryStub) ListByCourse(ctx context.Context, courseID string) ([]models.CourseVersion, error) {
	return v.versions, nil
}

func (v *versionHistoryStub) LastApproved(ctx context.Context, courseID string) (*models.CourseVersion, error) {
	if v.approved == nil {
		return nil, sql.ErrNoRows
	}
	clone := *v.approved
	return &clone, nil
}

type courseServiceFixture struct {
	svc        *CourseService
	courses    *authoringCourseStoreStub
	categories *categoryStoreStub
	curriculum *authoringCurriculumStub
	pending    *pendingCheckerStub
	versions   *versionHistoryStub
}

func newCourseServiceFixture() *courseServiceFixture {
	f := &courseServiceFixture{
		courses:    newAuthoringCourseStoreStub(),
		categories: &categoryStoreStub{categories: []models.Category{{ID: "cat-1", Name: "Programming", Slug: "programming"}}},
		curriculum: newAuthoringCurriculumStub(),
		pending:    &pendingCheckerStub{pending: map[string]*models.ModerationRequest{}},
		versions:   &versionHistoryStub{},
	}
	f.svc = NewCourseService(f.courses, f.categories, f.curriculum, f.pending, f.versions, nil, nil)
	return f
}

func (f *courseServiceFixture) seedCourse(id, instructorID string) *models.Course {
	course := &models.Course{
		ID:           id,
		InstructorID: instructorID,
		CategoryID:   "cat-1",
		Title:        "Go from Scratch",
		Price:        4900,
	}
	f.courses.courses[id] = course
	return course
}

func TestCourseCreate(t *testing.T) {
	f := newCourseServiceFixture()

	course, err := f.svc.Create(context.Background(), dto.CreateCourseRequest{
		Title:            "Go from Scratch",
		ShortDescription: "Learn Go by building things",
		CategoryID:       "cat-1",
		Price:            4900,
		Difficulty:       models.DifficultyBeginner,
	}, instructorClaims())
	require.NoError(t, err)
	require.Equal(t, "inst-1", course.InstructorID)
	require.False(t, course.Published)
}

func TestCourseCreateUnknownCategory(t *testing.T) {
	f := newCourseServiceFixture()

	_, err := f.svc.Create(context.Background(), dto.CreateCourseRequest{
		Title:            "Go from Scratch",
		ShortDescription: "Learn Go by building things",
		CategoryID:       "missing",
	}, instructorClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCourseUpdateOwnedDraft(t *testing.T) {
	f := newCourseServiceFixture()
	f.seedCourse("course-1", "inst-1")

	title := "Go in Depth"
	price := int64(9900)
	course, err := f.svc.Update(context.Background(), "course-1", dto.UpdateCourseRequest{Title: &title, Price: &price}, instructorClaims())
	require.NoError(t, err)
	require.Equal(t, "Go in Depth", course.Title)
	require.Equal(t, int64(9900), course.Price)
}

func TestCourseUpdateForeignCourse(t *testing.T) {
	f := newCourseServiceFixture()
	f.seedCourse("course-1", "inst-2")

	title := "Hijacked"
	_, err := f.svc.Update(context.Background(), "course-1", dto.UpdateCourseRequest{Title: &title}, instructorClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCourseDeleteBlockedByPendingReview(t *testing.T) {
	f := newCourseServiceFixture()
	f.seedCourse("course-1", "inst-1")
	f.pending.pending["course-1"] = &models.ModerationRequest{ID: "mr-1", Status: models.ModerationStatusPending}

	err := f.svc.Delete(context.Background(), "course-1", instructorClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	require.Empty(t, f.courses.deleted)

	delete(f.pending.pending, "course-1")
	require.NoError(t, f.svc.Delete(context.Background(), "course-1", instructorClaims()))
	require.Equal(t, []string{"course-1"}, f.courses.deleted)
}

func TestCourseListMineScopesToActor(t *testing.T) {
	f := newCourseServiceFixture()
	f.seedCourse("course-1", "inst-1")
	f.seedCourse("course-2", "inst-2")

	courses, pagination, err := f.svc.ListMine(context.Background(), dto.CourseQuery{}, instructorClaims())
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.Equal(t, "course-1", courses[0].ID)
	require.Equal(t, 1, pagination.TotalCount)
}

func TestCourseChapterLifecycle(t *testing.T) {
	f := newCourseServiceFixture()
	f.seedCourse("course-1", "inst-1")

	chapter, err := f.svc.AddChapter(context.Background(), "course-1", dto.CreateChapterRequest{Title: "Basics", Position: 1}, instructorClaims())
	require.NoError(t, err)

	title := "Fundamentals"
	updated, err := f.svc.UpdateChapter(context.Background(), chapter.ID, dto.UpdateChapterRequest{Title: &title}, instructorClaims())
	require.NoError(t, err)
	require.Equal(t, "Fundamentals", updated.Title)

	require.NoError(t, f.svc.DeleteChapter(context.Background(), chapter.ID, instructorClaims()))
	require.Contains(t, f.curriculum.deleted, "chapter:"+chapter.ID)
}

func TestCourseLectureOwnershipChain(t *testing.T) {
	f := newCourseServiceFixture()
	f.seedCourse("course-1", "inst-2")
	f.curriculum.chapters["ch-1"] = &models.Chapter{ID: "ch-1", CourseID: "course-1", Title: "Basics"}
	f.curriculum.lectures["lec-1"] = &models.Lecture{ID: "lec-1", ChapterID: "ch-1", Title: "Hello"}

	_, err := f.svc.AddLecture(context.Background(), "ch-1", dto.CreateLectureRequest{Title: "Intro"}, instructorClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = f.svc.DeleteLecture(context.Background(), "lec-1", instructorClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCourseAddLecture(t *testing.T) {
	f := newCourseServiceFixture()
	f.seedCourse("course-1", "inst-1")
	f.curriculum.chapters["ch-1"] = &models.Chapter{ID: "ch-1", CourseID: "course-1", Title: "Basics"}

	lecture, err := f.svc.AddLecture(context.Background(), "ch-1", dto.CreateLectureRequest{
		Title:    "Hello",
		VideoURL: "https://cdn.example.com/1.mp4",
		Preview:  true,
	}, instructorClaims())
	require.NoError(t, err)
	require.True(t, lecture.Preview)
	require.Equal(t, "ch-1", lecture.ChapterID)
}

func TestCourseListVersionsAccess(t *testing.T) {
	f := newCourseServiceFixture()
	f.seedCourse("course-1", "inst-1")
	f.versions.versions = []models.CourseVersion{{ID: "ver-1", CourseID: "course-1", VersionNumber: 1}}

	versions, err := f.svc.ListVersions(context.Background(), "course-1", instructorClaims())
	require.NoError(t, err)
	require.Len(t, versions, 1)

	versions, err = f.svc.ListVersions(context.Background(), "course-1", moderatorClaims())
	require.NoError(t, err)
	require.Len(t, versions, 1)

	_, err = f.svc.ListVersions(context.Background(), "course-1", studentClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCourseDiffAgainstLastApproved(t *testing.T) {
	f := newCourseServiceFixture()
	course := f.seedCourse("course-1", "inst-1")
	course.Title = "Go in Depth"
	course.Price = 9900
	f.versions.approved = &models.CourseVersion{
		CourseID:   "course-1",
		Title:      "Go from Scratch",
		CategoryID: "cat-1",
		Price:      4900,
	}

	changes, err := f.svc.Diff(context.Background(), "course-1", instructorClaims())
	require.NoError(t, err)

	byField := map[string]models.FieldChange{}
	for _, change := range changes {
		byField[change.Field] = change
	}
	require.Contains(t, byField, "title")
	require.Equal(t, "Go from Scratch", byField["title"].Live)
	require.Equal(t, "Go in Depth", byField["title"].Draft)
	require.Contains(t, byField, "price")
	require.NotContains(t, byField, "category_id")
}

func TestCourseDiffNeverApproved(t *testing.T) {
	f := newCourseServiceFixture()
	f.seedCourse("course-1", "inst-1")

	changes, err := f.svc.Diff(context.Background(), "course-1", instructorClaims())
	require.NoError(t, err)

	byField := map[string]models.FieldChange{}
	for _, change := range changes {
		byField[change.Field] = change
	}
	require.Contains(t, byField, "title")
	require.Empty(t, byField["title"].Live)
}
