package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/models"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
)

type memoryCacheStub struct {
	entries map[string][]byte
	gets    int
	sets    int
}

func newMemoryCacheStub() *memoryCacheStub {
	return &memoryCacheStub{entries: map[string][]byte{}}
}

func (m *memoryCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	m.gets++
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.sets++
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

type catalogCourseStoreStub struct {
	listing  []models.CourseDetail
	details  map[string]*models.CourseDetail
	listHits int
}

func newCatalogCourseStoreStub() *catalogCourseStoreStub {
	return &catalogCourseStoreStub{details: map[string]*models.CourseDetail{}}
}

func (c *catalogCourseStoreStub) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	c.listHits++
	return c.listing, len(c.listing), nil
}

func (c *catalogCourseStoreStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if detail, ok := c.details[id]; ok {
		course := detail.Course
		return &course, nil
	}
	return nil, sql.ErrNoRows
}

func (c *catalogCourseStoreStub) FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	if detail, ok := c.details[id]; ok {
		clone := *detail
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (c *catalogCourseStoreStub) Create(ctx context.Context, course *models.Course) error { return nil }

func (c *catalogCourseStoreStub) Update(ctx context.Context, course *models.Course) error { return nil }

func (c *catalogCourseStoreStub) SoftDelete(ctx context.Context, id string) error { return nil }

type categoryStoreStub struct {
	categories []models.Category
	created    []models.Category
}

func (c *categoryStoreStub) List(ctx context.Context) ([]models.Category, error) {
	return c.categories, nil
}

func (c *categoryStoreStub) FindByID(ctx context.Context, id string) (*models.Category, error) {
	for i := range c.categories {
		if c.categories[i].ID == id {
			return &c.categories[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (c *categoryStoreStub) Create(ctx context.Context, category *models.Category) error {
	category.ID = "cat-1"
	c.created = append(c.created, *category)
	return nil
}

func enabledCacheService() (*CacheService, *memoryCacheStub) {
	repo := newMemoryCacheStub()
	return NewCacheService(repo, nil, time.Minute, nil, true), repo
}

func TestCatalogListCoursesCachesPages(t *testing.T) {
	courses := newCatalogCourseStoreStub()
	courses.listing = []models.CourseDetail{
		{Course: models.Course{ID: "course-1", Title: "Go from Scratch", Published: true}},
	}
	cacheSvc, repo := enabledCacheService()

	svc := NewCatalogService(courses, &categoryStoreStub{}, &curriculumStub{}, cacheSvc, nil)
	query := dto.CourseQuery{Page: 1, PageSize: 20}

	first, pagination, hit, err := svc.ListCourses(context.Background(), query)
	require.NoError(t, err)
	require.False(t, hit)
	require.Len(t, first, 1)
	require.Equal(t, 1, pagination.TotalCount)
	require.Equal(t, 1, repo.sets)

	second, pagination, hit, err := svc.ListCourses(context.Background(), query)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, first[0].ID, second[0].ID)
	require.Equal(t, 1, pagination.TotalCount)
	require.Equal(t, 1, courses.listHits)
}

func TestCatalogListCoursesWithoutCache(t *testing.T) {
	courses := newCatalogCourseStoreStub()

	svc := NewCatalogService(courses, &categoryStoreStub{}, &curriculumStub{}, nil, nil)
	for i := 0; i < 2; i++ {
		_, _, hit, err := svc.ListCourses(context.Background(), dto.CourseQuery{})
		require.NoError(t, err)
		require.False(t, hit)
	}
	require.Equal(t, 2, courses.listHits)
}

func TestCatalogCacheKeyDistinguishesQueries(t *testing.T) {
	base := dto.CourseQuery{Page: 1, PageSize: 20}
	filtered := base
	filtered.CategoryID = "cat-1"
	searched := base
	searched.Search = "Go"

	require.NotEqual(t, catalogCacheKey(base), catalogCacheKey(filtered))
	require.NotEqual(t, catalogCacheKey(base), catalogCacheKey(searched))
	require.Equal(t, catalogCacheKey(searched), catalogCacheKey(dto.CourseQuery{Page: 1, PageSize: 20, Search: "go"}))
}

func TestCatalogGetCourseHidesVideoURLs(t *testing.T) {
	courses := newCatalogCourseStoreStub()
	courses.details["course-1"] = &models.CourseDetail{
		Course: models.Course{ID: "course-1", Title: "Go from Scratch", Published: true},
	}
	tree := []models.ChapterWithLectures{
		{
			Chapter: models.Chapter{ID: "ch-1", Title: "Basics"},
			Lectures: []models.Lecture{
				{ID: "lec-1", Title: "Intro", VideoURL: "https://cdn.example.com/1.mp4", Preview: true},
				{ID: "lec-2", Title: "Setup", VideoURL: "https://cdn.example.com/2.mp4"},
			},
		},
	}

	svc := NewCatalogService(courses, &categoryStoreStub{}, &curriculumStub{tree: tree}, nil, nil)
	view, err := svc.GetCourse(context.Background(), "course-1")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/1.mp4", view.Curriculum[0].Lectures[0].VideoURL)
	require.Empty(t, view.Curriculum[0].Lectures[1].VideoURL)
}

func TestCatalogGetCourseUnpublishedIsNotFound(t *testing.T) {
	courses := newCatalogCourseStoreStub()
	courses.details["course-1"] = &models.CourseDetail{
		Course: models.Course{ID: "course-1", Title: "Draft"},
	}

	svc := NewCatalogService(courses, &categoryStoreStub{}, &curriculumStub{}, nil, nil)
	for _, id := range []string{"course-1", "missing"} {
		_, err := svc.GetCourse(context.Background(), id)
		require.Error(t, err)
		require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	}
}

func TestCatalogCreateCategoryNormalizesAndInvalidates(t *testing.T) {
	categories := &categoryStoreStub{}
	cacheSvc, repo := enabledCacheService()
	repo.entries["catalog:list:stale"] = []byte(`{}`)

	svc := NewCatalogService(newCatalogCourseStoreStub(), categories, &curriculumStub{}, cacheSvc, nil)
	category, err := svc.CreateCategory(context.Background(), dto.CreateCategoryRequest{Name: " Databases ", Slug: " Databases "})
	require.NoError(t, err)
	require.Equal(t, "Databases", category.Name)
	require.Equal(t, "databases", category.Slug)
	require.Empty(t, repo.entries)

	_, err = svc.CreateCategory(context.Background(), dto.CreateCategoryRequest{Name: "  ", Slug: ""})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
