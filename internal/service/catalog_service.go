package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/models"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
)

// catalogPage is the cached payload for one catalog listing query.
type catalogPage struct {
	Courses    []models.CourseDetail `json:"courses"`
	Pagination models.Pagination     `json:"pagination"`
}

// CatalogCourseView is the public course detail: live fields plus the
// curriculum with video references stripped from non-preview lectures.
type CatalogCourseView struct {
	models.CourseDetail
	Curriculum []models.ChapterWithLectures `json:"curriculum"`
}

// CatalogService serves the public storefront. Listings are read-through
// cached; the moderation workflow invalidates on publish and hide.
type CatalogService struct {
	courses    courseStore
	categories categoryStore
	curriculum curriculumReader
	cache      *CacheService
	logger     *zap.Logger
}

// NewCatalogService constructs the service.
func NewCatalogService(courses courseStore, categories categoryStore, curriculum curriculumReader, cache *CacheService, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{courses: courses, categories: categories, curriculum: curriculum, cache: cache, logger: logger}
}

// ListCourses returns published courses matching the query. The boolean
// reports whether the page was served from cache.
func (s *CatalogService) ListCourses(ctx context.Context, query dto.CourseQuery) ([]models.CourseDetail, *models.Pagination, bool, error) {
	key := catalogCacheKey(query)
	if s.cache.Enabled() {
		var cached catalogPage
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			page := cached.Pagination
			return cached.Courses, &page, true, nil
		}
	}

	filter := models.CourseFilter{
		CategoryID:    query.CategoryID,
		Difficulty:    query.Difficulty,
		Search:        query.Search,
		PublishedOnly: true,
		MinPrice:      query.MinPrice,
		MaxPrice:      query.MaxPrice,
		Page:          query.Page,
		PageSize:      query.PageSize,
		SortBy:        query.SortBy,
		SortOrder:     query.SortOrder,
	}
	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list catalog")
	}
	pagination := paginationFor(filter.Page, filter.PageSize, total)

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, key, catalogPage{Courses: courses, Pagination: *pagination}, 0); err != nil {
			s.logger.Warn("failed to cache catalog page", zap.Error(err))
		}
	}
	return courses, pagination, false, nil
}

// GetCourse returns the public detail of a published course. Video references
// on non-preview lectures are withheld; purchasers read them through their
// library instead.
func (s *CatalogService) GetCourse(ctx context.Context, courseID string) (*CatalogCourseView, error) {
	detail, err := s.courses.FindDetailByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !detail.Published {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	tree, err := s.curriculum.GetTree(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}
	for i := range tree {
		for j := range tree[i].Lectures {
			if !tree[i].Lectures[j].Preview {
				tree[i].Lectures[j].VideoURL = ""
			}
		}
	}
	return &CatalogCourseView{CourseDetail: *detail, Curriculum: tree}, nil
}

// ListCategories returns the catalog categories.
func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	return categories, nil
}

// CreateCategory adds a catalog category. Admin only, enforced by routing.
func (s *CatalogService) CreateCategory(ctx context.Context, req dto.CreateCategoryRequest) (*models.Category, error) {
	category := &models.Category{Name: strings.TrimSpace(req.Name), Slug: strings.ToLower(strings.TrimSpace(req.Slug))}
	if category.Name == "" || category.Slug == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name and slug are required")
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create category")
	}
	if err := s.cache.Invalidate(ctx, "catalog:*"); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
	}
	return category, nil
}

func catalogCacheKey(query dto.CourseQuery) string {
	minPrice, maxPrice := int64(-1), int64(-1)
	if query.MinPrice != nil {
		minPrice = *query.MinPrice
	}
	if query.MaxPrice != nil {
		maxPrice = *query.MaxPrice
	}
	return fmt.Sprintf("catalog:list:%s:%s:%s:%d:%d:%d:%d:%s:%s",
		query.CategoryID, query.Difficulty, strings.ToLower(query.Search),
		minPrice, maxPrice, query.Page, query.PageSize, query.SortBy, strings.ToUpper(query.SortOrder))
}
