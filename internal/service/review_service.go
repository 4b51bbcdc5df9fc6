package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/models"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
)

type reviewStore interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	UpsertTx(ctx context.Context, tx *sqlx.Tx, review *models.Review) error
	List(ctx context.Context, filter models.ReviewFilter) ([]models.ReviewDetail, int, error)
}

type ratingUpdater interface {
	UpdateRatingStatsTx(ctx context.Context, tx *sqlx.Tx, courseID string) error
}

// ReviewService handles course ratings. Only purchasers review, one review
// per course each; re-posting replaces the earlier review and the course's
// aggregate rating is recomputed in the same transaction.
type ReviewService struct {
	reviews   reviewStore
	courses   ratingUpdater
	orders    purchaseChecker
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReviewService constructs the service.
func NewReviewService(reviews reviewStore, courses ratingUpdater, orders purchaseChecker, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReviewService{reviews: reviews, courses: courses, orders: orders, cache: cache, validator: validate, logger: logger}
}

// Create stores or replaces the actor's review of a purchased course.
func (s *ReviewService) Create(ctx context.Context, courseID string, req dto.CreateReviewRequest, actor *models.JWTClaims) (*models.Review, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	owned, err := s.orders.HasPurchased(ctx, actor.UserID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check purchases")
	}
	if !owned {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only purchasers can review a course")
	}

	review := &models.Review{
		CourseID: courseID,
		UserID:   actor.UserID,
		Rating:   req.Rating,
		Comment:  req.Comment,
	}

	tx, err := s.reviews.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open review transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := s.reviews.UpsertTx(ctx, tx, review); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store review")
	}
	if err := s.courses.UpdateRatingStatsTx(ctx, tx, courseID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update rating stats")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit review")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, "catalog:*"); err != nil {
			s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
		}
	}
	return review, nil
}

// List returns a course's reviews, newest first.
func (s *ReviewService) List(ctx context.Context, courseID string, query dto.ReviewQuery) ([]models.ReviewDetail, *models.Pagination, error) {
	filter := models.ReviewFilter{
		CourseID:  courseID,
		MinRating: query.MinRating,
		Page:      query.Page,
		PageSize:  query.PageSize,
	}
	reviews, total, err := s.reviews.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	return reviews, paginationFor(filter.Page, filter.PageSize, total), nil
}
