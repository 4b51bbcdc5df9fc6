package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/models"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
)

type reviewStoreStub struct {
	db       *sqlx.DB
	upserted []models.Review
	listing  []models.ReviewDetail
}

func (r *reviewStoreStub) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, opts)
}

func (r *reviewStoreStub) UpsertTx(ctx context.Context, tx *sqlx.Tx, review *models.Review) error {
	review.ID = "rev-1"
	r.upserted = append(r.upserted, *review)
	return nil
}

func (r *reviewStoreStub) List(ctx context.Context, filter models.ReviewFilter) ([]models.ReviewDetail, int, error) {
	return r.listing, len(r.listing), nil
}

type ratingUpdaterStub struct {
	recomputed []string
}

func (u *ratingUpdaterStub) UpdateRatingStatsTx(ctx context.Context, tx *sqlx.Tx, courseID string) error {
	u.recomputed = append(u.recomputed, courseID)
	return nil
}

func TestReviewCreate(t *testing.T) {
	db, mock := newMockTxDB(t)
	reviews := &reviewStoreStub{db: db}
	ratings := &ratingUpdaterStub{}
	invalidator := &invalidatorStub{}
	checker := &purchaseCheckerStub{purchased: map[string]bool{"stud-1/course-1": true}}

	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewReviewService(reviews, ratings, checker, invalidator, nil, nil)
	review, err := svc.Create(context.Background(), "course-1", dto.CreateReviewRequest{Rating: 5, Comment: "crystal clear"}, studentClaims())
	require.NoError(t, err)
	require.Equal(t, 5, review.Rating)
	require.Len(t, reviews.upserted, 1)
	require.Equal(t, []string{"course-1"}, ratings.recomputed)
	require.Equal(t, []string{"catalog:*"}, invalidator.patterns)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewCreateRequiresPurchase(t *testing.T) {
	db, _ := newMockTxDB(t)
	reviews := &reviewStoreStub{db: db}
	checker := &purchaseCheckerStub{purchased: map[string]bool{}}

	svc := NewReviewService(reviews, &ratingUpdaterStub{}, checker, nil, nil, nil)
	_, err := svc.Create(context.Background(), "course-1", dto.CreateReviewRequest{Rating: 4}, studentClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	require.Empty(t, reviews.upserted)
}

func TestReviewCreateValidatesRating(t *testing.T) {
	db, _ := newMockTxDB(t)
	reviews := &reviewStoreStub{db: db}
	checker := &purchaseCheckerStub{purchased: map[string]bool{"stud-1/course-1": true}}

	svc := NewReviewService(reviews, &ratingUpdaterStub{}, checker, nil, nil, nil)
	for _, rating := range []int{0, 6} {
		_, err := svc.Create(context.Background(), "course-1", dto.CreateReviewRequest{Rating: rating}, studentClaims())
		require.Error(t, err)
		require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestReviewList(t *testing.T) {
	db, _ := newMockTxDB(t)
	reviews := &reviewStoreStub{db: db, listing: []models.ReviewDetail{
		{Review: models.Review{ID: "rev-1", Rating: 5}, AuthorName: "Dana"},
	}}

	svc := NewReviewService(reviews, &ratingUpdaterStub{}, &purchaseCheckerStub{}, nil, nil, nil)
	result, pagination, err := svc.List(context.Background(), "course-1", dto.ReviewQuery{})
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Equal(t, 1, pagination.TotalCount)
}
