package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/models"
	"github.com/edumart/edumart-api/internal/repository"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
)

type cartStore interface {
	GetOrCreate(ctx context.Context, userID string) (*models.Cart, error)
	ListItems(ctx context.Context, cartID string) ([]models.CartItemDetail, error)
	HasItem(ctx context.Context, cartID, courseID string) (bool, error)
	AddItem(ctx context.Context, item *models.CartItem) error
	RemoveItem(ctx context.Context, cartID, courseID string) error
}

type purchaseChecker interface {
	HasPurchased(ctx context.Context, userID, courseID string) (bool, error)
}

type cartCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// CartService manages the user's shopping selection. Prices shown in the cart
// are advisory; the binding price is computed at checkout.
type CartService struct {
	carts   cartStore
	courses cartCourseReader
	orders  purchaseChecker
	logger  *zap.Logger
}

// NewCartService constructs the service.
func NewCartService(carts cartStore, courses cartCourseReader, orders purchaseChecker, logger *zap.Logger) *CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartService{carts: carts, courses: courses, orders: orders, logger: logger}
}

// Get returns the actor's cart with current pricing.
func (s *CartService) Get(ctx context.Context, actor *models.JWTClaims) (*dto.CartView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	cart, err := s.carts.GetOrCreate(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cart")
	}
	items, err := s.carts.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cart items")
	}
	var subtotal int64
	for _, item := range items {
		if item.Published {
			subtotal += item.Price
		}
	}
	if items == nil {
		items = []models.CartItemDetail{}
	}
	return &dto.CartView{Items: items, Subtotal: subtotal}, nil
}

// AddItem places a published course into the actor's cart. Own courses,
// already-owned courses, and duplicates are rejected.
func (s *CartService) AddItem(ctx context.Context, req dto.AddCartItemRequest, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if req.CourseID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "course_id is required")
	}
	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Published {
		return appErrors.Clone(appErrors.ErrValidation, "course is not available for purchase")
	}
	if course.InstructorID == actor.UserID {
		return appErrors.Clone(appErrors.ErrValidation, "you cannot buy your own course")
	}
	owned, err := s.orders.HasPurchased(ctx, actor.UserID, req.CourseID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check purchases")
	}
	if owned {
		return appErrors.Clone(appErrors.ErrConflict, "course already purchased")
	}

	cart, err := s.carts.GetOrCreate(ctx, actor.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cart")
	}
	item := &models.CartItem{CartID: cart.ID, CourseID: req.CourseID}
	if err := s.carts.AddItem(ctx, item); err != nil {
		if repository.IsUniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrConflict, "course is already in the cart")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add cart item")
	}
	return nil
}

// RemoveItem deletes a course from the actor's cart. Removing an absent item
// is a no-op.
func (s *CartService) RemoveItem(ctx context.Context, courseID string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	cart, err := s.carts.GetOrCreate(ctx, actor.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cart")
	}
	if err := s.carts.RemoveItem(ctx, cart.ID, courseID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove cart item")
	}
	return nil
}
