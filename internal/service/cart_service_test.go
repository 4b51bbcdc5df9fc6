package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/models"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
)

type cartRepoStub struct {
	cart    models.Cart
	items   []models.CartItemDetail
	has     map[string]bool
	addErr  error
	added   []models.CartItem
	removed []string
}

func newCartRepoStub() *cartRepoStub {
	return &cartRepoStub{cart: models.Cart{ID: "cart-1", UserID: "stud-1"}, has: make(map[string]bool)}
}

func (c *cartRepoStub) GetOrCreate(ctx context.Context, userID string) (*models.Cart, error) {
	clone := c.cart
	return &clone, nil
}

func (c *cartRepoStub) ListItems(ctx context.Context, cartID string) ([]models.CartItemDetail, error) {
	return c.items, nil
}

func (c *cartRepoStub) HasItem(ctx context.Context, cartID, courseID string) (bool, error) {
	return c.has[courseID], nil
}

func (c *cartRepoStub) AddItem(ctx context.Context, item *models.CartItem) error {
	if c.addErr != nil {
		return c.addErr
	}
	c.added = append(c.added, *item)
	return nil
}

func (c *cartRepoStub) RemoveItem(ctx context.Context, cartID, courseID string) error {
	c.removed = append(c.removed, courseID)
	return nil
}

type courseReaderStub struct {
	courses map[string]*models.Course
}

func (c *courseReaderStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if course, ok := c.courses[id]; ok {
		clone := *course
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

type purchaseCheckerStub struct {
	purchased map[string]bool
}

func (p *purchaseCheckerStub) HasPurchased(ctx context.Context, userID, courseID string) (bool, error) {
	return p.purchased[userID+"/"+courseID], nil
}

func TestCartGetSumsPublishedOnly(t *testing.T) {
	carts := newCartRepoStub()
	carts.items = []models.CartItemDetail{
		{CartItem: models.CartItem{CourseID: "course-1"}, Price: 4900, Published: true},
		{CartItem: models.CartItem{CourseID: "course-2"}, Price: 2600, Published: false},
	}
	svc := NewCartService(carts, &courseReaderStub{}, &purchaseCheckerStub{}, nil)

	view, err := svc.Get(context.Background(), studentClaims())
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	require.Equal(t, int64(4900), view.Subtotal)
}

func TestCartAddItem(t *testing.T) {
	carts := newCartRepoStub()
	courses := &courseReaderStub{courses: map[string]*models.Course{
		"course-1": {ID: "course-1", InstructorID: "inst-1", Published: true},
	}}
	svc := NewCartService(carts, courses, &purchaseCheckerStub{purchased: map[string]bool{}}, nil)

	err := svc.AddItem(context.Background(), dto.AddCartItemRequest{CourseID: "course-1"}, studentClaims())
	require.NoError(t, err)
	require.Len(t, carts.added, 1)
	require.Equal(t, "cart-1", carts.added[0].CartID)
}

func TestCartAddItemRejections(t *testing.T) {
	courses := &courseReaderStub{courses: map[string]*models.Course{
		"unpublished": {ID: "unpublished", InstructorID: "inst-1", Published: false},
		"own":         {ID: "own", InstructorID: "stud-1", Published: true},
		"owned":       {ID: "owned", InstructorID: "inst-1", Published: true},
		"dupe":        {ID: "dupe", InstructorID: "inst-1", Published: true},
	}}
	checker := &purchaseCheckerStub{purchased: map[string]bool{"stud-1/owned": true}}

	cases := []struct {
		name     string
		courseID string
		addErr   error
		wantCode string
	}{
		{name: "missing course", courseID: "ghost", wantCode: appErrors.ErrNotFound.Code},
		{name: "unpublished", courseID: "unpublished", wantCode: appErrors.ErrValidation.Code},
		{name: "own course", courseID: "own", wantCode: appErrors.ErrValidation.Code},
		{name: "already purchased", courseID: "owned", wantCode: appErrors.ErrConflict.Code},
		{name: "duplicate", courseID: "dupe", addErr: &pq.Error{Code: "23505"}, wantCode: appErrors.ErrConflict.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			carts := newCartRepoStub()
			carts.addErr = tc.addErr
			svc := NewCartService(carts, courses, checker, nil)
			err := svc.AddItem(context.Background(), dto.AddCartItemRequest{CourseID: tc.courseID}, studentClaims())
			require.Error(t, err)
			require.Equal(t, tc.wantCode, appErrors.FromError(err).Code)
		})
	}
}

func TestCartRemoveAbsentItemIsNoop(t *testing.T) {
	carts := newCartRepoStub()
	svc := NewCartService(carts, &courseReaderStub{}, &purchaseCheckerStub{}, nil)
	require.NoError(t, svc.RemoveItem(context.Background(), "course-9", studentClaims()))
	require.Equal(t, []string{"course-9"}, carts.removed)
}
