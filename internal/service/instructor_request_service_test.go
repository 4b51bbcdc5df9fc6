package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/models"
	"github.com/edumart/edumart-api/internal/repository"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
)

type instructorRequestStoreStub struct {
	db        *sqlx.DB
	requests  map[string]*models.InstructorRequest
	createErr error
	decideErr error
	roles     map[string]models.UserRole
}

func newInstructorRequestStoreStub(db *sqlx.DB) *instructorRequestStoreStub {
	return &instructorRequestStoreStub{
		db:       db,
		requests: make(map[string]*models.InstructorRequest),
		roles:    make(map[string]models.UserRole),
	}
}

func (s *instructorRequestStoreStub) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return s.db.BeginTxx(ctx, opts)
}

func (s *instructorRequestStoreStub) Create(ctx context.Context, request *models.InstructorRequest) error {
	if s.createErr != nil {
		return s.createErr
	}
	request.ID = "app-1"
	s.requests[request.ID] = request
	return nil
}

func (s *instructorRequestStoreStub) GetByID(ctx context.Context, id string) (*models.InstructorRequest, error) {
	if request, ok := s.requests[id]; ok {
		clone := *request
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (s *instructorRequestStoreStub) GetPendingForUser(ctx context.Context, userID string) (*models.InstructorRequest, error) {
	for _, request := range s.requests {
		if request.UserID == userID && request.Status == models.InstructorRequestPending {
			clone := *request
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *instructorRequestStoreStub) List(ctx context.Context, filter models.InstructorRequestFilter) ([]models.InstructorRequestDetail, int, error) {
	result := make([]models.InstructorRequestDetail, 0, len(s.requests))
	for _, request := range s.requests {
		if filter.UserID != "" && request.UserID != filter.UserID {
			continue
		}
		result = append(result, models.InstructorRequestDetail{InstructorRequest: *request})
	}
	return result, len(result), nil
}

func (s *instructorRequestStoreStub) DecideTx(ctx context.Context, tx *sqlx.Tx, params repository.DecideInstructorRequestParams) error {
	if s.decideErr != nil {
		return s.decideErr
	}
	request, ok := s.requests[params.ID]
	if !ok || request.Status != models.InstructorRequestPending {
		return sql.ErrNoRows
	}
	request.Status = params.Status
	request.ReviewedBy = &params.ReviewedBy
	request.DecidedAt = &params.DecidedAt
	request.RejectionReason = params.RejectionReason
	return nil
}

func (s *instructorRequestStoreStub) UpdateRoleTx(ctx context.Context, tx *sqlx.Tx, userID string, role models.UserRole) error {
	s.roles[userID] = role
	return nil
}

type userReaderStub struct {
	users map[string]*models.User
}

func (u *userReaderStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := u.users[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func validApplication() dto.ApplyInstructorRequest {
	return dto.ApplyInstructorRequest{
		Motivation: "I have taught distributed systems for six years and want to publish here.",
		Expertise:  "Distributed systems, Go, PostgreSQL",
	}
}

func TestInstructorApply(t *testing.T) {
	db, _ := newMockTxDB(t)
	requests := newInstructorRequestStoreStub(db)
	users := &userReaderStub{users: map[string]*models.User{
		"stud-1": {ID: "stud-1", Role: models.RoleStudent},
	}}

	svc := NewInstructorRequestService(requests, users, nil, nil, nil, nil)
	request, err := svc.Apply(context.Background(), validApplication(), studentClaims())
	require.NoError(t, err)
	require.Equal(t, models.InstructorRequestPending, request.Status)
	require.Equal(t, "stud-1", request.UserID)
}

func TestInstructorApplyRejectsElevatedRole(t *testing.T) {
	db, _ := newMockTxDB(t)
	requests := newInstructorRequestStoreStub(db)
	users := &userReaderStub{users: map[string]*models.User{
		"stud-1": {ID: "stud-1", Role: models.RoleInstructor},
	}}

	svc := NewInstructorRequestService(requests, users, nil, nil, nil, nil)
	_, err := svc.Apply(context.Background(), validApplication(), studentClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestInstructorApplyDuplicatePendingConflicts(t *testing.T) {
	db, _ := newMockTxDB(t)
	requests := newInstructorRequestStoreStub(db)
	requests.createErr = &pq.Error{Code: "23505"}
	users := &userReaderStub{users: map[string]*models.User{
		"stud-1": {ID: "stud-1", Role: models.RoleStudent},
	}}

	svc := NewInstructorRequestService(requests, users, nil, nil, nil, nil)
	_, err := svc.Apply(context.Background(), validApplication(), studentClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestInstructorDecideApproveGrantsRole(t *testing.T) {
	db, mock := newMockTxDB(t)
	requests := newInstructorRequestStoreStub(db)
	requests.requests["app-1"] = &models.InstructorRequest{
		ID:     "app-1",
		UserID: "stud-1",
		Status: models.InstructorRequestPending,
	}
	audit := &auditStub{}
	notifier := &notifierStub{}

	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewInstructorRequestService(requests, &userReaderStub{}, audit, notifier, nil, nil)
	decided, err := svc.Decide(context.Background(), "app-1", dto.DecideInstructorRequest{Status: models.InstructorRequestApproved}, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, models.InstructorRequestApproved, decided.Status)
	require.Equal(t, models.RoleInstructor, requests.roles["stud-1"])
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionInstructorGrant, audit.logs[0].Action)
	require.Len(t, notifier.sent, 1)
	require.Equal(t, models.NotificationInstructorResult, notifier.sent[0].Category)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInstructorDecideRejectKeepsRole(t *testing.T) {
	db, mock := newMockTxDB(t)
	requests := newInstructorRequestStoreStub(db)
	requests.requests["app-1"] = &models.InstructorRequest{
		ID:     "app-1",
		UserID: "stud-1",
		Status: models.InstructorRequestPending,
	}

	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewInstructorRequestService(requests, &userReaderStub{}, nil, nil, nil, nil)
	decided, err := svc.Decide(context.Background(), "app-1", dto.DecideInstructorRequest{
		Status:          models.InstructorRequestRejected,
		RejectionReason: "expertise could not be verified",
	}, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, models.InstructorRequestRejected, decided.Status)
	require.NotNil(t, decided.RejectionReason)
	require.Empty(t, requests.roles)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInstructorDecideTwiceConflicts(t *testing.T) {
	db, _ := newMockTxDB(t)
	requests := newInstructorRequestStoreStub(db)
	requests.requests["app-1"] = &models.InstructorRequest{
		ID:     "app-1",
		UserID: "stud-1",
		Status: models.InstructorRequestApproved,
	}

	svc := NewInstructorRequestService(requests, &userReaderStub{}, nil, nil, nil, nil)
	_, err := svc.Decide(context.Background(), "app-1", dto.DecideInstructorRequest{Status: models.InstructorRequestApproved}, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestInstructorDecideRejectRequiresReason(t *testing.T) {
	db, _ := newMockTxDB(t)
	svc := NewInstructorRequestService(newInstructorRequestStoreStub(db), &userReaderStub{}, nil, nil, nil, nil)
	_, err := svc.Decide(context.Background(), "app-1", dto.DecideInstructorRequest{Status: models.InstructorRequestRejected}, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
