package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/models"
	"github.com/edumart/edumart-api/internal/repository"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
)

type instructorRequestStore interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	Create(ctx context.Context, request *models.InstructorRequest) error
	GetByID(ctx context.Context, id string) (*models.InstructorRequest, error)
	GetPendingForUser(ctx context.Context, userID string) (*models.InstructorRequest, error)
	List(ctx context.Context, filter models.InstructorRequestFilter) ([]models.InstructorRequestDetail, int, error)
	DecideTx(ctx context.Context, tx *sqlx.Tx, params repository.DecideInstructorRequestParams) error
	UpdateRoleTx(ctx context.Context, tx *sqlx.Tx, userID string, role models.UserRole) error
}

type instructorUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// InstructorRequestService handles student applications for the instructor
// role and the admin decisions on them. It mirrors the course moderation
// discipline: one pending application per user, decisions are final.
type InstructorRequestService struct {
	requests  instructorRequestStore
	users     instructorUserReader
	audit     auditLogger
	notifier  Notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInstructorRequestService constructs the service.
func NewInstructorRequestService(
	requests instructorRequestStore,
	users instructorUserReader,
	audit auditLogger,
	notifier Notifier,
	validate *validator.Validate,
	logger *zap.Logger,
) *InstructorRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &InstructorRequestService{
		requests:  requests,
		users:     users,
		audit:     audit,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
	}
}

// Apply opens a pending application for the actor. Users who already hold the
// instructor role, or who have one in flight, are turned away.
func (s *InstructorRequestService) Apply(ctx context.Context, req dto.ApplyInstructorRequest, actor *models.JWTClaims) (*models.InstructorRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}

	user, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrConflict, "account already holds an elevated role")
	}

	request := &models.InstructorRequest{
		UserID:      actor.UserID,
		Motivation:  strings.TrimSpace(req.Motivation),
		Expertise:   strings.TrimSpace(req.Expertise),
		Status:      models.InstructorRequestPending,
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.requests.Create(ctx, request); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an application is already pending")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
	}
	return request, nil
}

// Mine returns the actor's latest application state, pending or decided.
func (s *InstructorRequestService) Mine(ctx context.Context, actor *models.JWTClaims) ([]models.InstructorRequestDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	requests, _, err := s.requests.List(ctx, models.InstructorRequestFilter{UserID: actor.UserID, PageSize: 100})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	return requests, nil
}

// List returns applications for admin review.
func (s *InstructorRequestService) List(ctx context.Context, query dto.InstructorRequestQuery) ([]models.InstructorRequestDetail, *models.Pagination, error) {
	filter := models.InstructorRequestFilter{
		Status:   query.Status,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	requests, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	return requests, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Decide resolves an application. Approval grants the instructor role in the
// same transaction as the status change; rejection records the reason.
func (s *InstructorRequestService) Decide(ctx context.Context, requestID string, req dto.DecideInstructorRequest, actor *models.JWTClaims) (*models.InstructorRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if req.Status != models.InstructorRequestApproved && req.Status != models.InstructorRequestRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be APPROVED or REJECTED")
	}
	if req.Status == models.InstructorRequestRejected && strings.TrimSpace(req.RejectionReason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection requires a reason")
	}

	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if request.Status != models.InstructorRequestPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "application already decided")
	}

	now := time.Now().UTC()
	tx, err := s.requests.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open decision transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	params := repository.DecideInstructorRequestParams{
		ID:           requestID,
		Status:       req.Status,
		ReviewedBy:   actor.UserID,
		DecidedAt:    now,
		ReviewerNote: optionalString(req.ReviewerNote),
	}
	if req.Status == models.InstructorRequestRejected {
		params.RejectionReason = optionalString(req.RejectionReason)
	}
	if err := s.requests.DecideTx(ctx, tx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "application already decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}
	if req.Status == models.InstructorRequestApproved {
		if err := s.requests.UpdateRoleTx(ctx, tx, request.UserID, models.RoleInstructor); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grant role")
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit decision")
	}

	request.Status = req.Status
	request.ReviewedBy = &actor.UserID
	request.DecidedAt = &now
	request.ReviewerNote = params.ReviewerNote
	request.RejectionReason = params.RejectionReason

	action := models.AuditActionInstructorGrant
	body := "Your instructor application was approved. You can now create courses."
	if req.Status == models.InstructorRequestRejected {
		action = models.AuditActionInstructorDecline
		reason := ""
		if request.RejectionReason != nil {
			reason = *request.RejectionReason
		}
		body = "Your instructor application was declined: " + reason
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "instructor_request",
		ResourceID: &request.ID,
		NewValues:  mustJSON(map[string]interface{}{"status": request.Status, "user_id": request.UserID}),
	})
	if s.notifier != nil {
		s.notifier.Dispatch(models.Notification{
			UserID:   request.UserID,
			Category: models.NotificationInstructorResult,
			Title:    "Instructor application decided",
			Body:     body,
		})
	}
	return request, nil
}

func (s *InstructorRequestService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "instructor-request-service"
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
