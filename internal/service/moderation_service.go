package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/models"
	"github.com/edumart/edumart-api/internal/repository"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
)

type moderationStore interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	CreateTx(ctx context.Context, tx *sqlx.Tx, request *models.ModerationRequest) error
	GetByID(ctx context.Context, id string) (*models.ModerationRequest, error)
	GetDetailByID(ctx context.Context, id string) (*models.ModerationRequestDetail, error)
	List(ctx context.Context, filter models.ModerationFilter) ([]models.ModerationRequestDetail, int, error)
	DecideTx(ctx context.Context, tx *sqlx.Tx, params repository.DecideModerationParams) error
}

type moderationVersionStore interface {
	NextVersionNumberTx(ctx context.Context, tx *sqlx.Tx, courseID string) (int, error)
	CreateTx(ctx context.Context, tx *sqlx.Tx, version *models.CourseVersion) error
	FindByID(ctx context.Context, id string) (*models.CourseVersion, error)
	FindByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.CourseVersion, error)
	SetStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.VersionStatus) error
}

type moderationCourseStore interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	PromoteVersionTx(ctx context.Context, tx *sqlx.Tx, version *models.CourseVersion, publishedAt time.Time) error
	Unpublish(ctx context.Context, id string) error
}

type curriculumReader interface {
	GetTree(ctx context.Context, courseID string) ([]models.ChapterWithLectures, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Notifier delivers a workflow notification after the triggering transaction
// has committed.
type Notifier interface {
	Dispatch(n models.Notification)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// ModerationService runs the course review workflow: instructors submit a
// frozen snapshot, reviewers approve, reject, or retract published content.
type ModerationService struct {
	requests   moderationStore
	versions   moderationVersionStore
	courses    moderationCourseStore
	curriculum curriculumReader
	audit      auditLogger
	notifier   Notifier
	cache      cacheInvalidator
	logger     *zap.Logger
}

// ModerationServiceOption configures the service.
type ModerationServiceOption func(*ModerationService)

// WithModerationNotifier wires post-decision notification delivery.
func WithModerationNotifier(n Notifier) ModerationServiceOption {
	return func(s *ModerationService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithModerationCacheInvalidator wires catalog cache invalidation on publish
// and hide.
func WithModerationCacheInvalidator(c cacheInvalidator) ModerationServiceOption {
	return func(s *ModerationService) {
		if c != nil {
			s.cache = c
		}
	}
}

// NewModerationService constructs the service.
func NewModerationService(
	requests moderationStore,
	versions moderationVersionStore,
	courses moderationCourseStore,
	curriculum curriculumReader,
	audit auditLogger,
	logger *zap.Logger,
	opts ...ModerationServiceOption,
) *ModerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ModerationService{
		requests:   requests,
		versions:   versions,
		courses:    courses,
		curriculum: curriculum,
		audit:      audit,
		logger:     logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// SubmitForReview freezes the course's current state into a new version
// snapshot and opens a pending review request. The snapshot and the request
// are created in one transaction; a concurrent second submission loses on the
// pending-request uniqueness constraint.
func (s *ModerationService) SubmitForReview(ctx context.Context, courseID string, actor *models.JWTClaims) (*models.ModerationRequest, error) {
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
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course owner may submit it for review")
	}

	tree, err := s.curriculum.GetTree(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}
	if err := validateCurriculum(tree); err != nil {
		return nil, err
	}
	curriculumJSON, err := json.Marshal(tree)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to serialize curriculum")
	}

	tx, err := s.requests.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open submission transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	versionNumber, err := s.versions.NextVersionNumberTx(ctx, tx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate version number")
	}

	version := snapshotCourse(course, versionNumber, curriculumJSON)
	if err := s.versions.CreateTx(ctx, tx, version); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store version snapshot")
	}

	request := &models.ModerationRequest{
		CourseID:     courseID,
		VersionID:    version.ID,
		InstructorID: actor.UserID,
		Status:       models.ModerationStatusPending,
		SubmittedAt:  time.Now().UTC(),
	}
	if err := s.requests.CreateTx(ctx, tx, request); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course already has a pending review request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create review request")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit submission")
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionCourseSubmit,
		Resource:   "course",
		ResourceID: &courseID,
		NewValues:  mustJSON(map[string]interface{}{"request_id": request.ID, "version": versionNumber}),
	})
	return request, nil
}

// Decide applies a reviewer decision. Approval promotes the snapshot into the
// live course and publishes it; rejection records the reason and leaves the
// course untouched. Either way the decision is final for that request.
func (s *ModerationService) Decide(ctx context.Context, requestID string, req dto.DecideModerationRequest, actor *models.JWTClaims) (*models.ModerationRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.CanReview() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "reviewer role required")
	}
	if req.Status != models.ModerationStatusApproved && req.Status != models.ModerationStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be APPROVED or REJECTED")
	}
	if req.Status == models.ModerationStatusRejected && strings.TrimSpace(req.RejectionReason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection requires a reason")
	}

	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "review request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review request")
	}
	if request.Status != models.ModerationStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "review request already decided")
	}

	now := time.Now().UTC()
	tx, err := s.requests.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open decision transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	params := repository.DecideModerationParams{
		ID:           requestID,
		Status:       req.Status,
		ReviewedBy:   actor.UserID,
		DecidedAt:    now,
		ReviewerNote: optionalString(req.ReviewerNote),
	}
	if req.Status == models.ModerationStatusRejected {
		params.RejectionReason = optionalString(req.RejectionReason)
	}
	if err := s.requests.DecideTx(ctx, tx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "review request already decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}

	versionStatus := models.VersionStatusRejected
	if req.Status == models.ModerationStatusApproved {
		versionStatus = models.VersionStatusApproved
	}
	if err := s.versions.SetStatusTx(ctx, tx, request.VersionID, versionStatus); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update snapshot status")
	}

	if req.Status == models.ModerationStatusApproved {
		version, err := s.versions.FindByIDTx(ctx, tx, request.VersionID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version snapshot")
		}
		if err := s.courses.PromoteVersionTx(ctx, tx, version, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrConflict, "course no longer exists")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish course")
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

	s.afterDecision(ctx, request, actor)
	return request, nil
}

// Hide retracts a published course from the catalog. The moderation history
// and version counter are untouched, so the instructor can resubmit later.
func (s *ModerationService) Hide(ctx context.Context, courseID string, reason string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !actor.Role.CanReview() {
		return appErrors.Clone(appErrors.ErrForbidden, "reviewer role required")
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if err := s.courses.Unpublish(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "course is not published")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hide course")
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionCourseHide,
		Resource:   "course",
		ResourceID: &courseID,
		NewValues:  mustJSON(map[string]string{"reason": reason}),
	})
	if s.notifier != nil {
		s.notifier.Dispatch(models.Notification{
			UserID:   course.InstructorID,
			Category: models.NotificationCourseHidden,
			Title:    "Course removed from catalog",
			Body:     fmt.Sprintf("%q was hidden by a moderator: %s", course.Title, reason),
			CourseID: &courseID,
		})
	}
	s.invalidateCatalog(ctx)
	return nil
}

// List returns review requests. Reviewers see everything; instructors only
// their own submissions.
func (s *ModerationService) List(ctx context.Context, query dto.ModerationQuery, actor *models.JWTClaims) ([]models.ModerationRequestDetail, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.ModerationFilter{
		Status:    query.Status,
		CourseID:  query.CourseID,
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortOrder: query.SortOrder,
	}
	switch {
	case actor.Role.CanReview():
		// full visibility
	case actor.Role == models.RoleInstructor:
		filter.InstructorID = actor.UserID
	default:
		return nil, nil, appErrors.ErrForbidden
	}
	requests, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list review requests")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 10
	}
	return requests, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one review request with its snapshot, enforcing visibility.
func (s *ModerationService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ModerationRequestDetail, *models.CourseVersion, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	detail, err := s.requests.GetDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "review request not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review request")
	}
	if !actor.Role.CanReview() && detail.InstructorID != actor.UserID {
		return nil, nil, appErrors.ErrForbidden
	}
	version, err := s.versions.FindByID(ctx, detail.VersionID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version snapshot")
	}
	return detail, version, nil
}

func (s *ModerationService) afterDecision(ctx context.Context, request *models.ModerationRequest, actor *models.JWTClaims) {
	action := models.AuditActionCourseApprove
	category := models.NotificationCourseApproved
	title := "Course approved"
	body := "Your course submission was approved and is now live."
	if request.Status == models.ModerationStatusRejected {
		action = models.AuditActionCourseReject
		category = models.NotificationCourseRejected
		title = "Course rejected"
		reason := ""
		if request.RejectionReason != nil {
			reason = *request.RejectionReason
		}
		body = fmt.Sprintf("Your course submission was rejected: %s", reason)
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "moderation_request",
		ResourceID: &request.ID,
		NewValues:  mustJSON(map[string]interface{}{"status": request.Status, "course_id": request.CourseID}),
	})
	if s.notifier != nil {
		s.notifier.Dispatch(models.Notification{
			UserID:   request.InstructorID,
			Category: category,
			Title:    title,
			Body:     body,
			CourseID: &request.CourseID,
		})
	}
	if request.Status == models.ModerationStatusApproved {
		s.invalidateCatalog(ctx)
	}
}

func (s *ModerationService) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "catalog:*"); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
	}
}

func (s *ModerationService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "moderation-service"
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

// validateCurriculum enforces the submission completeness rules: at least one
// chapter, no empty chapters, and a video on every lecture.
func validateCurriculum(tree []models.ChapterWithLectures) error {
	if len(tree) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "course needs at least one chapter before review")
	}
	for _, chapter := range tree {
		if len(chapter.Lectures) == 0 {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("chapter %q has no lectures", chapter.Title))
		}
		for _, lecture := range chapter.Lectures {
			if strings.TrimSpace(lecture.VideoURL) == "" {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("lecture %q has no video", lecture.Title))
			}
		}
	}
	return nil
}

func snapshotCourse(course *models.Course, versionNumber int, curriculumJSON []byte) *models.CourseVersion {
	return &models.CourseVersion{
		CourseID:         course.ID,
		VersionNumber:    versionNumber,
		Status:           models.VersionStatusPending,
		Title:            course.Title,
		ShortDescription: course.ShortDescription,
		LongDescription:  course.LongDescription,
		CategoryID:       course.CategoryID,
		Price:            course.Price,
		CoverImageURL:    course.CoverImageURL,
		Difficulty:       course.Difficulty,
		Prerequisites:    course.Prerequisites,
		Outcomes:         course.Outcomes,
		Curriculum:       curriculumJSON,
	}
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	v := strings.TrimSpace(value)
	return &v
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
