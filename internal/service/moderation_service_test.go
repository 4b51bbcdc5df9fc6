package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/models"
	"github.com/edumart/edumart-api/internal/repository"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
)

func newMockTxDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

type moderationStoreStub struct {
	db          *sqlx.DB
	requests    map[string]*models.ModerationRequest
	createErr   error
	decideErr   error
	created     *models.ModerationRequest
	lastDecided repository.DecideModerationParams
}

func newModerationStoreStub(db *sqlx.DB) *moderationStoreStub {
	return &moderationStoreStub{db: db, requests: make(map[string]*models.ModerationRequest)}
}

func (m *moderationStoreStub) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return m.db.BeginTxx(ctx, opts)
}

func (m *moderationStoreStub) CreateTx(ctx context.Context, tx *sqlx.Tx, request *models.ModerationRequest) error {
	if m.createErr != nil {
		return m.createErr
	}
	request.ID = "req-1"
	m.created = request
	m.requests[request.ID] = request
	return nil
}

func (m *moderationStoreStub) GetByID(ctx context.Context, id string) (*models.ModerationRequest, error) {
	if request, ok := m.requests[id]; ok {
		clone := *request
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *moderationStoreStub) GetDetailByID(ctx context.Context, id string) (*models.ModerationRequestDetail, error) {
	if request, ok := m.requests[id]; ok {
		return &models.ModerationRequestDetail{ModerationRequest: *request, CourseTitle: "Go from Scratch"}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *moderationStoreStub) List(ctx context.Context, filter models.ModerationFilter) ([]models.ModerationRequestDetail, int, error) {
	result := make([]models.ModerationRequestDetail, 0, len(m.requests))
	for _, request := range m.requests {
		if filter.InstructorID != "" && request.InstructorID != filter.InstructorID {
			continue
		}
		result = append(result, models.ModerationRequestDetail{ModerationRequest: *request})
	}
	return result, len(result), nil
}

func (m *moderationStoreStub) DecideTx(ctx context.Context, tx *sqlx.Tx, params repository.DecideModerationParams) error {
	if m.decideErr != nil {
		return m.decideErr
	}
	request, ok := m.requests[params.ID]
	if !ok || request.Status != models.ModerationStatusPending {
		return sql.ErrNoRows
	}
	request.Status = params.Status
	request.ReviewedBy = &params.ReviewedBy
	request.DecidedAt = &params.DecidedAt
	request.RejectionReason = params.RejectionReason
	request.ReviewerNote = params.ReviewerNote
	m.lastDecided = params
	return nil
}

type versionStoreStub struct {
	versions    map[string]*models.CourseVersion
	nextNumber  int
	created     *models.CourseVersion
	statusByID  map[string]models.VersionStatus
	findTxCalls int
}

func newVersionStoreStub() *versionStoreStub {
	return &versionStoreStub{versions: make(map[string]*models.CourseVersion), nextNumber: 1, statusByID: make(map[string]models.VersionStatus)}
}

func (v *versionStoreStub) NextVersionNumberTx(ctx context.Context, tx *sqlx.Tx, courseID string) (int, error) {
	return v.nextNumber, nil
}

func (v *versionStoreStub) CreateTx(ctx context.Context, tx *sqlx.Tx, version *models.CourseVersion) error {
	version.ID = "ver-1"
	v.created = version
	v.versions[version.ID] = version
	return nil
}

func (v *versionStoreStub) FindByID(ctx context.Context, id string) (*models.CourseVersion, error) {
	if version, ok := v.versions[id]; ok {
		clone := *version
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (v *versionStoreStub) FindByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.CourseVersion, error) {
	v.findTxCalls++
	return v.FindByID(ctx, id)
}

func (v *versionStoreStub) SetStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.VersionStatus) error {
	v.statusByID[id] = status
	return nil
}

type courseStoreStub struct {
	courses      map[string]*models.Course
	promoted     *models.CourseVersion
	unpublishErr error
}

func newCourseStoreStub() *courseStoreStub {
	return &courseStoreStub{courses: make(map[string]*models.Course)}
}

func (c *courseStoreStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if course, ok := c.courses[id]; ok {
		clone := *course
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (c *courseStoreStub) PromoteVersionTx(ctx context.Context, tx *sqlx.Tx, version *models.CourseVersion, publishedAt time.Time) error {
	course, ok := c.courses[version.CourseID]
	if !ok {
		return sql.ErrNoRows
	}
	course.Title = version.Title
	course.Published = true
	course.CurrentVersion = version.VersionNumber
	c.promoted = version
	return nil
}

func (c *courseStoreStub) Unpublish(ctx context.Context, id string) error {
	if c.unpublishErr != nil {
		return c.unpublishErr
	}
	course, ok := c.courses[id]
	if !ok || !course.Published {
		return sql.ErrNoRows
	}
	course.Published = false
	return nil
}

type curriculumStub struct {
	tree []models.ChapterWithLectures
}

func (c *curriculumStub) GetTree(ctx context.Context, courseID string) ([]models.ChapterWithLectures, error) {
	return c.tree, nil
}

type notifierStub struct {
	sent []models.Notification
}

func (n *notifierStub) Dispatch(notification models.Notification) {
	n.sent = append(n.sent, notification)
}

type invalidatorStub struct {
	patterns []string
}

func (i *invalidatorStub) Invalidate(ctx context.Context, pattern string) error {
	i.patterns = append(i.patterns, pattern)
	return nil
}

func completeTree() []models.ChapterWithLectures {
	return []models.ChapterWithLectures{
		{
			Chapter: models.Chapter{ID: "ch-1", Title: "Basics"},
			Lectures: []models.Lecture{
				{ID: "lec-1", Title: "Hello", VideoURL: "https://cdn.example.com/1.mp4"},
			},
		},
	}
}

func instructorClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor}
}

func moderatorClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "mod-1", Role: models.RoleModerator}
}

func TestModerationSubmitForReview(t *testing.T) {
	db, mock := newMockTxDB(t)
	requests := newModerationStoreStub(db)
	versions := newVersionStoreStub()
	versions.nextNumber = 3
	courses := newCourseStoreStub()
	courses.courses["course-1"] = &models.Course{ID: "course-1", InstructorID: "inst-1", Title: "Go from Scratch"}
	audit := &auditStub{}

	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewModerationService(requests, versions, courses, &curriculumStub{tree: completeTree()}, audit, nil)
	request, err := svc.SubmitForReview(context.Background(), "course-1", instructorClaims())
	require.NoError(t, err)
	require.Equal(t, models.ModerationStatusPending, request.Status)
	require.Equal(t, "ver-1", request.VersionID)
	require.Equal(t, 3, versions.created.VersionNumber)
	require.Equal(t, models.VersionStatusPending, versions.created.Status)
	require.NotEmpty(t, versions.created.Curriculum)
	require.Len(t, audit.logs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestModerationSubmitRejectsForeignCourse(t *testing.T) {
	db, _ := newMockTxDB(t)
	requests := newModerationStoreStub(db)
	courses := newCourseStoreStub()
	courses.courses["course-1"] = &models.Course{ID: "course-1", InstructorID: "someone-else"}

	svc := NewModerationService(requests, newVersionStoreStub(), courses, &curriculumStub{tree: completeTree()}, nil, nil)
	_, err := svc.SubmitForReview(context.Background(), "course-1", instructorClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestModerationSubmitValidatesCurriculum(t *testing.T) {
	db, _ := newMockTxDB(t)
	requests := newModerationStoreStub(db)
	courses := newCourseStoreStub()
	courses.courses["course-1"] = &models.Course{ID: "course-1", InstructorID: "inst-1"}

	cases := map[string][]models.ChapterWithLectures{
		"no chapters": {},
		"empty chapter": {
			{Chapter: models.Chapter{ID: "ch-1", Title: "Empty"}},
		},
		"lecture without video": {
			{
				Chapter:  models.Chapter{ID: "ch-1", Title: "Basics"},
				Lectures: []models.Lecture{{ID: "lec-1", Title: "Silent"}},
			},
		},
	}
	for name, tree := range cases {
		t.Run(name, func(t *testing.T) {
			svc := NewModerationService(requests, newVersionStoreStub(), courses, &curriculumStub{tree: tree}, nil, nil)
			_, err := svc.SubmitForReview(context.Background(), "course-1", instructorClaims())
			require.Error(t, err)
			require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestModerationSubmitDuplicatePendingConflicts(t *testing.T) {
	db, mock := newMockTxDB(t)
	requests := newModerationStoreStub(db)
	requests.createErr = &pq.Error{Code: "23505"}
	courses := newCourseStoreStub()
	courses.courses["course-1"] = &models.Course{ID: "course-1", InstructorID: "inst-1"}

	mock.ExpectBegin()
	mock.ExpectRollback()

	svc := NewModerationService(requests, newVersionStoreStub(), courses, &curriculumStub{tree: completeTree()}, nil, nil)
	_, err := svc.SubmitForReview(context.Background(), "course-1", instructorClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestModerationDecideApprovePublishes(t *testing.T) {
	db, mock := newMockTxDB(t)
	requests := newModerationStoreStub(db)
	versions := newVersionStoreStub()
	versions.versions["ver-1"] = &models.CourseVersion{ID: "ver-1", CourseID: "course-1", VersionNumber: 2, Title: "Go from Scratch v2"}
	courses := newCourseStoreStub()
	courses.courses["course-1"] = &models.Course{ID: "course-1", InstructorID: "inst-1", Title: "Go from Scratch"}
	requests.requests["req-1"] = &models.ModerationRequest{
		ID:           "req-1",
		CourseID:     "course-1",
		VersionID:    "ver-1",
		InstructorID: "inst-1",
		Status:       models.ModerationStatusPending,
	}
	audit := &auditStub{}
	notifier := &notifierStub{}
	invalidator := &invalidatorStub{}

	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewModerationService(requests, versions, courses, nil, audit, nil,
		WithModerationNotifier(notifier), WithModerationCacheInvalidator(invalidator))
	decided, err := svc.Decide(context.Background(), "req-1", dto.DecideModerationRequest{Status: models.ModerationStatusApproved}, moderatorClaims())
	require.NoError(t, err)
	require.Equal(t, models.ModerationStatusApproved, decided.Status)
	require.Equal(t, models.VersionStatusApproved, versions.statusByID["ver-1"])
	require.True(t, courses.courses["course-1"].Published)
	require.Equal(t, 2, courses.courses["course-1"].CurrentVersion)
	require.Len(t, notifier.sent, 1)
	require.Equal(t, models.NotificationCourseApproved, notifier.sent[0].Category)
	require.Equal(t, []string{"catalog:*"}, invalidator.patterns)
	require.Len(t, audit.logs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestModerationDecideRejectRequiresReason(t *testing.T) {
	db, _ := newMockTxDB(t)
	requests := newModerationStoreStub(db)

	svc := NewModerationService(requests, newVersionStoreStub(), newCourseStoreStub(), nil, nil, nil)
	_, err := svc.Decide(context.Background(), "req-1", dto.DecideModerationRequest{Status: models.ModerationStatusRejected}, moderatorClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestModerationDecideRejectLeavesCourseUnpublished(t *testing.T) {
	db, mock := newMockTxDB(t)
	requests := newModerationStoreStub(db)
	versions := newVersionStoreStub()
	versions.versions["ver-1"] = &models.CourseVersion{ID: "ver-1", CourseID: "course-1", VersionNumber: 1}
	courses := newCourseStoreStub()
	courses.courses["course-1"] = &models.Course{ID: "course-1", InstructorID: "inst-1"}
	requests.requests["req-1"] = &models.ModerationRequest{
		ID:           "req-1",
		CourseID:     "course-1",
		VersionID:    "ver-1",
		InstructorID: "inst-1",
		Status:       models.ModerationStatusPending,
	}
	notifier := &notifierStub{}

	mock.ExpectBegin()
	mock.ExpectCommit()

	svc := NewModerationService(requests, versions, courses, nil, nil, nil, WithModerationNotifier(notifier))
	decided, err := svc.Decide(context.Background(), "req-1", dto.DecideModerationRequest{
		Status:          models.ModerationStatusRejected,
		RejectionReason: "cover image is a stock photo",
	}, moderatorClaims())
	require.NoError(t, err)
	require.Equal(t, models.ModerationStatusRejected, decided.Status)
	require.NotNil(t, decided.RejectionReason)
	require.Equal(t, models.VersionStatusRejected, versions.statusByID["ver-1"])
	require.False(t, courses.courses["course-1"].Published)
	require.Nil(t, courses.promoted)
	require.Len(t, notifier.sent, 1)
	require.Equal(t, models.NotificationCourseRejected, notifier.sent[0].Category)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestModerationDecideTwiceConflicts(t *testing.T) {
	db, mock := newMockTxDB(t)
	requests := newModerationStoreStub(db)
	versions := newVersionStoreStub()
	versions.versions["ver-1"] = &models.CourseVersion{ID: "ver-1", CourseID: "course-1"}
	courses := newCourseStoreStub()
	courses.courses["course-1"] = &models.Course{ID: "course-1"}
	requests.requests["req-1"] = &models.ModerationRequest{
		ID:        "req-1",
		CourseID:  "course-1",
		VersionID: "ver-1",
		Status:    models.ModerationStatusPending,
	}

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()

	svc := NewModerationService(requests, versions, courses, nil, nil, nil)
	_, err := svc.Decide(context.Background(), "req-1", dto.DecideModerationRequest{Status: models.ModerationStatusApproved}, moderatorClaims())
	require.NoError(t, err)

	// Re-arm the stub as if a concurrent reviewer raced the first decision.
	requests.requests["req-1"].Status = models.ModerationStatusPending
	requests.decideErr = sql.ErrNoRows
	_, err = svc.Decide(context.Background(), "req-1", dto.DecideModerationRequest{Status: models.ModerationStatusApproved}, moderatorClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestModerationDecideRequiresReviewerRole(t *testing.T) {
	db, _ := newMockTxDB(t)
	svc := NewModerationService(newModerationStoreStub(db), newVersionStoreStub(), newCourseStoreStub(), nil, nil, nil)
	_, err := svc.Decide(context.Background(), "req-1", dto.DecideModerationRequest{Status: models.ModerationStatusApproved}, instructorClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestModerationHide(t *testing.T) {
	db, _ := newMockTxDB(t)
	courses := newCourseStoreStub()
	courses.courses["course-1"] = &models.Course{ID: "course-1", InstructorID: "inst-1", Title: "Go from Scratch", Published: true}
	notifier := &notifierStub{}
	invalidator := &invalidatorStub{}
	audit := &auditStub{}

	svc := NewModerationService(newModerationStoreStub(db), newVersionStoreStub(), courses, nil, audit, nil,
		WithModerationNotifier(notifier), WithModerationCacheInvalidator(invalidator))
	err := svc.Hide(context.Background(), "course-1", "copyright complaint", moderatorClaims())
	require.NoError(t, err)
	require.False(t, courses.courses["course-1"].Published)
	require.Len(t, notifier.sent, 1)
	require.Equal(t, models.NotificationCourseHidden, notifier.sent[0].Category)
	require.Equal(t, []string{"catalog:*"}, invalidator.patterns)
	require.Len(t, audit.logs, 1)
}

func TestModerationHideUnpublishedConflicts(t *testing.T) {
	db, _ := newMockTxDB(t)
	courses := newCourseStoreStub()
	courses.courses["course-1"] = &models.Course{ID: "course-1", Published: false}

	svc := NewModerationService(newModerationStoreStub(db), newVersionStoreStub(), courses, nil, nil, nil)
	err := svc.Hide(context.Background(), "course-1", "spam", moderatorClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestModerationListScopesInstructor(t *testing.T) {
	db, _ := newMockTxDB(t)
	requests := newModerationStoreStub(db)
	requests.requests["req-1"] = &models.ModerationRequest{ID: "req-1", InstructorID: "inst-1", Status: models.ModerationStatusPending}
	requests.requests["req-2"] = &models.ModerationRequest{ID: "req-2", InstructorID: "inst-2", Status: models.ModerationStatusPending}

	svc := NewModerationService(requests, newVersionStoreStub(), newCourseStoreStub(), nil, nil, nil)

	mine, _, err := svc.List(context.Background(), dto.ModerationQuery{}, instructorClaims())
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "req-1", mine[0].ID)

	all, pagination, err := svc.List(context.Background(), dto.ModerationQuery{}, moderatorClaims())
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, 2, pagination.TotalCount)

	_, _, err = svc.List(context.Background(), dto.ModerationQuery{}, &models.JWTClaims{UserID: "stud-1", Role: models.RoleStudent})
	require.Error(t, err)
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}
