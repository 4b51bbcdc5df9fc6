package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/models"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
	"github.com/edumart/edumart-api/pkg/storage"
)

type lectureSource interface {
	FindLecture(ctx context.Context, id string) (*models.Lecture, error)
	FindChapter(ctx context.Context, id string) (*models.Chapter, error)
}

type courseOwnerReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type mediaStore interface {
	Save(filename string, data []byte) (string, error)
}

// MediaService hands out signed playback tokens for purchased lecture videos
// and stores instructor-uploaded cover images. Raw video paths never leave
// the server unsigned.
type MediaService struct {
	curriculum lectureSource
	courses    courseOwnerReader
	orders     purchaseChecker
	signer     *storage.SignedURLSigner
	store      mediaStore
	logger     *zap.Logger
}

// NewMediaService constructs the service.
func NewMediaService(
	curriculum lectureSource,
	courses courseOwnerReader,
	orders purchaseChecker,
	signer *storage.SignedURLSigner,
	store mediaStore,
	logger *zap.Logger,
) *MediaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MediaService{
		curriculum: curriculum,
		courses:    courses,
		orders:     orders,
		signer:     signer,
		store:      store,
		logger:     logger,
	}
}

// LectureStream returns a time-limited signed playback token for a lecture.
// Preview lectures are open to everyone; the rest require a purchase, with
// the owning instructor and reviewers exempt.
func (s *MediaService) LectureStream(ctx context.Context, lectureID string, actor *models.JWTClaims) (*dto.LectureStreamView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	lecture, err := s.curriculum.FindLecture(ctx, lectureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecture")
	}
	if lecture.VideoURL == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture has no video")
	}
	chapter, err := s.curriculum.FindChapter(ctx, lecture.ChapterID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load chapter")
	}

	if !lecture.Preview {
		allowed, err := s.canWatch(ctx, chapter.CourseID, actor)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "course is not in your library")
		}
	}

	token, expiresAt, err := s.signer.Generate(lecture.ID, lecture.VideoURL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign stream url")
	}
	return &dto.LectureStreamView{
		LectureID: lecture.ID,
		Token:     token,
		ExpiresAt: expiresAt.UTC(),
	}, nil
}

// ResolveStream validates a playback token and returns the stored video path.
func (s *MediaService) ResolveStream(token string) (string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired stream token")
	}
	return relPath, nil
}

// UploadCover stores a cover image for an owned course and returns the
// relative path to reference from the course draft.
func (s *MediaService) UploadCover(ctx context.Context, courseID, filename string, data []byte, actor *models.JWTClaims) (string, error) {
	if actor == nil {
		return "", appErrors.ErrUnauthorized
	}
	if len(data) == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "empty upload")
	}
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "unsupported image type")
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.InstructorID != actor.UserID {
		return "", appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}

	stored := fmt.Sprintf("covers/%s/%s%s", courseID, uuid.NewString(), ext)
	if _, err := s.store.Save(stored, data); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store cover image")
	}
	s.logger.Info("cover image stored",
		zap.String("course_id", courseID),
		zap.String("path", stored),
		zap.Int("bytes", len(data)),
		zap.Time("at", time.Now().UTC()))
	return stored, nil
}

func (s *MediaService) canWatch(ctx context.Context, courseID string, actor *models.JWTClaims) (bool, error) {
	if actor.Role.CanReview() {
		return true, nil
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err == nil && course.InstructorID == actor.UserID {
		return true, nil
	}
	owned, err := s.orders.HasPurchased(ctx, actor.UserID, courseID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check purchases")
	}
	return owned, nil
}
