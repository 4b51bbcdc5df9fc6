package dto

import (
	"time"

	"github.com/edumart/edumart-api/internal/models"
)

// CreateCourseRequest payload for creating a draft course.
type CreateCourseRequest struct {
	Title            string                 `json:"title" validate:"required,min=3,max=200"`
	ShortDescription string                 `json:"short_description" validate:"required,max=500"`
	LongDescription  string                 `json:"long_description"`
	CategoryID       string                 `json:"category_id" validate:"required"`
	Price            int64                  `json:"price" validate:"gte=0"`
	CoverImageURL    string                 `json:"cover_image_url"`
	Difficulty       models.DifficultyLevel `json:"difficulty" validate:"omitempty,oneof=BEGINNER INTERMEDIATE ADVANCED"`
	Prerequisites    string                 `json:"prerequisites"`
	Outcomes         string                 `json:"outcomes"`
}

// UpdateCourseRequest payload for editing draft fields. Edits never touch the
// published copy; they become visible only through a subsequent review cycle.
type UpdateCourseRequest struct {
	Title            *string                 `json:"title" validate:"omitempty,min=3,max=200"`
	ShortDescription *string                 `json:"short_description" validate:"omitempty,max=500"`
	LongDescription  *string                 `json:"long_description"`
	CategoryID       *string                 `json:"category_id"`
	Price            *int64                  `json:"price" validate:"omitempty,gte=0"`
	CoverImageURL    *string                 `json:"cover_image_url"`
	Difficulty       *models.DifficultyLevel `json:"difficulty" validate:"omitempty,oneof=BEGINNER INTERMEDIATE ADVANCED"`
	Prerequisites    *string                 `json:"prerequisites"`
	Outcomes         *string                 `json:"outcomes"`
}

// CourseQuery mirrors catalog and authoring listing filters.
type CourseQuery struct {
	CategoryID string                 `form:"category_id"`
	Difficulty models.DifficultyLevel `form:"difficulty"`
	Search     string                 `form:"search"`
	MinPrice   *int64                 `form:"min_price"`
	MaxPrice   *int64                 `form:"max_price"`
	Page       int                    `form:"page"`
	PageSize   int                    `form:"page_size"`
	SortBy     string                 `form:"sort_by"`
	SortOrder  string                 `form:"sort_order"`
}

// CreateChapterRequest payload for adding a chapter.
type CreateChapterRequest struct {
	Title    string `json:"title" validate:"required,min=1,max=200"`
	Position int    `json:"position" validate:"gte=0"`
}

// UpdateChapterRequest payload for renaming or reordering a chapter.
type UpdateChapterRequest struct {
	Title    *string `json:"title" validate:"omitempty,min=1,max=200"`
	Position *int    `json:"position" validate:"omitempty,gte=1"`
}

// CreateLectureRequest payload for adding a lecture to a chapter.
type CreateLectureRequest struct {
	Title           string `json:"title" validate:"required,min=1,max=200"`
	VideoURL        string `json:"video_url"`
	DurationSeconds int    `json:"duration_seconds" validate:"gte=0"`
	Position        int    `json:"position" validate:"gte=0"`
	Preview         bool   `json:"preview"`
}

// UpdateLectureRequest payload for editing a lecture.
type UpdateLectureRequest struct {
	Title           *string `json:"title" validate:"omitempty,min=1,max=200"`
	VideoURL        *string `json:"video_url"`
	DurationSeconds *int    `json:"duration_seconds" validate:"omitempty,gte=0"`
	Position        *int    `json:"position" validate:"omitempty,gte=1"`
	Preview         *bool   `json:"preview"`
}

// CreateCategoryRequest payload for admin category management.
type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
	Slug string `json:"slug" validate:"required,min=2,max=100"`
}

// LectureStreamView carries a signed playback token for a lecture video.
type LectureStreamView struct {
	LectureID string    `json:"lecture_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
