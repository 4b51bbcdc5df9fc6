package dto

import "github.com/edumart/edumart-api/internal/models"

// DecideModerationRequest captures a reviewer decision and optional notes.
// RejectionReason is mandatory when the status is REJECTED.
type DecideModerationRequest struct {
	Status          models.ModerationStatus `json:"status" validate:"required,oneof=APPROVED REJECTED"`
	RejectionReason string                  `json:"rejection_reason"`
	ReviewerNote    string                  `json:"reviewer_note"`
}

// HideCourseRequest removes a published course from the storefront.
type HideCourseRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// ModerationQuery mirrors supported listing filters.
type ModerationQuery struct {
	Status    []models.ModerationStatus `form:"status"`
	CourseID  string                    `form:"course_id"`
	Page      int                       `form:"page"`
	PageSize  int                       `form:"page_size"`
	SortOrder string                    `form:"sort_order"`
}
