package dto

import "github.com/edumart/edumart-api/internal/models"

// ApplyInstructorRequest payload for a student applying for the instructor
// role.
type ApplyInstructorRequest struct {
	Motivation string `json:"motivation" validate:"required,min=20,max=2000"`
	Expertise  string `json:"expertise" validate:"required,min=3,max=500"`
}

// DecideInstructorRequest captures the admin decision on an application.
type DecideInstructorRequest struct {
	Status          models.InstructorRequestStatus `json:"status" validate:"required,oneof=APPROVED REJECTED"`
	RejectionReason string                         `json:"rejection_reason"`
	ReviewerNote    string                         `json:"reviewer_note"`
}

// InstructorRequestQuery mirrors supported listing filters.
type InstructorRequestQuery struct {
	Status   []models.InstructorRequestStatus `form:"status"`
	Page     int                              `form:"page"`
	PageSize int                              `form:"page_size"`
}
