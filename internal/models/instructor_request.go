package models

import "time"

// InstructorRequestStatus mirrors the moderation workflow states for
// student-to-instructor upgrade requests.
type InstructorRequestStatus string

const (
	InstructorRequestPending  InstructorRequestStatus = "PENDING"
	InstructorRequestApproved InstructorRequestStatus = "APPROVED"
	InstructorRequestRejected InstructorRequestStatus = "REJECTED"
)

// InstructorRequest records one application by a student to gain the
// instructor role. One PENDING row per user, enforced by a partial unique
// index.
type InstructorRequest struct {
	ID              string                  `db:"id" json:"id"`
	UserID          string                  `db:"user_id" json:"user_id"`
	Motivation      string                  `db:"motivation" json:"motivation"`
	Expertise       string                  `db:"expertise" json:"expertise"`
	Status          InstructorRequestStatus `db:"status" json:"status"`
	RejectionReason *string                 `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ReviewerNote    *string                 `db:"reviewer_note" json:"reviewer_note,omitempty"`
	ReviewedBy      *string                 `db:"reviewed_by" json:"reviewed_by,omitempty"`
	SubmittedAt     time.Time               `db:"submitted_at" json:"submitted_at"`
	DecidedAt       *time.Time              `db:"decided_at" json:"decided_at,omitempty"`
}

// InstructorRequestDetail enriches a request with applicant info.
type InstructorRequestDetail struct {
	InstructorRequest
	ApplicantName  string `db:"applicant_name" json:"applicant_name"`
	ApplicantEmail string `db:"applicant_email" json:"applicant_email"`
}

// InstructorRequestFilter constrains listing queries.
type InstructorRequestFilter struct {
	Status   []InstructorRequestStatus
	UserID   string
	Page     int
	PageSize int
}
