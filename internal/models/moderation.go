package models

import "time"

// ModerationStatus captures workflow states for course review requests.
type ModerationStatus string

const (
	ModerationStatusPending  ModerationStatus = "PENDING"
	ModerationStatusApproved ModerationStatus = "APPROVED"
	ModerationStatusRejected ModerationStatus = "REJECTED"
)

// ModerationRequest represents one reviewable course submission. Rows are
// created when an instructor requests publish and mutated only by a reviewer
// decision; they are never physically deleted. At most one PENDING row may
// exist per course, enforced by a partial unique index.
type ModerationRequest struct {
	ID              string           `db:"id" json:"id"`
	CourseID        string           `db:"course_id" json:"course_id"`
	VersionID       string           `db:"version_id" json:"version_id"`
	InstructorID    string           `db:"instructor_id" json:"instructor_id"`
	Status          ModerationStatus `db:"status" json:"status"`
	RejectionReason *string          `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ReviewerNote    *string          `db:"reviewer_note" json:"reviewer_note,omitempty"`
	ReviewedBy      *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	SubmittedAt     time.Time        `db:"submitted_at" json:"submitted_at"`
	DecidedAt       *time.Time       `db:"decided_at" json:"decided_at,omitempty"`
}

// ModerationRequestDetail enriches a request with course and submitter info.
type ModerationRequestDetail struct {
	ModerationRequest
	CourseTitle    string `db:"course_title" json:"course_title"`
	InstructorName string `db:"instructor_name" json:"instructor_name"`
	VersionNumber  int    `db:"version_number" json:"version_number"`
}

// ModerationFilter constrains listing queries. Listings default to oldest
// pending first.
type ModerationFilter struct {
	Status       []ModerationStatus
	CourseID     string
	InstructorID string
	ReviewerID   string
	Page         int
	PageSize     int
	SortOrder    string
}
