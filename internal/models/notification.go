package models

import "time"

// NotificationCategory labels notifications for client-side grouping.
type NotificationCategory string

const (
	NotificationCourseApproved   NotificationCategory = "COURSE_APPROVED"
	NotificationCourseRejected   NotificationCategory = "COURSE_REJECTED"
	NotificationCourseHidden     NotificationCategory = "COURSE_HIDDEN"
	NotificationInstructorResult NotificationCategory = "INSTRUCTOR_RESULT"
	NotificationOrderCompleted   NotificationCategory = "ORDER_COMPLETED"
)

// Notification is one user-facing message created by workflow decisions or
// checkout completion.
type Notification struct {
	ID        string               `db:"id" json:"id"`
	UserID    string               `db:"user_id" json:"user_id"`
	Category  NotificationCategory `db:"category" json:"category"`
	Title     string               `db:"title" json:"title"`
	Body      string               `db:"body" json:"body"`
	CourseID  *string              `db:"course_id" json:"course_id,omitempty"`
	Read      bool                 `db:"read" json:"read"`
	CreatedAt time.Time            `db:"created_at" json:"created_at"`
}

// NotificationFilter constrains notification listings.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}
