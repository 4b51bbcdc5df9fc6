package models

import "time"

// VersionStatus captures the lifecycle of a version snapshot.
type VersionStatus string

const (
	VersionStatusPending  VersionStatus = "PENDING"
	VersionStatusApproved VersionStatus = "APPROVED"
	VersionStatusRejected VersionStatus = "REJECTED"
)

// CourseVersion is an immutable copy of a course's editable fields taken at
// submission time. (course_id, version_number) is unique; rejection keeps the
// row as history. The serialized curriculum is stored verbatim and only ever
// re-parsed for display.
type CourseVersion struct {
	ID               string          `db:"id" json:"id"`
	CourseID         string          `db:"course_id" json:"course_id"`
	VersionNumber    int             `db:"version_number" json:"version_number"`
	Status           VersionStatus   `db:"status" json:"status"`
	Title            string          `db:"title" json:"title"`
	ShortDescription string          `db:"short_description" json:"short_description"`
	LongDescription  string          `db:"long_description" json:"long_description"`
	CategoryID       string          `db:"category_id" json:"category_id"`
	Price            int64           `db:"price" json:"price"`
	CoverImageURL    string          `db:"cover_image_url" json:"cover_image_url"`
	Difficulty       DifficultyLevel `db:"difficulty" json:"difficulty"`
	Prerequisites    string          `db:"prerequisites" json:"prerequisites"`
	Outcomes         string          `db:"outcomes" json:"outcomes"`
	Curriculum       []byte          `db:"curriculum" json:"curriculum"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// FieldChange describes one differing field between the live course and a
// snapshot, used for audit/display.
type FieldChange struct {
	Field string `json:"field"`
	Live  string `json:"live"`
	Draft string `json:"draft"`
}
