package models

import "time"

// Review is one student's rating of a purchased course. One review per user
// per course; re-posting updates the existing row.
type Review struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ReviewDetail enriches a review with author info.
type ReviewDetail struct {
	Review
	AuthorName string `db:"author_name" json:"author_name"`
}

// ReviewFilter constrains review listings.
type ReviewFilter struct {
	CourseID  string
	UserID    string
	MinRating int
	Page      int
	PageSize  int
}
