package models

import "time"

// Chapter belongs to exactly one course, ordered by position.
type Chapter struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Title     string    `db:"title" json:"title"`
	Position  int       `db:"position" json:"position"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Lecture belongs to exactly one chapter, ordered by position. The video
// reference is an opaque path handed out by the upload collaborator and is
// mandatory before the course can be submitted for review.
type Lecture struct {
	ID              string    `db:"id" json:"id"`
	ChapterID       string    `db:"chapter_id" json:"chapter_id"`
	Title           string    `db:"title" json:"title"`
	VideoURL        string    `db:"video_url" json:"video_url"`
	DurationSeconds int       `db:"duration_seconds" json:"duration_seconds"`
	Position        int       `db:"position" json:"position"`
	Preview         bool      `db:"preview" json:"preview"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// ChapterWithLectures is the curriculum tree node returned to clients and
// serialized into version snapshots.
type ChapterWithLectures struct {
	Chapter
	Lectures []Lecture `json:"lectures"`
}
