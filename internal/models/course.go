package models

import "time"

// DifficultyLevel classifies course complexity.
type DifficultyLevel string

const (
	DifficultyBeginner     DifficultyLevel = "BEGINNER"
	DifficultyIntermediate DifficultyLevel = "INTERMEDIATE"
	DifficultyAdvanced     DifficultyLevel = "ADVANCED"
)

// Category groups courses in the catalog.
type Category struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Slug      string    `db:"slug" json:"slug"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Course is the mutable canonical course record. Its published content always
// corresponds to exactly one approved version snapshot; current_version
// strictly increases on every successful publish.
type Course struct {
	ID               string          `db:"id" json:"id"`
	InstructorID     string          `db:"instructor_id" json:"instructor_id"`
	CategoryID       string          `db:"category_id" json:"category_id"`
	Title            string          `db:"title" json:"title"`
	ShortDescription string          `db:"short_description" json:"short_description"`
	LongDescription  string          `db:"long_description" json:"long_description"`
	Price            int64           `db:"price" json:"price"`
	CoverImageURL    string          `db:"cover_image_url" json:"cover_image_url"`
	Difficulty       DifficultyLevel `db:"difficulty" json:"difficulty"`
	Prerequisites    string          `db:"prerequisites" json:"prerequisites"`
	Outcomes         string          `db:"outcomes" json:"outcomes"`
	Published        bool            `db:"published" json:"published"`
	CurrentVersion   int             `db:"current_version" json:"current_version"`
	AverageRating    float64         `db:"average_rating" json:"average_rating"`
	RatingCount      int             `db:"rating_count" json:"rating_count"`
	StudentCount     int             `db:"student_count" json:"student_count"`
	Deleted          bool            `db:"deleted" json:"-"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
	PublishedAt      *time.Time      `db:"published_at" json:"published_at,omitempty"`
}

// CourseDetail enriches Course with instructor and category info.
type CourseDetail struct {
	Course
	InstructorName string `db:"instructor_name" json:"instructor_name"`
	CategoryName   string `db:"category_name" json:"category_name"`
}

// CourseFilter provides filters for catalog and authoring listings.
type CourseFilter struct {
	InstructorID  string
	CategoryID    string
	Difficulty    DifficultyLevel
	Search        string
	PublishedOnly bool
	MinPrice      *int64
	MaxPrice      *int64
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
