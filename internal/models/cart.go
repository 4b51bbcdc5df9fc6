package models

import "time"

// Cart holds the current shopping selection of a user. One open cart per
// user; checkout empties it.
type Cart struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CartItem references one course in a cart. Pricing happens at checkout, not
// at add time.
type CartItem struct {
	ID       string    `db:"id" json:"id"`
	CartID   string    `db:"cart_id" json:"cart_id"`
	CourseID string    `db:"course_id" json:"course_id"`
	AddedAt  time.Time `db:"added_at" json:"added_at"`
}

// CartItemDetail enriches an item with current course info for display.
type CartItemDetail struct {
	CartItem
	CourseTitle   string `db:"course_title" json:"course_title"`
	CoverImageURL string `db:"cover_image_url" json:"cover_image_url"`
	Price         int64  `db:"price" json:"price"`
	Published     bool   `db:"published" json:"published"`
}
