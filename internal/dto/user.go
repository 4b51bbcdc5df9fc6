package dto

import "github.com/edumart/edumart-api/internal/models"

// UpdateProfileRequest payload for self-service profile edits.
type UpdateProfileRequest struct {
	FullName  *string `json:"full_name" validate:"omitempty,min=2,max=200"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url"`
	Bio       *string `json:"bio" validate:"omitempty,max=2000"`
}

// AdminUpdateUserRequest payload for admin user management.
type AdminUpdateUserRequest struct {
	FullName *string          `json:"full_name" validate:"omitempty,min=2,max=200"`
	Role     *models.UserRole `json:"role" validate:"omitempty,oneof=ADMIN MODERATOR INSTRUCTOR STUDENT"`
	Active   *bool            `json:"active"`
}

// UserQuery mirrors admin user listing filters.
type UserQuery struct {
	Role      string `form:"role"`
	Active    *bool  `form:"active"`
	Search    string `form:"search"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
}

// NotificationQuery mirrors notification listing filters.
type NotificationQuery struct {
	UnreadOnly bool `form:"unread_only"`
	Page       int  `form:"page"`
	PageSize   int  `form:"page_size"`
}
