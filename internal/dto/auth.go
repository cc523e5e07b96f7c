package dto

import "github.com/tasksphere/sphere-client/internal/models"

// RegisterRequest is the signup payload.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest holds the credentials for authentication.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest exchanges a refresh token for a new token pair.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse is returned by register, login and refresh. Refresh
// responses leave User empty.
type AuthResponse struct {
	User         *models.User `json:"user,omitempty"`
	Token        string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
}

// UpdateProfileRequest updates the current user's profile.
type UpdateProfileRequest struct {
	Name               *string `json:"name,omitempty"`
	AvatarURL          *string `json:"avatarUrl,omitempty"`
	DarkModePreference *bool   `json:"darkModePreference,omitempty"`
}

// ChangePasswordRequest rotates the current user's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}
