package models

// User is the authenticated account as returned by the server.
// The client holds at most one current user per session.
type User struct {
	ID                 uint64  `json:"id"`
	Email              string  `json:"email"`
	Name               string  `json:"name"`
	AvatarURL          *string `json:"avatar_url,omitempty"`
	DarkModePreference *bool   `json:"dark_mode_preference,omitempty"`
}

// Member is a user's membership view of a task list.
type Member struct {
	ID        uint64  `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}
