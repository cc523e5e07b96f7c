package dto

// CreateListRequest creates a new task list owned by the caller.
type CreateListRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// JoinListRequest joins a task list by invite code.
type JoinListRequest struct {
	InviteCode string `json:"inviteCode"`
}

// CreateProjectRequest adds a project label to a list.
type CreateProjectRequest struct {
	Name string `json:"name"`
}

// CreateRequesterRequest adds a requester label to a list.
type CreateRequesterRequest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}
