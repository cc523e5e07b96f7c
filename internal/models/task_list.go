package models

// TaskList is a shared list of tasks. Exactly one list is selected at a
// time on the client; members join via invite code.
type TaskList struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	OwnerID     uint64 `json:"owner_id"`
	InviteCode  string `json:"invite_code"`
	TaskCount   *int   `json:"task_count,omitempty"`
	MemberCount *int   `json:"member_count,omitempty"`
}

// Project is a label scoped to a task list. Names are unique per list
// by server contract.
type Project struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	TaskListID uint64 `json:"task_list_id"`
}

// Requester is a label scoped to a task list identifying who asked for
// the work.
type Requester struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	TaskListID uint64 `json:"task_list_id"`
}
