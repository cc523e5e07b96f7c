package models

import "time"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is one of the closed set of priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Task is the server's canonical task record. Status is the done flag.
// QueuePosition is derived state owned by the queue engine; nil means
// the task is not in the current user's queue.
type Task struct {
	ID             uint64     `json:"id"`
	TaskListID     uint64     `json:"task_list_id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Status         bool       `json:"status"`
	Priority       Priority   `json:"priority"`
	AssignedTo     *uint64    `json:"assigned_to,omitempty"`
	AssignedToName *string    `json:"assigned_to_name,omitempty"`
	ProjectID      *uint64    `json:"project_id,omitempty"`
	ProjectName    *string    `json:"project_name,omitempty"`
	RequesterID    *uint64    `json:"requester_id,omitempty"`
	RequesterName  *string    `json:"requester_name,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	QueuePosition  *int       `json:"queue_position,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
