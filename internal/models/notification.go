package models

import "time"

// NotificationTypeReminder marks notifications that represent a task
// reminder; these are surfaced on the desktop even when focused.
const NotificationTypeReminder = "task_reminder"

// Notification is a server-created message for the current user.
type Notification struct {
	ID           uint64    `json:"id"`
	UserID       uint64    `json:"user_id"`
	Type         string    `json:"type"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	Read         bool      `json:"read"`
	CreatedAt    time.Time `json:"created_at"`
	TaskID       *uint64   `json:"task_id,omitempty"`
	TaskListID   *uint64   `json:"task_list_id,omitempty"`
	TaskListName *string   `json:"task_list_name,omitempty"`
}
