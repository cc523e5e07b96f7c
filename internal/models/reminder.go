package models

import "time"

type ReminderType string

const (
	ReminderPredefined ReminderType = "predefined"
	ReminderCustom     ReminderType = "custom"
)

type TimeUnit string

const (
	UnitMinutes TimeUnit = "minutes"
	UnitHours   TimeUnit = "hours"
	UnitDays    TimeUnit = "days"
	UnitWeeks   TimeUnit = "weeks"
)

// Valid reports whether u is a recognised offset unit.
func (u TimeUnit) Valid() bool {
	switch u {
	case UnitMinutes, UnitHours, UnitDays, UnitWeeks:
		return true
	}
	return false
}

// Reminder is a scheduled notification for a task, expressed as an
// offset before the due date. Delivery is the server's job.
type Reminder struct {
	ID               uint64       `json:"id"`
	TaskID           uint64       `json:"task_id"`
	ReminderType     ReminderType `json:"reminder_type"`
	TimeValue        int          `json:"time_value"`
	TimeUnit         TimeUnit     `json:"time_unit"`
	ReminderDatetime time.Time    `json:"reminder_datetime"`
}

// MissedReminder is the server's view of a reminder that fired while
// the user was away.
type MissedReminder struct {
	ID           uint64    `json:"id"`
	TaskID       uint64    `json:"task_id"`
	TaskListID   *uint64   `json:"task_list_id,omitempty"`
	TaskListName *string   `json:"task_list_name,omitempty"`
	TaskName     string    `json:"task_name"`
	DueDate      time.Time `json:"due_date"`
	SentAt       time.Time `json:"sent_at"`
}
