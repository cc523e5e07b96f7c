package dto

import (
	"time"

	"github.com/tasksphere/sphere-client/internal/models"
)

// ReminderInput is one reminder to create for a task. The client
// computes ReminderDatetime from the due date and offset before
// submitting; the server only validates and stores it.
type ReminderInput struct {
	ReminderType     models.ReminderType `json:"reminderType"`
	TimeValue        int                 `json:"timeValue"`
	TimeUnit         models.TimeUnit     `json:"timeUnit"`
	ReminderDatetime time.Time           `json:"reminderDatetime"`
}
