// Package reminders computes reminder fire times from task due dates
// and manages the reminder set for a task. Offsets in minutes or
// hours are plain durations; days and weeks use calendar arithmetic
// so a "1 day before" reminder lands at the same wall-clock time even
// across a DST change.
package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/tasksphere/sphere-client/internal/api"
	"github.com/tasksphere/sphere-client/internal/dto"
	apierrors "github.com/tasksphere/sphere-client/internal/errors"
	"github.com/tasksphere/sphere-client/internal/models"
)

// Offset is a reminder lead time before the due date.
type Offset struct {
	Value int
	Unit  models.TimeUnit
}

// PredefinedOffsets is the fixed menu of lead times, shortest first.
var PredefinedOffsets = []Offset{
	{15, models.UnitMinutes},
	{30, models.UnitMinutes},
	{1, models.UnitHours},
	{2, models.UnitHours},
	{6, models.UnitHours},
	{1, models.UnitDays},
	{2, models.UnitDays},
	{3, models.UnitDays},
	{1, models.UnitWeeks},
	{2, models.UnitWeeks},
}

// String renders the offset for menus, e.g. "15 minutes before".
func (o Offset) String() string {
	unit := string(o.Unit)
	if o.Value == 1 {
		unit = unit[:len(unit)-1]
	}
	return fmt.Sprintf("%d %s before", o.Value, unit)
}

// FireAt computes when a reminder with this offset fires for a task
// due at dueDate.
func (o Offset) FireAt(dueDate time.Time) time.Time {
	switch o.Unit {
	case models.UnitMinutes:
		return dueDate.Add(-time.Duration(o.Value) * time.Minute)
	case models.UnitHours:
		return dueDate.Add(-time.Duration(o.Value) * time.Hour)
	case models.UnitDays:
		return dueDate.AddDate(0, 0, -o.Value)
	case models.UnitWeeks:
		return dueDate.AddDate(0, 0, -7*o.Value)
	}
	return dueDate
}

// Scheduler creates, lists and removes reminders through the
// transport. The server owns delivery; the client owns the fire-time
// arithmetic.
type Scheduler struct {
	api *api.Client

	// now is swappable for tests.
	now func() time.Time
}

// NewScheduler builds a scheduler over the transport.
func NewScheduler(client *api.Client) *Scheduler {
	return &Scheduler{api: client, now: time.Now}
}

// Validate rejects a fire time that is already in the past.
func (s *Scheduler) Validate(fireAt time.Time) error {
	if fireAt.Before(s.now()) {
		return apierrors.ErrReminderInPast
	}
	return nil
}

// SchedulePredefined creates reminders for the given offsets against
// the task's due date. Every offset is validated before anything is
// sent, so a single stale offset fails the whole batch.
func (s *Scheduler) SchedulePredefined(ctx context.Context, taskID uint64, dueDate time.Time, offsets []Offset) ([]models.Reminder, error) {
	inputs := make([]dto.ReminderInput, 0, len(offsets))
	for _, o := range offsets {
		fireAt := o.FireAt(dueDate)
		if err := s.Validate(fireAt); err != nil {
			return nil, fmt.Errorf("%s: %w", o, err)
		}
		inputs = append(inputs, dto.ReminderInput{
			ReminderType:     models.ReminderPredefined,
			TimeValue:        o.Value,
			TimeUnit:         o.Unit,
			ReminderDatetime: fireAt,
		})
	}
	return s.api.CreateReminders(ctx, taskID, inputs)
}

// ScheduleCustom creates a reminder at a user-chosen lead time before
// the due date. Custom reminders carry their offset too, so the UI
// can render "45 minutes before" instead of a raw timestamp.
func (s *Scheduler) ScheduleCustom(ctx context.Context, taskID uint64, dueDate time.Time, offset Offset) ([]models.Reminder, error) {
	if offset.Value < 1 || !offset.Unit.Valid() {
		return nil, apierrors.Validation("invalid reminder offset")
	}
	fireAt := offset.FireAt(dueDate)
	if err := s.Validate(fireAt); err != nil {
		return nil, err
	}
	input := dto.ReminderInput{
		ReminderType:     models.ReminderCustom,
		TimeValue:        offset.Value,
		TimeUnit:         offset.Unit,
		ReminderDatetime: fireAt,
	}
	return s.api.CreateReminders(ctx, taskID, []dto.ReminderInput{input})
}

// List returns a task's reminders.
func (s *Scheduler) List(ctx context.Context, taskID uint64) ([]models.Reminder, error) {
	return s.api.ListReminders(ctx, taskID)
}

// Remove deletes one reminder.
func (s *Scheduler) Remove(ctx context.Context, taskID, reminderID uint64) error {
	return s.api.DeleteReminder(ctx, taskID, reminderID)
}

// Missed returns reminders that fired while the user was away, for
// the catch-up digest shown after login.
func (s *Scheduler) Missed(ctx context.Context) ([]models.MissedReminder, error) {
	return s.api.MissedReminders(ctx)
}
