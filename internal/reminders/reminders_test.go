package reminders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/tasksphere/sphere-client/internal/api"
	apierrors "github.com/tasksphere/sphere-client/internal/errors"
	"github.com/tasksphere/sphere-client/internal/models"
	"github.com/tasksphere/sphere-client/internal/sphertest"
	"github.com/tasksphere/sphere-client/internal/store"
)

func TestFireAt(t *testing.T) {
	due := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		offset Offset
		want   time.Time
	}{
		{"15 minutes", Offset{15, models.UnitMinutes}, time.Date(2025, 1, 10, 8, 45, 0, 0, time.UTC)},
		{"2 hours", Offset{2, models.UnitHours}, time.Date(2025, 1, 10, 7, 0, 0, 0, time.UTC)},
		{"1 day", Offset{1, models.UnitDays}, time.Date(2025, 1, 9, 9, 0, 0, 0, time.UTC)},
		{"1 week", Offset{1, models.UnitWeeks}, time.Date(2025, 1, 3, 9, 0, 0, 0, time.UTC)},
		{"2 weeks", Offset{2, models.UnitWeeks}, time.Date(2024, 12, 27, 9, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.offset.FireAt(due))
		})
	}
}

func TestFireAtDayOffsetKeepsWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Due the day after the spring-forward transition; "1 day before"
	// must stay at 09:00 local even though the day is 23 hours long.
	due := time.Date(2025, 3, 10, 9, 0, 0, 0, loc)
	fireAt := Offset{1, models.UnitDays}.FireAt(due)
	assert.Equal(t, 9, fireAt.Hour())
	assert.Equal(t, 9, fireAt.Day())
}

func TestPredefinedOffsetsAreOrdered(t *testing.T) {
	due := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	prev := due
	for _, o := range PredefinedOffsets {
		fireAt := o.FireAt(due)
		assert.True(t, fireAt.Before(prev), "%s should fire before %s", o, prev)
		prev = fireAt
	}
}

func TestOffsetString(t *testing.T) {
	assert.Equal(t, "15 minutes before", Offset{15, models.UnitMinutes}.String())
	assert.Equal(t, "1 day before", Offset{1, models.UnitDays}.String())
	assert.Equal(t, "2 weeks before", Offset{2, models.UnitWeeks}.String())
}

type SchedulerTestSuite struct {
	suite.Suite
	server    *sphertest.Server
	store     *store.Store
	client    *api.Client
	scheduler *Scheduler
	taskID    uint64
}

func (suite *SchedulerTestSuite) SetupTest() {
	suite.server = sphertest.New()
	var err error
	suite.store, err = store.OpenMemory()
	suite.Require().NoError(err)

	user, access, refresh := suite.server.SeedUser("ada@example.com", "Sphere123", "Ada")
	suite.Require().NoError(suite.store.SetTokens(access, refresh))
	list := suite.server.SeedList(user.ID, "Sprint Board")
	suite.taskID = suite.server.SeedTask(list.ID, "Write report").ID

	suite.client = api.NewClient(suite.server.URL(), suite.store)
	suite.scheduler = NewScheduler(suite.client)
}

func (suite *SchedulerTestSuite) TearDownTest() {
	suite.store.Teardown()
	suite.server.Close()
}

func (suite *SchedulerTestSuite) TestSchedulePredefined() {
	due := time.Now().Add(48 * time.Hour)
	offsets := []Offset{{15, models.UnitMinutes}, {2, models.UnitHours}, {1, models.UnitDays}}

	created, err := suite.scheduler.SchedulePredefined(context.Background(), suite.taskID, due, offsets)
	suite.Require().NoError(err)
	suite.Len(created, 3)

	listed, err := suite.scheduler.List(context.Background(), suite.taskID)
	suite.Require().NoError(err)
	suite.Len(listed, 3)
	suite.Equal(models.ReminderPredefined, listed[0].ReminderType)
}

func (suite *SchedulerTestSuite) TestPastOffsetFailsWholeBatch() {
	// Due in one hour: the 2-hour offset already passed.
	due := time.Now().Add(time.Hour)
	offsets := []Offset{{15, models.UnitMinutes}, {2, models.UnitHours}}

	_, err := suite.scheduler.SchedulePredefined(context.Background(), suite.taskID, due, offsets)
	suite.Require().Error(err)
	suite.ErrorIs(err, apierrors.ErrReminderInPast)

	listed, err := suite.scheduler.List(context.Background(), suite.taskID)
	suite.Require().NoError(err)
	suite.Empty(listed)
}

func (suite *SchedulerTestSuite) TestScheduleCustomCarriesOffset() {
	due := time.Now().Add(2 * time.Hour)
	created, err := suite.scheduler.ScheduleCustom(context.Background(), suite.taskID, due, Offset{45, models.UnitMinutes})
	suite.Require().NoError(err)
	suite.Require().Len(created, 1)
	suite.Equal(models.ReminderCustom, created[0].ReminderType)
	suite.Equal(45, created[0].TimeValue)
	suite.Equal(models.UnitMinutes, created[0].TimeUnit)
}

func (suite *SchedulerTestSuite) TestScheduleCustomInPast() {
	// Due in ten minutes: an hour's lead time already passed.
	due := time.Now().Add(10 * time.Minute)
	_, err := suite.scheduler.ScheduleCustom(context.Background(), suite.taskID, due, Offset{1, models.UnitHours})
	suite.ErrorIs(err, apierrors.ErrReminderInPast)
}

func (suite *SchedulerTestSuite) TestScheduleCustomRejectsBadOffset() {
	due := time.Now().Add(48 * time.Hour)

	_, err := suite.scheduler.ScheduleCustom(context.Background(), suite.taskID, due, Offset{0, models.UnitMinutes})
	suite.Require().Error(err)
	suite.True(apierrors.IsKind(err, apierrors.ErrCodeValidation))

	_, err = suite.scheduler.ScheduleCustom(context.Background(), suite.taskID, due, Offset{5, models.TimeUnit("fortnights")})
	suite.Require().Error(err)
	suite.True(apierrors.IsKind(err, apierrors.ErrCodeValidation))

	listed, err := suite.scheduler.List(context.Background(), suite.taskID)
	suite.Require().NoError(err)
	suite.Empty(listed)
}

func (suite *SchedulerTestSuite) TestRemove() {
	due := time.Now().Add(3 * time.Hour)
	created, err := suite.scheduler.ScheduleCustom(context.Background(), suite.taskID, due, Offset{1, models.UnitHours})
	suite.Require().NoError(err)

	suite.Require().NoError(suite.scheduler.Remove(context.Background(), suite.taskID, created[0].ID))
	listed, err := suite.scheduler.List(context.Background(), suite.taskID)
	suite.Require().NoError(err)
	suite.Empty(listed)
}

func TestSchedulerTestSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}
