package realtime_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/tasksphere/sphere-client/internal/models"
	"github.com/tasksphere/sphere-client/internal/realtime"
	"github.com/tasksphere/sphere-client/internal/sphertest"
)

type RealtimeTestSuite struct {
	suite.Suite
	server *sphertest.Server
	client *realtime.Client
	userID uint64
	listID uint64
}

func (suite *RealtimeTestSuite) SetupTest() {
	suite.server = sphertest.New()
	user, access, _ := suite.server.SeedUser("ada@example.com", "Sphere123", "Ada")
	suite.userID = user.ID
	suite.listID = suite.server.SeedList(user.ID, "Sprint Board").ID

	suite.client = realtime.NewClient(suite.server.SocketURL(), func() string { return access })
	suite.Require().NoError(suite.client.Connect(context.Background()))
}

func (suite *RealtimeTestSuite) TearDownTest() {
	suite.client.Disconnect()
	suite.server.Close()
}

func (suite *RealtimeTestSuite) TestListRoomDelivery() {
	suite.Require().NoError(suite.client.JoinTaskList(suite.listID))
	suite.Require().True(suite.server.WaitForListRoom(suite.listID, 1))

	got := make(chan models.Task, 1)
	suite.client.OnTaskCreated(func(t models.Task) { got <- t })

	suite.server.EmitTaskCreated(models.Task{ID: 1, TaskListID: suite.listID, Name: "Ship it"})

	select {
	case task := <-got:
		suite.Equal("Ship it", task.Name)
	case <-time.After(2 * time.Second):
		suite.FailNow("event never arrived")
	}
}

func (suite *RealtimeTestSuite) TestHandlersRunInRegistrationOrder() {
	suite.Require().NoError(suite.client.JoinTaskList(suite.listID))
	suite.Require().True(suite.server.WaitForListRoom(suite.listID, 1))

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})
	suite.client.On(realtime.EventTaskCreated, func(json.RawMessage) {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
	})
	suite.client.On(realtime.EventTaskCreated, func(json.RawMessage) {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
		close(done)
	})

	suite.server.EmitTaskCreated(models.Task{ID: 1, TaskListID: suite.listID, Name: "x"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		suite.FailNow("event never arrived")
	}
	mu.Lock()
	defer mu.Unlock()
	suite.Equal([]string{"first", "second"}, order)
}

func (suite *RealtimeTestSuite) TestOffStopsDelivery() {
	suite.Require().NoError(suite.client.JoinTaskList(suite.listID))
	suite.Require().True(suite.server.WaitForListRoom(suite.listID, 1))

	removed := make(chan struct{}, 4)
	kept := make(chan struct{}, 4)
	id := suite.client.On(realtime.EventTaskCreated, func(json.RawMessage) { removed <- struct{}{} })
	suite.client.On(realtime.EventTaskCreated, func(json.RawMessage) { kept <- struct{}{} })

	suite.client.Off(realtime.EventTaskCreated, id)
	suite.server.EmitTaskCreated(models.Task{ID: 1, TaskListID: suite.listID})

	select {
	case <-kept:
	case <-time.After(2 * time.Second):
		suite.FailNow("event never arrived")
	}
	select {
	case <-removed:
		suite.FailNow("removed handler still ran")
	case <-time.After(100 * time.Millisecond):
	}
}

func (suite *RealtimeTestSuite) TestLeaveTaskListStopsDelivery() {
	suite.Require().NoError(suite.client.JoinTaskList(suite.listID))
	suite.Require().True(suite.server.WaitForListRoom(suite.listID, 1))

	got := make(chan models.Task, 4)
	suite.client.OnTaskCreated(func(t models.Task) { got <- t })

	suite.server.EmitTaskCreated(models.Task{ID: 1, TaskListID: suite.listID})
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		suite.FailNow("event never arrived")
	}

	suite.Require().NoError(suite.client.LeaveTaskList(suite.listID))
	suite.Require().True(suite.server.WaitForListRoom(suite.listID, 0))

	suite.server.EmitTaskCreated(models.Task{ID: 2, TaskListID: suite.listID})
	select {
	case <-got:
		suite.FailNow("event delivered after leaving the room")
	case <-time.After(200 * time.Millisecond):
	}
}

func (suite *RealtimeTestSuite) TestUserRoomDelivery() {
	suite.Require().NoError(suite.client.JoinUser(suite.userID))
	suite.Require().True(suite.server.WaitForUserRoom(suite.userID, 1))

	got := make(chan models.Notification, 1)
	suite.client.OnNewNotification(func(n models.Notification) { got <- n })

	suite.server.PushNotification(suite.userID, models.Notification{Title: "hello"})

	select {
	case n := <-got:
		suite.Equal("hello", n.Title)
	case <-time.After(2 * time.Second):
		suite.FailNow("notification never arrived")
	}
}

func (suite *RealtimeTestSuite) TestReconnectRestoresRoomsAndHandlers() {
	suite.Require().NoError(suite.client.JoinTaskList(suite.listID))
	suite.Require().True(suite.server.WaitForListRoom(suite.listID, 1))

	got := make(chan models.Task, 4)
	suite.client.OnTaskCreated(func(t models.Task) { got <- t })

	suite.client.Disconnect()
	suite.Require().True(suite.server.WaitForListRoom(suite.listID, 0))
	suite.Require().NoError(suite.client.Connect(context.Background()))
	// The dial replays the join; wait for the server to process it.
	suite.Require().True(suite.server.WaitForListRoom(suite.listID, 1))

	suite.server.EmitTaskCreated(models.Task{ID: 3, TaskListID: suite.listID, Name: "after reconnect"})
	select {
	case task := <-got:
		suite.Equal("after reconnect", task.Name)
	case <-time.After(2 * time.Second):
		suite.FailNow("event never arrived after reconnect")
	}
}

func (suite *RealtimeTestSuite) TestMalformedPayloadSkipped() {
	suite.Require().NoError(suite.client.JoinTaskList(suite.listID))
	suite.Require().True(suite.server.WaitForListRoom(suite.listID, 1))

	got := make(chan models.Task, 4)
	suite.client.OnTaskCreated(func(t models.Task) { got <- t })

	// A malformed event must not wedge the read loop.
	suite.server.EmitRaw(suite.listID, realtime.EventTaskCreated, json.RawMessage(`"not a task"`))
	suite.server.EmitTaskCreated(models.Task{ID: 4, TaskListID: suite.listID, Name: "still alive"})

	select {
	case task := <-got:
		suite.Equal("still alive", task.Name)
	case <-time.After(2 * time.Second):
		suite.FailNow("read loop stopped after malformed payload")
	}
}

func TestRealtimeTestSuite(t *testing.T) {
	suite.Run(t, new(RealtimeTestSuite))
}
