// Package sphertest is an in-process Task Sphere server used by the
// client test suites. It implements the REST surface and the socket
// fan-out with in-memory state, plus knobs for forcing failure paths.
package sphertest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tasksphere/sphere-client/internal/dto"
	"github.com/tasksphere/sphere-client/internal/models"
)

const signingSecret = "sphertest-secret"

type queueKey struct {
	UserID uint64
	ListID uint64
}

// Server is the fake backend. All fields guarded by mu.
type Server struct {
	mu sync.Mutex

	httpSrv *httptest.Server
	rooms   *roomHub

	nextID        uint64
	users         map[uint64]*models.User
	passwords     map[string]string // email -> password
	usersByEmail  map[string]uint64
	refreshTokens map[string]uint64 // refresh token -> user
	lists         map[uint64]*models.TaskList
	memberships   map[uint64][]uint64 // list -> user ids
	tasks         map[uint64]*models.Task
	projects      map[uint64]*models.Project
	requesters    map[uint64]*models.Requester
	queues        map[queueKey][]uint64
	reminders     map[uint64][]models.Reminder // task -> reminders
	notifications map[uint64][]models.Notification

	// TokenTTL bounds issued access tokens; tests shrink it to drive
	// expiry paths.
	TokenTTL time.Duration

	// Failure knobs.
	forceNeedsRefreshOnce bool
	failNextStatus        int
	refreshCalls          int
}

// New starts the fake server.
func New() *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		rooms:         newRoomHub(),
		users:         make(map[uint64]*models.User),
		passwords:     make(map[string]string),
		usersByEmail:  make(map[string]uint64),
		refreshTokens: make(map[string]uint64),
		lists:         make(map[uint64]*models.TaskList),
		memberships:   make(map[uint64][]uint64),
		tasks:         make(map[uint64]*models.Task),
		projects:      make(map[uint64]*models.Project),
		requesters:    make(map[uint64]*models.Requester),
		queues:        make(map[queueKey][]uint64),
		reminders:     make(map[uint64][]models.Reminder),
		notifications: make(map[uint64][]models.Notification),
		TokenTTL:      time.Hour,
	}
	// The socket endpoint hijacks the connection, which gin's response
	// writer refuses once it has flushed, so it is mounted on a plain
	// mux in front of the engine.
	mux := http.NewServeMux()
	mux.HandleFunc("/socket", s.handleSocket)
	mux.Handle("/", s.router())
	s.httpSrv = httptest.NewServer(mux)
	return s
}

// Close shuts the server down.
func (s *Server) Close() {
	s.rooms.closeAll()
	s.httpSrv.Close()
}

// URL is the REST base URL.
func (s *Server) URL() string { return s.httpSrv.URL }

// SocketURL is the websocket endpoint.
func (s *Server) SocketURL() string {
	return "ws" + strings.TrimPrefix(s.httpSrv.URL, "http") + "/socket"
}

// ForceNeedsRefreshOnce makes the next authenticated request fail with
// 403 {needsRefresh:true} regardless of token validity.
func (s *Server) ForceNeedsRefreshOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceNeedsRefreshOnce = true
}

// FailNextWith makes the next authenticated request fail with status.
func (s *Server) FailNextWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextStatus = status
}

// RefreshCalls reports how many times /auth/refresh was hit.
func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

func (s *Server) id() uint64 {
	s.nextID++
	return s.nextID
}

func (s *Server) issueTokens(userID uint64) (access, refresh string) {
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(userID, 10),
		"exp": time.Now().Add(s.TokenTTL).Unix(),
	}
	access, _ = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingSecret))
	refresh = fmt.Sprintf("refresh-%d-%d", userID, s.id())
	s.refreshTokens[refresh] = userID
	return access, refresh
}

// Seed helpers used by tests.

// SeedUser registers a user directly and returns it with its tokens.
func (s *Server) SeedUser(email, password, name string) (*models.User, string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := &models.User{ID: s.id(), Email: email, Name: name}
	s.users[user.ID] = user
	s.usersByEmail[email] = user.ID
	s.passwords[email] = password
	access, refresh := s.issueTokens(user.ID)
	return user, access, refresh
}

// SeedList creates a task list owned by userID with the owner as its
// first member.
func (s *Server) SeedList(ownerID uint64, name string) *models.TaskList {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := &models.TaskList{
		ID:         s.id(),
		Name:       name,
		OwnerID:    ownerID,
		InviteCode: fmt.Sprintf("INV-%d", s.nextID),
	}
	s.lists[list.ID] = list
	s.memberships[list.ID] = []uint64{ownerID}
	return list
}

// SeedTask creates a task directly in a list.
func (s *Server) SeedTask(listID uint64, name string) *models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	task := &models.Task{
		ID:         s.id(),
		TaskListID: listID,
		Name:       name,
		Priority:   models.PriorityMedium,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.tasks[task.ID] = task
	return task
}

// SeedNotification stores a notification for a user without pushing it.
func (s *Server) SeedNotification(userID uint64, n models.Notification) models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.id()
	n.UserID = userID
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	s.notifications[userID] = append([]models.Notification{n}, s.notifications[userID]...)
	return n
}

// PushNotification stores a notification and emits newNotification to
// the user's room.
func (s *Server) PushNotification(userID uint64, n models.Notification) models.Notification {
	stored := s.SeedNotification(userID, n)
	s.rooms.emit(userRoom(userID), "newNotification", stored)
	return stored
}

// EmitTaskCreated fans a taskCreated event out to the list room.
func (s *Server) EmitTaskCreated(task models.Task) {
	s.rooms.emit(listRoom(task.TaskListID), "taskCreated", task)
}

// EmitTaskUpdated fans a taskUpdated event out to the list room.
func (s *Server) EmitTaskUpdated(task models.Task) {
	s.rooms.emit(listRoom(task.TaskListID), "taskUpdated", task)
}

// Joins are processed asynchronously by the socket read loop, so a
// test that emits right after joining can race ahead of its own join.
// The WaitFor helpers block until the room reaches the wanted size.

func (s *Server) waitForRoom(room string, size int) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.rooms.size(room) == size {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// WaitForListRoom blocks until the list's room has exactly size
// members, or reports false after a two second deadline.
func (s *Server) WaitForListRoom(listID uint64, size int) bool {
	return s.waitForRoom(listRoom(listID), size)
}

// WaitForUserRoom is WaitForListRoom for a user's personal room.
func (s *Server) WaitForUserRoom(userID uint64, size int) bool {
	return s.waitForRoom(userRoom(userID), size)
}

// EmitRaw fans an arbitrary payload out to a list room, for driving
// malformed-event paths.
func (s *Server) EmitRaw(listID uint64, event string, payload any) {
	s.rooms.emit(listRoom(listID), event, payload)
}

// EmitTaskDeleted fans a taskDeleted event out to the list room.
func (s *Server) EmitTaskDeleted(listID, taskID uint64) {
	s.rooms.emit(listRoom(listID), "taskDeleted", gin.H{"id": taskID})
}

// auth middleware

func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		if s.failNextStatus != 0 {
			status := s.failNextStatus
			s.failNextStatus = 0
			s.mu.Unlock()
			c.AbortWithStatusJSON(status, gin.H{"error": "forced failure"})
			return
		}
		if s.forceNeedsRefreshOnce {
			s.forceNeedsRefreshOnce = false
			s.mu.Unlock()
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"needsRefresh": true})
			return
		}
		s.mu.Unlock()

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")
		tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			return []byte(signingSecret), nil
		})
		if err != nil {
			if strings.Contains(err.Error(), "expired") {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"needsRefresh": true})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		sub, err := tok.Claims.GetSubject()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		userID, _ := strconv.ParseUint(sub, 10, 64)
		c.Set("user_id", userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) uint64 {
	return c.GetUint64("user_id")
}

func parseID(c *gin.Context, name string) uint64 {
	id, _ := strconv.ParseUint(c.Param(name), 10, 64)
	return id
}

func (s *Server) router() *gin.Engine {
	r := gin.New()

	r.POST("/auth/register", s.handleRegister)
	r.POST("/auth/login", s.handleLogin)
	r.POST("/auth/refresh", s.handleRefresh)

	authed := r.Group("", s.requireAuth())
	{
		authed.GET("/task-lists", s.handleListTaskLists)
		authed.POST("/task-lists", s.handleCreateTaskList)
		authed.POST("/task-lists/join", s.handleJoinTaskList)
		authed.DELETE("/task-lists/:id", s.handleDeleteTaskList)
		authed.GET("/task-lists/:id/members", s.handleListMembers)
		authed.GET("/task-lists/:id/tasks", s.handleListTasks)
		authed.GET("/task-lists/:id/projects", s.handleListProjects)
		authed.GET("/task-lists/:id/requesters", s.handleListRequesters)
		authed.POST("/task-lists/:id/tasks", s.handleCreateTask)
		authed.POST("/task-lists/:id/projects", s.handleCreateProject)
		authed.POST("/task-lists/:id/requesters", s.handleCreateRequester)

		authed.PUT("/tasks/:id", s.handleUpdateTask)
		authed.DELETE("/tasks/:id", s.handleDeleteTask)
		authed.GET("/tasks/:id/reminders", s.handleListReminders)
		authed.POST("/tasks/:id/reminders", s.handleCreateReminders)
		authed.DELETE("/tasks/:id/reminders/:reminderId", s.handleDeleteReminder)
		authed.GET("/reminders/missed", s.handleMissedReminders)

		authed.DELETE("/projects/:id", s.handleDeleteProject)
		authed.DELETE("/requesters/:id", s.handleDeleteRequester)

		authed.GET("/users/:userId/queue", s.handleGetQueue)
		authed.POST("/users/:userId/queue", s.handleAddToQueue)
		authed.PUT("/users/:userId/queue/reorder", s.handleReorderQueue)
		authed.DELETE("/users/:userId/queue/:taskId", s.handleRemoveFromQueue)

		authed.GET("/notifications", s.handleListNotifications)
		authed.GET("/notifications/unread-count", s.handleUnreadCount)
		authed.PUT("/notifications/:id/read", s.handleMarkRead)
		authed.PUT("/notifications/mark-all-read", s.handleMarkAllRead)
		authed.DELETE("/notifications/:id", s.handleDeleteNotification)
		authed.DELETE("/notifications/clear-all", s.handleClearAll)

		authed.GET("/profile", s.handleGetProfile)
		authed.PUT("/profile", s.handleUpdateProfile)
		authed.PUT("/profile/password", s.handleChangePassword)
	}

	return r
}

// auth handlers

func (s *Server) handleRegister(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByEmail[req.Email]; exists {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}
	user := &models.User{ID: s.id(), Email: req.Email, Name: req.Name}
	s.users[user.ID] = user
	s.usersByEmail[req.Email] = user.ID
	s.passwords[req.Email] = req.Password
	access, refresh := s.issueTokens(user.ID)
	c.JSON(http.StatusCreated, dto.AuthResponse{User: user, Token: access, RefreshToken: refresh})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.usersByEmail[req.Email]
	if !ok || s.passwords[req.Email] != req.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}
	access, refresh := s.issueTokens(userID)
	c.JSON(http.StatusOK, dto.AuthResponse{User: s.users[userID], Token: access, RefreshToken: refresh})
}

func (s *Server) handleRefresh(c *gin.Context) {
	var req dto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshCalls++
	userID, ok := s.refreshTokens[req.RefreshToken]
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	delete(s.refreshTokens, req.RefreshToken)
	access, refresh := s.issueTokens(userID)
	c.JSON(http.StatusOK, gin.H{"token": access, "refreshToken": refresh})
}
