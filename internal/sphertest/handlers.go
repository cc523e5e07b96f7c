package sphertest

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tasksphere/sphere-client/internal/dto"
	"github.com/tasksphere/sphere-client/internal/models"
)

// task lists

func (s *Server) handleListTaskLists(c *gin.Context) {
	userID := currentUser(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	var lists []models.TaskList
	for listID, members := range s.memberships {
		for _, m := range members {
			if m == userID {
				list := *s.lists[listID]
				taskCount := 0
				for _, t := range s.tasks {
					if t.TaskListID == listID {
						taskCount++
					}
				}
				memberCount := len(members)
				list.TaskCount = &taskCount
				list.MemberCount = &memberCount
				lists = append(lists, list)
			}
		}
	}
	sort.Slice(lists, func(i, j int) bool { return lists[i].ID < lists[j].ID })
	c.JSON(http.StatusOK, lists)
}

func (s *Server) handleCreateTaskList(c *gin.Context) {
	var req dto.CreateListRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	userID := currentUser(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	list := &models.TaskList{
		ID:          s.id(),
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     userID,
	}
	list.InviteCode = "INV-" + strconv.FormatUint(list.ID, 10)
	s.lists[list.ID] = list
	s.memberships[list.ID] = []uint64{userID}
	c.JSON(http.StatusCreated, list)
}

func (s *Server) handleJoinTaskList(c *gin.Context) {
	var req dto.JoinListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	userID := currentUser(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, list := range s.lists {
		if list.InviteCode == req.InviteCode {
			for _, m := range s.memberships[list.ID] {
				if m == userID {
					c.JSON(http.StatusConflict, gin.H{"error": "already a member"})
					return
				}
			}
			s.memberships[list.ID] = append(s.memberships[list.ID], userID)
			c.JSON(http.StatusOK, list)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "invalid invite code"})
}

func (s *Server) handleDeleteTaskList(c *gin.Context) {
	listID := parseID(c, "id")
	userID := currentUser(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.lists[listID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task list not found"})
		return
	}
	if list.OwnerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner can delete a list"})
		return
	}
	delete(s.lists, listID)
	delete(s.memberships, listID)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListMembers(c *gin.Context) {
	listID := parseID(c, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	members := []models.Member{}
	for _, uid := range s.memberships[listID] {
		if u, ok := s.users[uid]; ok {
			members = append(members, models.Member{ID: u.ID, Name: u.Name, Email: u.Email, AvatarURL: u.AvatarURL})
		}
	}
	c.JSON(http.StatusOK, members)
}

func (s *Server) handleListTasks(c *gin.Context) {
	listID := parseID(c, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := []models.Task{}
	for _, t := range s.tasks {
		if t.TaskListID == listID {
			tasks = append(tasks, *t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID > tasks[j].ID })
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleListProjects(c *gin.Context) {
	listID := parseID(c, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	projects := []models.Project{}
	for _, p := range s.projects {
		if p.TaskListID == listID {
			projects = append(projects, *p)
		}
	}
	c.JSON(http.StatusOK, projects)
}

func (s *Server) handleListRequesters(c *gin.Context) {
	listID := parseID(c, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	requesters := []models.Requester{}
	for _, r := range s.requesters {
		if r.TaskListID == listID {
			requesters = append(requesters, *r)
		}
	}
	c.JSON(http.StatusOK, requesters)
}

// tasks

func (s *Server) handleCreateTask(c *gin.Context) {
	listID := parseID(c, "id")
	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	s.mu.Lock()
	now := time.Now().UTC()
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	task := &models.Task{
		ID:             s.id(),
		TaskListID:     listID,
		Name:           req.Name,
		Description:    req.Description,
		Priority:       priority,
		AssignedTo:     req.AssignedTo,
		ProjectID:      req.ProjectID,
		RequesterID:    req.RequesterID,
		DueDate:        req.DueDate,
		EstimatedHours: req.EstimatedHours,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.denormalize(task)
	s.tasks[task.ID] = task
	created := *task
	s.mu.Unlock()

	// Mirror the real server: REST response first, then fan-out.
	s.EmitTaskCreated(created)
	c.JSON(http.StatusCreated, created)
}

// denormalize fills the *_name fields from the label tables. Caller
// holds mu.
func (s *Server) denormalize(task *models.Task) {
	if task.AssignedTo != nil {
		if u, ok := s.users[*task.AssignedTo]; ok {
			task.AssignedToName = &u.Name
		}
	} else {
		task.AssignedToName = nil
	}
	if task.ProjectID != nil {
		if p, ok := s.projects[*task.ProjectID]; ok {
			task.ProjectName = &p.Name
		}
	} else {
		task.ProjectName = nil
	}
	if task.RequesterID != nil {
		if r, ok := s.requesters[*task.RequesterID]; ok {
			task.RequesterName = &r.Name
		}
	} else {
		task.RequesterName = nil
	}
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	taskID := parseID(c, "id")
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	var req dto.UpdateTaskRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	// Explicit nulls clear optional fields, distinct from omission.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	isNull := func(name string) bool {
		v, ok := fields[name]
		return ok && string(v) == "null"
	}

	s.mu.Lock()
	task, ok := s.tasks[taskID]
	if !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if req.Name != nil {
		task.Name = *req.Name
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil {
		task.Status = *req.Status
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.AssignedTo != nil {
		task.AssignedTo = req.AssignedTo
	} else if isNull("assignedTo") {
		task.AssignedTo = nil
	}
	if req.ProjectID != nil {
		task.ProjectID = req.ProjectID
	} else if isNull("projectId") {
		task.ProjectID = nil
	}
	if req.RequesterID != nil {
		task.RequesterID = req.RequesterID
	} else if isNull("requesterId") {
		task.RequesterID = nil
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	} else if isNull("dueDate") {
		task.DueDate = nil
	}
	if req.EstimatedHours != nil {
		task.EstimatedHours = req.EstimatedHours
	} else if isNull("estimatedHours") {
		task.EstimatedHours = nil
	}
	task.UpdatedAt = time.Now().UTC()
	s.denormalize(task)
	updated := *task
	s.mu.Unlock()

	s.EmitTaskUpdated(updated)
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	taskID := parseID(c, "id")
	s.mu.Lock()
	task, ok := s.tasks[taskID]
	if !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	listID := task.TaskListID
	delete(s.tasks, taskID)
	for key, q := range s.queues {
		s.queues[key] = removeID(q, taskID)
	}
	s.mu.Unlock()

	s.EmitTaskDeleted(listID, taskID)
	c.Status(http.StatusNoContent)
}

// projects / requesters

func (s *Server) handleCreateProject(c *gin.Context) {
	listID := parseID(c, "id")
	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projects {
		if p.TaskListID == listID && p.Name == req.Name {
			c.JSON(http.StatusConflict, gin.H{"error": "project already exists"})
			return
		}
	}
	project := &models.Project{ID: s.id(), Name: req.Name, TaskListID: listID}
	s.projects[project.ID] = project
	c.JSON(http.StatusCreated, project)
}

func (s *Server) handleDeleteProject(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, parseID(c, "id"))
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCreateRequester(c *gin.Context) {
	listID := parseID(c, "id")
	var req dto.CreateRequesterRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	requester := &models.Requester{ID: s.id(), Name: req.Name, Email: req.Email, TaskListID: listID}
	s.requesters[requester.ID] = requester
	c.JSON(http.StatusCreated, requester)
}

func (s *Server) handleDeleteRequester(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.requesters, parseID(c, "id"))
	c.Status(http.StatusNoContent)
}

// queue

func (s *Server) queueTasks(key queueKey) []models.Task {
	out := make([]models.Task, 0, len(s.queues[key]))
	for i, taskID := range s.queues[key] {
		task, ok := s.tasks[taskID]
		if !ok {
			continue
		}
		snapshot := *task
		pos := i + 1
		snapshot.QueuePosition = &pos
		out = append(out, snapshot)
	}
	return out
}

func (s *Server) handleGetQueue(c *gin.Context) {
	userID := parseID(c, "userId")
	listID, _ := strconv.ParseUint(c.Query("taskListId"), 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.queueTasks(queueKey{UserID: userID, ListID: listID}))
}

func (s *Server) handleAddToQueue(c *gin.Context) {
	userID := parseID(c, "userId")
	var req dto.AddToQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[req.TaskID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	key := queueKey{UserID: userID, ListID: task.TaskListID}
	for _, id := range s.queues[key] {
		if id == req.TaskID {
			c.JSON(http.StatusConflict, gin.H{"error": "task already queued"})
			return
		}
	}
	s.queues[key] = append(s.queues[key], req.TaskID)
	snapshot := *task
	pos := len(s.queues[key])
	snapshot.QueuePosition = &pos
	c.JSON(http.StatusCreated, snapshot)
}

func (s *Server) handleReorderQueue(c *gin.Context) {
	userID := parseID(c, "userId")
	var req dto.ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.TaskOrders) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "taskOrders is required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := append([]dto.TaskOrder(nil), req.TaskOrders...)
	sort.Slice(orders, func(i, j int) bool { return orders[i].Position < orders[j].Position })

	var listID uint64
	ids := make([]uint64, 0, len(orders))
	for _, o := range orders {
		task, ok := s.tasks[o.TaskID]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		listID = task.TaskListID
		ids = append(ids, o.TaskID)
	}
	s.queues[queueKey{UserID: userID, ListID: listID}] = ids
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleRemoveFromQueue(c *gin.Context) {
	userID := parseID(c, "userId")
	taskID := parseID(c, "taskId")
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	key := queueKey{UserID: userID, ListID: task.TaskListID}
	s.queues[key] = removeID(s.queues[key], taskID)
	c.Status(http.StatusNoContent)
}

// reminders

func (s *Server) handleListReminders(c *gin.Context) {
	taskID := parseID(c, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	reminders := s.reminders[taskID]
	if reminders == nil {
		reminders = []models.Reminder{}
	}
	c.JSON(http.StatusOK, reminders)
}

func (s *Server) handleCreateReminders(c *gin.Context) {
	taskID := parseID(c, "id")
	var inputs []dto.ReminderInput
	if err := c.ShouldBindJSON(&inputs); err != nil || len(inputs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one reminder is required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	created := make([]models.Reminder, 0, len(inputs))
	for _, in := range inputs {
		if !in.ReminderDatetime.After(time.Now()) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reminder time is in the past"})
			return
		}
		r := models.Reminder{
			ID:               s.id(),
			TaskID:           taskID,
			ReminderType:     in.ReminderType,
			TimeValue:        in.TimeValue,
			TimeUnit:         in.TimeUnit,
			ReminderDatetime: in.ReminderDatetime,
		}
		s.reminders[taskID] = append(s.reminders[taskID], r)
		created = append(created, r)
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleDeleteReminder(c *gin.Context) {
	taskID := parseID(c, "id")
	reminderID := parseID(c, "reminderId")
	s.mu.Lock()
	defer s.mu.Unlock()
	reminders := s.reminders[taskID]
	for i, r := range reminders {
		if r.ID == reminderID {
			s.reminders[taskID] = append(reminders[:i], reminders[i+1:]...)
			c.Status(http.StatusNoContent)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "reminder not found"})
}

func (s *Server) handleMissedReminders(c *gin.Context) {
	c.JSON(http.StatusOK, []models.MissedReminder{})
}

// notifications

func (s *Server) handleListNotifications(c *gin.Context) {
	userID := currentUser(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	notifications := s.notifications[userID]
	if notifications == nil {
		notifications = []models.Notification{}
	}
	c.JSON(http.StatusOK, notifications)
}

func (s *Server) handleUnreadCount(c *gin.Context) {
	userID := currentUser(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.notifications[userID] {
		if !n.Read {
			count++
		}
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (s *Server) handleMarkRead(c *gin.Context) {
	userID := currentUser(c)
	id := parseID(c, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications[userID] {
		if s.notifications[userID][i].ID == id {
			s.notifications[userID][i].Read = true
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
}

func (s *Server) handleMarkAllRead(c *gin.Context) {
	userID := currentUser(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications[userID] {
		s.notifications[userID][i].Read = true
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleDeleteNotification(c *gin.Context) {
	userID := currentUser(c)
	id := parseID(c, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.notifications[userID]
	for i, n := range list {
		if n.ID == id {
			s.notifications[userID] = append(list[:i], list[i+1:]...)
			c.Status(http.StatusNoContent)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
}

func (s *Server) handleClearAll(c *gin.Context) {
	userID := currentUser(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[userID] = nil
	c.Status(http.StatusNoContent)
}

// profile

func (s *Server) handleGetProfile(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[currentUser(c)]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) handleUpdateProfile(c *gin.Context) {
	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[currentUser(c)]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.AvatarURL != nil {
		user.AvatarURL = req.AvatarURL
	}
	if req.DarkModePreference != nil {
		user.DarkModePreference = req.DarkModePreference
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) handleChangePassword(c *gin.Context) {
	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[currentUser(c)]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if s.passwords[user.Email] != req.CurrentPassword {
		c.JSON(http.StatusForbidden, gin.H{"error": "current password is incorrect"})
		return
	}
	s.passwords[user.Email] = req.NewPassword
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// helpers

func removeID(ids []uint64, target uint64) []uint64 {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
