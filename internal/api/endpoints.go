package api

import (
	"context"
	"fmt"

	"github.com/tasksphere/sphere-client/internal/dto"
	"github.com/tasksphere/sphere-client/internal/models"
)

// Auth

func (c *Client) Register(ctx context.Context, req dto.RegisterRequest) (*dto.AuthResponse, error) {
	var resp dto.AuthResponse
	if err := c.post(ctx, "/auth/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Login(ctx context.Context, req dto.LoginRequest) (*dto.AuthResponse, error) {
	var resp dto.AuthResponse
	if err := c.post(ctx, "/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh exchanges the stored refresh token outside of the 403 path,
// used by the session controller for proactive refreshes.
func (c *Client) Refresh(ctx context.Context) error {
	_, refresh := c.store.Tokens()
	if refresh == "" {
		return fmt.Errorf("no refresh token available")
	}
	_, err := c.refreshTokens(ctx, refresh)
	return err
}

// Task lists

func (c *Client) ListTaskLists(ctx context.Context) ([]models.TaskList, error) {
	var lists []models.TaskList
	if err := c.get(ctx, "/task-lists", &lists); err != nil {
		return nil, err
	}
	return lists, nil
}

func (c *Client) CreateTaskList(ctx context.Context, req dto.CreateListRequest) (*models.TaskList, error) {
	var list models.TaskList
	if err := c.post(ctx, "/task-lists", req, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) JoinTaskList(ctx context.Context, inviteCode string) (*models.TaskList, error) {
	var list models.TaskList
	if err := c.post(ctx, "/task-lists/join", dto.JoinListRequest{InviteCode: inviteCode}, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) DeleteTaskList(ctx context.Context, listID uint64) error {
	return c.del(ctx, fmt.Sprintf("/task-lists/%d", listID))
}

func (c *Client) ListMembers(ctx context.Context, listID uint64) ([]models.Member, error) {
	var members []models.Member
	if err := c.get(ctx, fmt.Sprintf("/task-lists/%d/members", listID), &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *Client) ListTasks(ctx context.Context, listID uint64) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.get(ctx, fmt.Sprintf("/task-lists/%d/tasks", listID), &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) ListProjects(ctx context.Context, listID uint64) ([]models.Project, error) {
	var projects []models.Project
	if err := c.get(ctx, fmt.Sprintf("/task-lists/%d/projects", listID), &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *Client) ListRequesters(ctx context.Context, listID uint64) ([]models.Requester, error) {
	var requesters []models.Requester
	if err := c.get(ctx, fmt.Sprintf("/task-lists/%d/requesters", listID), &requesters); err != nil {
		return nil, err
	}
	return requesters, nil
}

// Tasks

func (c *Client) CreateTask(ctx context.Context, listID uint64, req dto.CreateTaskRequest) (*models.Task, error) {
	var task models.Task
	if err := c.post(ctx, fmt.Sprintf("/task-lists/%d/tasks", listID), req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) UpdateTask(ctx context.Context, taskID uint64, req dto.UpdateTaskRequest) (*models.Task, error) {
	var task models.Task
	if err := c.put(ctx, fmt.Sprintf("/tasks/%d", taskID), req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) DeleteTask(ctx context.Context, taskID uint64) error {
	return c.del(ctx, fmt.Sprintf("/tasks/%d", taskID))
}

// Projects / Requesters

func (c *Client) CreateProject(ctx context.Context, listID uint64, name string) (*models.Project, error) {
	var project models.Project
	if err := c.post(ctx, fmt.Sprintf("/task-lists/%d/projects", listID), dto.CreateProjectRequest{Name: name}, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *Client) DeleteProject(ctx context.Context, projectID uint64) error {
	return c.del(ctx, fmt.Sprintf("/projects/%d", projectID))
}

func (c *Client) CreateRequester(ctx context.Context, listID uint64, req dto.CreateRequesterRequest) (*models.Requester, error) {
	var requester models.Requester
	if err := c.post(ctx, fmt.Sprintf("/task-lists/%d/requesters", listID), req, &requester); err != nil {
		return nil, err
	}
	return &requester, nil
}

func (c *Client) DeleteRequester(ctx context.Context, requesterID uint64) error {
	return c.del(ctx, fmt.Sprintf("/requesters/%d", requesterID))
}

// Queue

func (c *Client) GetQueue(ctx context.Context, userID, listID uint64) ([]models.Task, error) {
	var tasks []models.Task
	path := fmt.Sprintf("/users/%d/queue?taskListId=%d", userID, listID)
	if err := c.get(ctx, path, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) AddToQueue(ctx context.Context, userID, taskID uint64) (*models.Task, error) {
	var task models.Task
	if err := c.post(ctx, fmt.Sprintf("/users/%d/queue", userID), dto.AddToQueueRequest{TaskID: taskID}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) ReorderQueue(ctx context.Context, userID uint64, orders []dto.TaskOrder) error {
	return c.put(ctx, fmt.Sprintf("/users/%d/queue/reorder", userID), dto.ReorderRequest{TaskOrders: orders}, nil)
}

func (c *Client) RemoveFromQueue(ctx context.Context, userID, taskID uint64) error {
	return c.del(ctx, fmt.Sprintf("/users/%d/queue/%d", userID, taskID))
}

// Reminders

func (c *Client) ListReminders(ctx context.Context, taskID uint64) ([]models.Reminder, error) {
	var reminders []models.Reminder
	if err := c.get(ctx, fmt.Sprintf("/tasks/%d/reminders", taskID), &reminders); err != nil {
		return nil, err
	}
	return reminders, nil
}

func (c *Client) CreateReminders(ctx context.Context, taskID uint64, inputs []dto.ReminderInput) ([]models.Reminder, error) {
	var reminders []models.Reminder
	if err := c.post(ctx, fmt.Sprintf("/tasks/%d/reminders", taskID), inputs, &reminders); err != nil {
		return nil, err
	}
	return reminders, nil
}

func (c *Client) DeleteReminder(ctx context.Context, taskID, reminderID uint64) error {
	return c.del(ctx, fmt.Sprintf("/tasks/%d/reminders/%d", taskID, reminderID))
}

func (c *Client) MissedReminders(ctx context.Context) ([]models.MissedReminder, error) {
	var missed []models.MissedReminder
	if err := c.get(ctx, "/reminders/missed", &missed); err != nil {
		return nil, err
	}
	return missed, nil
}

// Notifications

func (c *Client) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	var notifications []models.Notification
	if err := c.get(ctx, "/notifications", &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.get(ctx, "/notifications/unread-count", &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id uint64) error {
	return c.put(ctx, fmt.Sprintf("/notifications/%d/read", id), nil, nil)
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.put(ctx, "/notifications/mark-all-read", nil, nil)
}

func (c *Client) DeleteNotification(ctx context.Context, id uint64) error {
	return c.del(ctx, fmt.Sprintf("/notifications/%d", id))
}

func (c *Client) ClearAllNotifications(ctx context.Context) error {
	return c.del(ctx, "/notifications/clear-all")
}

// Profile

func (c *Client) GetProfile(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.get(ctx, "/profile", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) UpdateProfile(ctx context.Context, req dto.UpdateProfileRequest) (*models.User, error) {
	var user models.User
	if err := c.put(ctx, "/profile", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ChangePassword(ctx context.Context, req dto.ChangePasswordRequest) error {
	return c.put(ctx, "/profile/password", req, nil)
}
