// Package replica mirrors the selected task list on the client: the
// task collection plus its members and labels, kept consistent with
// the user's own REST mutations and with broadcast events from other
// collaborators. The server stays authoritative; merges only dedupe,
// replace or drop by id.
package replica

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tasksphere/sphere-client/internal/api"
	"github.com/tasksphere/sphere-client/internal/dto"
	apierrors "github.com/tasksphere/sphere-client/internal/errors"
	"github.com/tasksphere/sphere-client/internal/models"
	"github.com/tasksphere/sphere-client/internal/realtime"
)

// All is the wildcard for every filter dimension.
const All = ""

// FilterOptions is a pure projection over the task collection; empty
// fields match everything.
type FilterOptions struct {
	Name      string
	Requester string
	Project   string
	Assignee  string
	Priority  models.Priority
}

// Replica holds the live state for the currently selected list.
type Replica struct {
	api *api.Client
	rt  *realtime.Client

	mu         sync.Mutex
	listID     uint64
	tasks      []models.Task
	members    []models.Member
	projects   []models.Project
	requesters []models.Requester
	selected   map[uint64]struct{}
	loading    bool
	lastErr    string

	createdID realtime.HandlerID
	updatedID realtime.HandlerID
	deletedID realtime.HandlerID
	attached  bool
}

// New creates a replica bound to the transport and realtime channel.
func New(client *api.Client, rt *realtime.Client) *Replica {
	return &Replica{
		api:      client,
		rt:       rt,
		selected: make(map[uint64]struct{}),
	}
}

// Attach subscribes the replica to broadcast task events. Idempotent.
func (r *Replica) Attach() {
	r.mu.Lock()
	if r.attached {
		r.mu.Unlock()
		return
	}
	r.attached = true
	r.mu.Unlock()

	r.createdID = r.rt.OnTaskCreated(r.ApplyCreated)
	r.updatedID = r.rt.OnTaskUpdated(r.ApplyUpdated)
	r.deletedID = r.rt.OnTaskDeleted(r.ApplyDeleted)
}

// Detach removes the broadcast subscriptions.
func (r *Replica) Detach() {
	r.mu.Lock()
	if !r.attached {
		r.mu.Unlock()
		return
	}
	r.attached = false
	r.mu.Unlock()

	r.rt.Off(realtime.EventTaskCreated, r.createdID)
	r.rt.Off(realtime.EventTaskUpdated, r.updatedID)
	r.rt.Off(realtime.EventTaskDeleted, r.deletedID)
}

// Select switches the replica to a list: leave the previous room,
// join the new one, load everything.
func (r *Replica) Select(ctx context.Context, listID uint64) error {
	r.mu.Lock()
	previous := r.listID
	r.mu.Unlock()

	if previous != 0 && previous != listID {
		r.rt.LeaveTaskList(previous)
	}
	if err := r.Load(ctx, listID); err != nil {
		return err
	}
	r.rt.JoinTaskList(listID)
	return nil
}

// Load fans out the four collection fetches and publishes the result
// atomically; a partial failure leaves the previous state in place.
func (r *Replica) Load(ctx context.Context, listID uint64) error {
	r.mu.Lock()
	r.loading = true
	r.mu.Unlock()

	var (
		tasks      []models.Task
		members    []models.Member
		projects   []models.Project
		requesters []models.Requester
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tasks, err = r.api.ListTasks(gctx, listID)
		return err
	})
	g.Go(func() error {
		var err error
		members, err = r.api.ListMembers(gctx, listID)
		return err
	})
	g.Go(func() error {
		var err error
		projects, err = r.api.ListProjects(gctx, listID)
		return err
	})
	g.Go(func() error {
		var err error
		requesters, err = r.api.ListRequesters(gctx, listID)
		return err
	})

	if err := g.Wait(); err != nil {
		r.fail(err)
		return err
	}

	r.mu.Lock()
	r.listID = listID
	r.tasks = tasks
	r.members = members
	r.projects = projects
	r.requesters = requesters
	r.selected = make(map[uint64]struct{})
	r.loading = false
	r.lastErr = ""
	r.mu.Unlock()
	return nil
}

// fail records a human-readable error without touching model state.
// Cancellation stays off the error surface.
func (r *Replica) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading = false
	if apierrors.IsCancelled(err) {
		return
	}
	r.lastErr = err.Error()
}

// CreateTask posts a new task and prepends the server's echo unless a
// broadcast already delivered it.
func (r *Replica) CreateTask(ctx context.Context, req dto.CreateTaskRequest) (*models.Task, error) {
	r.mu.Lock()
	listID := r.listID
	r.mu.Unlock()

	task, err := r.api.CreateTask(ctx, listID, req)
	if err != nil {
		r.fail(err)
		return nil, err
	}
	r.ApplyCreated(*task)
	return task, nil
}

// UpdateTask puts a partial update and replaces the task with the
// canonical server record.
func (r *Replica) UpdateTask(ctx context.Context, taskID uint64, req dto.UpdateTaskRequest) (*models.Task, error) {
	task, err := r.api.UpdateTask(ctx, taskID, req)
	if err != nil {
		r.fail(err)
		return nil, err
	}
	r.ApplyUpdated(*task)
	return task, nil
}

// ToggleStatus flips the done flag through a computed patch.
func (r *Replica) ToggleStatus(ctx context.Context, taskID uint64) (*models.Task, error) {
	r.mu.Lock()
	var current *models.Task
	for i := range r.tasks {
		if r.tasks[i].ID == taskID {
			current = &r.tasks[i]
			break
		}
	}
	if current == nil {
		r.mu.Unlock()
		return nil, apierrors.ErrNotFound
	}
	patch := dto.TogglePatch(current.Status)
	r.mu.Unlock()

	return r.UpdateTask(ctx, taskID, patch)
}

// DeleteTask removes a task on the server and locally.
func (r *Replica) DeleteTask(ctx context.Context, taskID uint64) error {
	if err := r.api.DeleteTask(ctx, taskID); err != nil {
		r.fail(err)
		return err
	}
	r.ApplyDeleted(taskID)
	return nil
}

// Broadcast merge handlers. Each is safe against stale or duplicate
// delivery: create dedupes, update replaces or no-ops, delete no-ops
// when the task is already gone.

// ApplyCreated prepends a task iff it is not already present.
func (r *Replica) ApplyCreated(task models.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task.TaskListID != r.listID {
		return
	}
	for i := range r.tasks {
		if r.tasks[i].ID == task.ID {
			return
		}
	}
	r.tasks = append([]models.Task{task}, r.tasks...)
}

// ApplyUpdated replaces the task by id; unknown ids are ignored.
func (r *Replica) ApplyUpdated(task models.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.tasks {
		if r.tasks[i].ID == task.ID {
			r.tasks[i] = task
			return
		}
	}
}

// ApplyDeleted removes the task by id, including from the selection
// set.
func (r *Replica) ApplyDeleted(taskID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.selected, taskID)
	for i := range r.tasks {
		if r.tasks[i].ID == taskID {
			r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
			return
		}
	}
}

// SetQueuePosition writes the derived queue position onto a task.
// Only the queue engine calls this.
func (r *Replica) SetQueuePosition(taskID uint64, position *int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.tasks {
		if r.tasks[i].ID == taskID {
			r.tasks[i].QueuePosition = position
			return
		}
	}
}

// Select / deselect tasks for bulk operations.

func (r *Replica) ToggleSelected(taskID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.selected[taskID]; ok {
		delete(r.selected, taskID)
	} else {
		r.selected[taskID] = struct{}{}
	}
}

func (r *Replica) SelectedIDs() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uint64, 0, len(r.selected))
	for id := range r.selected {
		ids = append(ids, id)
	}
	return ids
}

// Accessors return copies so callers cannot mutate replica state.

func (r *Replica) ListID() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listID
}

func (r *Replica) Tasks() []models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Task(nil), r.tasks...)
}

func (r *Replica) Members() []models.Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Member(nil), r.members...)
}

func (r *Replica) Projects() []models.Project {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Project(nil), r.projects...)
}

func (r *Replica) Requesters() []models.Requester {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Requester(nil), r.requesters...)
}

func (r *Replica) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

// Err returns the last surfaced error message, empty when healthy.
func (r *Replica) Err() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Task returns a copy of the task by id.
func (r *Replica) Task(taskID uint64) (models.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.tasks {
		if r.tasks[i].ID == taskID {
			return r.tasks[i], true
		}
	}
	return models.Task{}, false
}

// Filter projects the task collection through the conjunction of the
// given criteria without mutating the replica.
func (r *Replica) Filter(opts FilterOptions) []models.Task {
	r.mu.Lock()
	tasks := append([]models.Task(nil), r.tasks...)
	r.mu.Unlock()

	out := tasks[:0]
	needle := strings.ToLower(opts.Name)
	for _, t := range tasks {
		if needle != All && !strings.Contains(strings.ToLower(t.Name), needle) {
			continue
		}
		if opts.Requester != All && !strEq(t.RequesterName, opts.Requester) {
			continue
		}
		if opts.Project != All && !strEq(t.ProjectName, opts.Project) {
			continue
		}
		if opts.Assignee != All && !strEq(t.AssignedToName, opts.Assignee) {
			continue
		}
		if opts.Priority != models.Priority(All) && t.Priority != opts.Priority {
			continue
		}
		out = append(out, t)
	}
	return out
}

func strEq(have *string, want string) bool {
	return have != nil && *have == want
}
