// Package queue maintains the user's personal work queue for the
// selected list. Positions are dense 1..N; the engine renumbers after
// every mutation and is the only writer of queue positions on the
// replica's tasks.
package queue

import (
	"context"
	"sync"

	"github.com/tasksphere/sphere-client/internal/api"
	"github.com/tasksphere/sphere-client/internal/dto"
	apierrors "github.com/tasksphere/sphere-client/internal/errors"
	"github.com/tasksphere/sphere-client/internal/models"
	"github.com/tasksphere/sphere-client/internal/replica"
)

// Engine orders the queue for one (user, list) pair.
type Engine struct {
	api     *api.Client
	replica *replica.Replica

	mu     sync.Mutex
	userID uint64
	listID uint64
	tasks  []models.Task
}

// New creates an engine over the transport and the replica it
// annotates.
func New(client *api.Client, rep *replica.Replica) *Engine {
	return &Engine{api: client, replica: rep}
}

// Load fetches the queue for a (user, list) pair and reconciles the
// replica's positions with it.
func (e *Engine) Load(ctx context.Context, userID, listID uint64) error {
	tasks, err := e.api.GetQueue(ctx, userID, listID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.userID = userID
	e.listID = listID
	e.tasks = tasks
	e.renumberLocked()
	e.mu.Unlock()
	return nil
}

// renumberLocked restores the dense 1..N invariant and pushes every
// position into the replica. Caller holds e.mu.
func (e *Engine) renumberLocked() {
	queued := make(map[uint64]struct{}, len(e.tasks))
	for i := range e.tasks {
		pos := i + 1
		e.tasks[i].QueuePosition = &pos
		queued[e.tasks[i].ID] = struct{}{}
		e.replica.SetQueuePosition(e.tasks[i].ID, &pos)
	}
	// Tasks that fell out of the queue lose their badge.
	for _, t := range e.replica.Tasks() {
		if _, ok := queued[t.ID]; !ok && t.QueuePosition != nil {
			e.replica.SetQueuePosition(t.ID, nil)
		}
	}
}

// Add appends a task to the end of the queue.
func (e *Engine) Add(ctx context.Context, taskID uint64) error {
	e.mu.Lock()
	userID := e.userID
	for _, t := range e.tasks {
		if t.ID == taskID {
			e.mu.Unlock()
			return nil
		}
	}
	e.mu.Unlock()

	task, err := e.api.AddToQueue(ctx, userID, taskID)
	if err != nil {
		if apierrors.IsKind(err, apierrors.ErrCodeConflict) {
			// Another client queued it first; converge on the server.
			return e.reload(ctx)
		}
		return err
	}

	e.mu.Lock()
	e.tasks = append(e.tasks, *task)
	e.renumberLocked()
	e.mu.Unlock()
	return nil
}

// Remove drops a task from the queue; the tasks behind it close the
// gap.
func (e *Engine) Remove(ctx context.Context, taskID uint64) error {
	e.mu.Lock()
	userID := e.userID
	e.mu.Unlock()

	if err := e.api.RemoveFromQueue(ctx, userID, taskID); err != nil {
		return err
	}

	e.mu.Lock()
	for i := range e.tasks {
		if e.tasks[i].ID == taskID {
			e.tasks = append(e.tasks[:i], e.tasks[i+1:]...)
			break
		}
	}
	e.renumberLocked()
	e.mu.Unlock()
	e.replica.SetQueuePosition(taskID, nil)
	return nil
}

// Move places a task at the given 1-based position, shifting the rest.
// The new ordering is applied optimistically; if the server rejects
// it, the engine reloads so the client converges on the authoritative
// order.
func (e *Engine) Move(ctx context.Context, taskID uint64, position int) error {
	e.mu.Lock()
	from := -1
	for i := range e.tasks {
		if e.tasks[i].ID == taskID {
			from = i
			break
		}
	}
	if from == -1 {
		e.mu.Unlock()
		return apierrors.ErrNotFound
	}
	if position < 1 {
		position = 1
	}
	if position > len(e.tasks) {
		position = len(e.tasks)
	}

	task := e.tasks[from]
	rest := append(e.tasks[:from:from], e.tasks[from+1:]...)
	reordered := make([]models.Task, 0, len(e.tasks))
	reordered = append(reordered, rest[:position-1]...)
	reordered = append(reordered, task)
	reordered = append(reordered, rest[position-1:]...)

	e.tasks = reordered
	e.renumberLocked()
	orders := e.ordersLocked()
	userID := e.userID
	e.mu.Unlock()

	if err := e.api.ReorderQueue(ctx, userID, orders); err != nil {
		if reloadErr := e.reload(ctx); reloadErr != nil {
			return reloadErr
		}
		return err
	}
	return nil
}

// Reorder replaces the whole ordering, for drag-and-drop style bulk
// moves. Unknown ids are rejected before anything is sent.
func (e *Engine) Reorder(ctx context.Context, orderedIDs []uint64) error {
	e.mu.Lock()
	byID := make(map[uint64]models.Task, len(e.tasks))
	for _, t := range e.tasks {
		byID[t.ID] = t
	}
	if len(orderedIDs) != len(e.tasks) {
		e.mu.Unlock()
		return apierrors.Validation("ordering must cover the whole queue")
	}
	reordered := make([]models.Task, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		t, ok := byID[id]
		if !ok {
			e.mu.Unlock()
			return apierrors.ErrNotFound
		}
		reordered = append(reordered, t)
	}

	e.tasks = reordered
	e.renumberLocked()
	orders := e.ordersLocked()
	userID := e.userID
	e.mu.Unlock()

	if err := e.api.ReorderQueue(ctx, userID, orders); err != nil {
		if reloadErr := e.reload(ctx); reloadErr != nil {
			return reloadErr
		}
		return err
	}
	return nil
}

// ordersLocked snapshots the dense ordering for the reorder endpoint.
// Caller holds e.mu.
func (e *Engine) ordersLocked() []dto.TaskOrder {
	orders := make([]dto.TaskOrder, len(e.tasks))
	for i, t := range e.tasks {
		orders[i] = dto.TaskOrder{TaskID: t.ID, Position: i + 1}
	}
	return orders
}

func (e *Engine) reload(ctx context.Context) error {
	e.mu.Lock()
	userID, listID := e.userID, e.listID
	e.mu.Unlock()
	return e.Load(ctx, userID, listID)
}

// Tasks returns the queue in order.
func (e *Engine) Tasks() []models.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.Task(nil), e.tasks...)
}

// Position reports a task's 1-based position, or 0 when not queued.
func (e *Engine) Position(taskID uint64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, t := range e.tasks {
		if t.ID == taskID {
			return i + 1
		}
	}
	return 0
}

// Len is the queue size.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}
