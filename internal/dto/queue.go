package dto

// AddToQueueRequest appends a task to the caller's queue; the server
// assigns the position.
type AddToQueueRequest struct {
	TaskID uint64 `json:"taskId"`
}

// TaskOrder pairs a task with its intended 1-based position.
type TaskOrder struct {
	TaskID   uint64 `json:"taskId"`
	Position int    `json:"position"`
}

// ReorderRequest replaces the caller's queue ordering wholesale.
type ReorderRequest struct {
	TaskOrders []TaskOrder `json:"taskOrders"`
}
