package dto

import (
	"encoding/json"
	"time"

	"github.com/tasksphere/sphere-client/internal/models"
)

// CreateTaskRequest is the payload for creating a task. Requests use
// camelCase field names; the server answers in snake_case.
type CreateTaskRequest struct {
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	ProjectID      *uint64         `json:"projectId,omitempty"`
	RequesterID    *uint64         `json:"requesterId,omitempty"`
	AssignedTo     *uint64         `json:"assignedTo,omitempty"`
	Priority       models.Priority `json:"priority,omitempty"`
	DueDate        *time.Time      `json:"dueDate,omitempty"`
	EstimatedHours *float64        `json:"estimatedHours,omitempty"`
}

// UpdateTaskRequest is a partial task update. Pointer fields are
// omitted when nil; explicit JSON null clears the server-side value,
// which callers express through the Clear* flags.
type UpdateTaskRequest struct {
	Name           *string          `json:"name,omitempty"`
	Description    *string          `json:"description,omitempty"`
	Status         *bool            `json:"status,omitempty"`
	Priority       *models.Priority `json:"priority,omitempty"`
	AssignedTo     *uint64          `json:"assignedTo,omitempty"`
	ProjectID      *uint64          `json:"projectId,omitempty"`
	RequesterID    *uint64          `json:"requesterId,omitempty"`
	DueDate        *time.Time       `json:"dueDate,omitempty"`
	EstimatedHours *float64         `json:"estimatedHours,omitempty"`

	// Clear* serialise the corresponding field as an explicit null,
	// which the server treats as "unset this", distinct from omission.
	ClearAssignedTo     bool `json:"-"`
	ClearProject        bool `json:"-"`
	ClearRequester      bool `json:"-"`
	ClearDueDate        bool `json:"-"`
	ClearEstimatedHours bool `json:"-"`
}

// MarshalJSON renders the Clear* flags as explicit nulls so the wire
// format distinguishes "leave alone" (absent) from "clear" (null).
func (r UpdateTaskRequest) MarshalJSON() ([]byte, error) {
	type plain UpdateTaskRequest
	data, err := json.Marshal(plain(r))
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}

	null := json.RawMessage("null")
	if r.ClearAssignedTo {
		fields["assignedTo"] = null
	}
	if r.ClearProject {
		fields["projectId"] = null
	}
	if r.ClearRequester {
		fields["requesterId"] = null
	}
	if r.ClearDueDate {
		fields["dueDate"] = null
	}
	if r.ClearEstimatedHours {
		fields["estimatedHours"] = null
	}
	return json.Marshal(fields)
}

// TogglePatch builds the status-flip patch for a task.
func TogglePatch(current bool) UpdateTaskRequest {
	next := !current
	return UpdateTaskRequest{Status: &next}
}
