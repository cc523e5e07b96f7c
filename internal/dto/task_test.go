package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateTaskRequestOmitsUnsetFields(t *testing.T) {
	data, err := json.Marshal(UpdateTaskRequest{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestUpdateTaskRequestClearFlagsEmitNull(t *testing.T) {
	data, err := json.Marshal(UpdateTaskRequest{
		ClearDueDate: true,
		ClearProject: true,
	})
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "null", string(fields["dueDate"]))
	assert.Equal(t, "null", string(fields["projectId"]))
	// Unset fields stay absent so the server leaves them alone.
	_, present := fields["requesterId"]
	assert.False(t, present)
	_, present = fields["assignedTo"]
	assert.False(t, present)
}

func TestUpdateTaskRequestSetWinsOverClear(t *testing.T) {
	due := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	name := "renamed"
	data, err := json.Marshal(UpdateTaskRequest{
		Name:            &name,
		DueDate:         &due,
		ClearAssignedTo: true,
	})
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "null", string(fields["assignedTo"]))
	assert.NotEqual(t, "null", string(fields["dueDate"]))
	assert.Equal(t, `"renamed"`, string(fields["name"]))
}

func TestTogglePatch(t *testing.T) {
	patch := TogglePatch(false)
	require.NotNil(t, patch.Status)
	assert.True(t, *patch.Status)

	patch = TogglePatch(true)
	require.NotNil(t, patch.Status)
	assert.False(t, *patch.Status)
}
