package suggest

import (
	"context"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cannedClient struct {
	content string
	err     error
}

func (c *cannedClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if c.err != nil {
		return openai.ChatCompletionResponse{}, c.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: c.content}},
		},
	}, nil
}

func newTestDrafter(content string) *Drafter {
	return &Drafter{
		client: &cannedClient{content: content},
		now:    func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestDraftDisabledWithoutKey(t *testing.T) {
	d := NewDrafter("")
	assert.False(t, d.Enabled())
	_, err := d.Draft(context.Background(), "do the thing")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestDraftEmptyTextIsNoop(t *testing.T) {
	d := newTestDrafter(`[]`)
	drafts, err := d.Draft(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestDraftParsesTasks(t *testing.T) {
	d := newTestDrafter(`[
		{"name": "Send the agenda", "description": "before the sync", "due_date": "2025-06-02T09:00:00Z"},
		{"name": "Book the room", "description": "", "due_date": null}
	]`)

	drafts, err := d.Draft(context.Background(), "notes from standup")
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, "Send the agenda", drafts[0].Name)
	require.NotNil(t, drafts[0].DueDate)
	assert.Nil(t, drafts[1].DueDate)
}

func TestDraftDropsEmptyNamesAndStaleDueDates(t *testing.T) {
	d := newTestDrafter(`[
		{"name": "  ", "description": "nameless"},
		{"name": "Follow up", "due_date": "2025-05-01T09:00:00Z"}
	]`)

	drafts, err := d.Draft(context.Background(), "notes")
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "Follow up", drafts[0].Name)
	// The deadline already passed; keep the task, drop the date.
	assert.Nil(t, drafts[0].DueDate)
}

func TestDraftCapsCount(t *testing.T) {
	content := "["
	for i := 0; i < 15; i++ {
		if i > 0 {
			content += ","
		}
		content += `{"name": "task"}`
	}
	content += "]"

	drafts, err := newTestDrafter(content).Draft(context.Background(), "a long braindump")
	require.NoError(t, err)
	assert.Len(t, drafts, MaxDrafts)
}

func TestDraftRejectsNonJSON(t *testing.T) {
	_, err := newTestDrafter("Sure! Here are your tasks...").Draft(context.Background(), "notes")
	assert.Error(t, err)
}
