// Package suggest drafts tasks from free-form text, for pasting
// meeting notes or an email into the quick-add box.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// MaxDrafts caps how many tasks one passage can produce.
const MaxDrafts = 10

// ErrDisabled is returned when no API key was configured.
var ErrDisabled = fmt.Errorf("task suggestions are disabled: no API key configured")

// TaskDraft is one extracted task, ready to prefill the create form.
type TaskDraft struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
}

// completionClient is the slice of the OpenAI client we use; tests
// substitute a canned implementation.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Drafter extracts task drafts from text.
type Drafter struct {
	client completionClient

	// now is swappable for tests.
	now func() time.Time
}

// NewDrafter builds a drafter; an empty apiKey yields a disabled
// drafter whose Draft always returns ErrDisabled.
func NewDrafter(apiKey string) *Drafter {
	d := &Drafter{now: time.Now}
	if apiKey != "" {
		d.client = openai.NewClient(apiKey)
	}
	return d
}

// Enabled reports whether drafting is available.
func (d *Drafter) Enabled() bool {
	return d.client != nil
}

// Draft extracts up to MaxDrafts tasks from text. Drafts with empty
// names or due dates already in the past are dropped rather than
// surfaced as errors; the model is advisory, not authoritative.
func (d *Drafter) Draft(ctx context.Context, text string) ([]TaskDraft, error) {
	if d.client == nil {
		return nil, ErrDisabled
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	now := d.now()
	prompt := fmt.Sprintf(`You are a task extraction assistant. Extract concrete tasks from the text below.

Current time: %s

Text:
%s

Return a JSON array of the extracted tasks in this shape:
[
  {
    "name": "short task name",
    "description": "details, may be empty",
    "due_date": "deadline in ISO8601, e.g. 2025-10-28T23:59:59Z, or null when the text names none"
  }
]

Rules:
- Return an empty array [] when there are no tasks
- Resolve relative deadlines ("tomorrow", "next week") against the current time
- due_date must be an ISO8601 string or null
- Return only the JSON, no commentary`, now.Format("2006-01-02 15:04:05"), text)

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4o,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("completion returned no choices")
	}

	content := resp.Choices[0].Message.Content
	var drafts []TaskDraft
	if err := json.Unmarshal([]byte(content), &drafts); err != nil {
		return nil, fmt.Errorf("failed to parse drafts: %w (response: %s)", err, content)
	}

	out := drafts[:0]
	for _, draft := range drafts {
		draft.Name = strings.TrimSpace(draft.Name)
		if draft.Name == "" {
			continue
		}
		if draft.DueDate != nil && draft.DueDate.Before(now) {
			draft.DueDate = nil
		}
		out = append(out, draft)
		if len(out) == MaxDrafts {
			break
		}
	}
	return out, nil
}
