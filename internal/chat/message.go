package chat

import (
	"time"

	"github.com/google/uuid"
	"stepchat-backend/internal/models"
)

type Author string

const (
	AuthorUser Author = "user"
	AuthorAI   Author = "ai"
)

// AckText is the synthesized user acknowledgment shown when a step was
// approved without an explicit option selection.
const AckText = "Looks good, continue."

// Message is a derived, never-persisted conversation entry. Confirmed
// messages reference the StepResult they were projected from; optimistic
// messages carry a client-generated id instead.
type Message struct {
	ID           string
	ClientID     string
	Author       Author
	Content      string
	Payload      Payload
	StepResultID uuid.UUID
	CreatedAt    time.Time
}

// contentKey is the dedup key used to match an optimistic entry against
// its eventual confirmed counterpart. The two never share an identifier,
// so matching is by raw content, scoped by author.
func (m Message) contentKey() string {
	return string(m.Author) + "\x00" + m.Content
}

// ToMessages projects a StepResult into its conversation messages: the
// AI output, plus a user turn once a selection or approval is recorded.
// The step's timestamp is the only proxy for when the user acted, so
// both messages share it; ordering relies on the stable sort downstream.
// The function is referentially transparent: it runs on initial load and
// again for every insert/update event of the same step.
func ToMessages(step models.StepResult) []Message {
	payload := ParsePayload(step.LLMOutput)
	out := []Message{{
		ID:           step.ID.String() + ":ai",
		Author:       AuthorAI,
		Content:      payload.Display(),
		Payload:      payload,
		StepResultID: step.ID,
		CreatedAt:    step.CreatedAt,
	}}

	if sel := SelectionContent(step.UserSelection); sel != "" {
		out = append(out, userMessage(step, sel))
	} else if step.Approved {
		out = append(out, userMessage(step, AckText))
	}
	return out
}

func userMessage(step models.StepResult, content string) Message {
	return Message{
		ID:           step.ID.String() + ":user",
		Author:       AuthorUser,
		Content:      content,
		StepResultID: step.ID,
		CreatedAt:    step.CreatedAt,
	}
}

// NewOptimistic builds a client-side user message shown before any
// StepResult exists for it.
func NewOptimistic(content string) Message {
	id := "local:" + uuid.New().String()
	return Message{
		ID:        id,
		ClientID:  id,
		Author:    AuthorUser,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}
