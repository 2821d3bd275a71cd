package chat_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stepchat-backend/internal/chat"
	"stepchat-backend/internal/models"
)

func makeStep(output string, selection string, approved bool) models.StepResult {
	step := models.StepResult{
		ID:         uuid.New(),
		ProjectID:  uuid.New(),
		StepNumber: 1,
		StepName:   "outline",
		LLMOutput:  json.RawMessage(output),
		Approved:   approved,
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if selection != "" {
		step.UserSelection = json.RawMessage(selection)
	}
	return step
}

func TestToMessages_AIOnly(t *testing.T) {
	step := makeStep(`{"type":"text","text":"Here is your outline"}`, "", false)

	messages := chat.ToMessages(step)

	require.Len(t, messages, 1)
	assert.Equal(t, chat.AuthorAI, messages[0].Author)
	assert.Equal(t, "Here is your outline", messages[0].Content)
	assert.Equal(t, step.ID, messages[0].StepResultID)
	assert.Equal(t, step.CreatedAt, messages[0].CreatedAt)
}

func TestToMessages_WithSelection(t *testing.T) {
	step := makeStep(
		`{"type":"options","text":"Pick one","options":["Option A","Option B"]}`,
		`{"content":"Option A","index":0}`,
		true,
	)

	messages := chat.ToMessages(step)

	require.Len(t, messages, 2)
	assert.Equal(t, chat.AuthorAI, messages[0].Author)
	assert.Equal(t, chat.AuthorUser, messages[1].Author)
	assert.Equal(t, "Option A", messages[1].Content)
	// No independent "user acted at" timestamp exists; both share the step's
	assert.Equal(t, messages[0].CreatedAt, messages[1].CreatedAt)
}

func TestToMessages_ApprovedWithoutSelection(t *testing.T) {
	step := makeStep(`{"type":"text","text":"Draft ready"}`, "", true)

	messages := chat.ToMessages(step)

	require.Len(t, messages, 2)
	assert.Equal(t, chat.AuthorUser, messages[1].Author)
	assert.Equal(t, chat.AckText, messages[1].Content)
}

func TestToMessages_Deterministic(t *testing.T) {
	step := makeStep(`{"type":"text","text":"Same in, same out"}`, "", true)

	first := chat.ToMessages(step)
	second := chat.ToMessages(step)

	assert.Equal(t, first, second)
}

func TestParsePayload_BareString(t *testing.T) {
	payload := chat.ParsePayload(json.RawMessage(`"plain words"`))

	assert.Equal(t, chat.PayloadText, payload.Kind)
	assert.Equal(t, "plain words", payload.Text)
}

func TestParsePayload_Malformed(t *testing.T) {
	// Untrusted worker output renders as text instead of failing
	payload := chat.ParsePayload(json.RawMessage(`{"type":"text","text":`))

	assert.Equal(t, chat.PayloadText, payload.Kind)
	assert.Equal(t, `{"type":"text","text":`, payload.Text)
}

func TestParsePayload_UnknownKind(t *testing.T) {
	raw := `{"type":"surprise","text":"??"}`
	payload := chat.ParsePayload(json.RawMessage(raw))

	assert.Equal(t, chat.PayloadText, payload.Kind)
	assert.Equal(t, raw, payload.Text)
}

func TestParsePayload_Progress(t *testing.T) {
	payload := chat.ParsePayload(json.RawMessage(`{"type":"progress","summary":"Rendering chapter 3"}`))

	assert.Equal(t, chat.PayloadProgress, payload.Kind)
	assert.Equal(t, "Rendering chapter 3", payload.Display())
}

func TestPayloadDisplay_Options(t *testing.T) {
	payload := chat.Payload{
		Kind:    chat.PayloadOptions,
		Text:    "Pick one",
		Options: []string{"First", "Second"},
	}

	assert.Equal(t, "Pick one\n1. First\n2. Second", payload.Display())
}

func TestSelectionContent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"object with content", `{"content":"Option B","index":1}`, "Option B"},
		{"bare string", `"Option B"`, "Option B"},
		{"empty", ``, ""},
		{"garbage", `[1,2]`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, chat.SelectionContent(json.RawMessage(tt.raw)))
		})
	}
}
