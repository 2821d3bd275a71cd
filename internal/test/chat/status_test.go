package chat_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"stepchat-backend/internal/chat"
	"stepchat-backend/internal/models"
)

func TestIsWorking(t *testing.T) {
	now := time.Now().UTC()
	userMsg := chat.Message{Author: chat.AuthorUser, Content: "go on", CreatedAt: now}
	aiText := chat.Message{
		Author:    chat.AuthorAI,
		Content:   "done",
		Payload:   chat.Payload{Kind: chat.PayloadText, Text: "done"},
		CreatedAt: now,
	}
	aiProgress := chat.Message{
		Author:    chat.AuthorAI,
		Content:   "rendering",
		Payload:   chat.Payload{Kind: chat.PayloadProgress, Summary: "rendering"},
		CreatedAt: now,
	}

	tests := []struct {
		name     string
		status   string
		messages []chat.Message
		want     bool
	}{
		{"empty history", models.StatusInProgress, nil, false},
		{"awaiting response", models.StatusInProgress, []chat.Message{userMsg}, true},
		{"ai answered", models.StatusInProgress, []chat.Message{userMsg, aiText}, false},
		{"progress marker", models.StatusInProgress, []chat.Message{userMsg, aiProgress}, true},
		{"paused", models.StatusPaused, []chat.Message{userMsg}, false},
		{"completed", models.StatusCompleted, []chat.Message{userMsg}, false},
		{"errored", models.StatusError, []chat.Message{userMsg, aiProgress}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			project := models.Project{Status: tt.status}
			assert.Equal(t, tt.want, chat.IsWorking(project, tt.messages))
		})
	}
}
