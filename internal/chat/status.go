package chat

import "stepchat-backend/internal/models"

// IsWorking infers the assistant-busy flag purely from data. The worker
// never pushes an explicit start/stop signal, so the heuristic is: the
// project is in progress and either the most recent message is a user
// turn with no AI response yet, or the latest AI output is a progress
// marker. Recomputed on every read, never cached, so it cannot diverge
// from the source of truth.
func IsWorking(project models.Project, messages []Message) bool {
	if project.Status != models.StatusInProgress {
		return false
	}
	if len(messages) == 0 {
		return false
	}
	last := messages[len(messages)-1]
	if last.Author == AuthorUser {
		return true
	}
	return last.Author == AuthorAI && last.Payload.Kind == PayloadProgress
}
