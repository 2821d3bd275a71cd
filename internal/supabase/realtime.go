package supabase

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"
)

type RealtimeClient struct {
	client *supabase.Client
}

func NewRealtimeClient(client *supabase.Client) *RealtimeClient {
	return &RealtimeClient{
		client: client,
	}
}

func (r *RealtimeClient) PublishEvent(channel string, event string, payload map[string]interface{}) error {
	// The Go client has no direct Realtime publish; row changes on
	// step_results/projects reach clients through database triggers.
	// This hook exists for explicit events via the Realtime REST API.
	return nil
}

func (r *RealtimeClient) PublishProjectEvent(projectID uuid.UUID, event string, payload map[string]interface{}) error {
	channel := fmt.Sprintf("project:%s", projectID.String())
	return r.PublishEvent(channel, event, payload)
}

// Event payloads
func AdvanceAcceptedPayload(projectID uuid.UUID, stepNumber int) map[string]interface{} {
	return map[string]interface{}{
		"project_id":  projectID.String(),
		"status":      "accepted",
		"step_number": stepNumber,
	}
}

func StepRegeneratedPayload(projectID, stepResultID uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"project_id":     projectID.String(),
		"step_result_id": stepResultID.String(),
		"status":         "regenerating",
	}
}

func ProjectStatusPayload(projectID uuid.UUID, status string) map[string]interface{} {
	return map[string]interface{}{
		"project_id": projectID.String(),
		"status":     status,
	}
}
