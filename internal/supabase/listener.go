package supabase

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"stepchat-backend/internal/chat"
	"stepchat-backend/internal/models"
)

// Notification channels installed by the migrations. One LISTEN per
// channel for the whole process; per-project filtering happens here.
const (
	stepResultsChannel = "step_results_changes"
	projectsChannel    = "projects_changes"
)

// ChangeListener turns Postgres LISTEN/NOTIFY traffic from the row
// triggers into per-project callbacks. It implements chat.Feed.
type ChangeListener struct {
	listener *pq.Listener

	mu   sync.Mutex
	next int
	subs map[int]subscription
}

type subscription struct {
	projectID uuid.UUID
	handlers  chat.FeedHandlers
}

func NewChangeListener(dbURL string) (*ChangeListener, error) {
	listener := pq.NewListener(dbURL, 10*time.Second, time.Minute,
		func(event pq.ListenerEventType, err error) {
			if err != nil {
				log.Printf("supabase: listener event %d: %v", event, err)
			}
		})

	for _, channel := range []string{stepResultsChannel, projectsChannel} {
		if err := listener.Listen(channel); err != nil {
			listener.Close()
			return nil, fmt.Errorf("failed to listen on %s: %w", channel, err)
		}
	}

	c := &ChangeListener{
		listener: listener,
		subs:     make(map[int]subscription),
	}
	go c.run()

	return c, nil
}

// Subscribe registers handlers for one project's change events. The
// returned release func is safe to call more than once; every exit path
// of a project view is expected to call it.
func (c *ChangeListener) Subscribe(projectID uuid.UUID, h chat.FeedHandlers) (func(), error) {
	c.mu.Lock()
	id := c.next
	c.next++
	c.subs[id] = subscription{projectID: projectID, handlers: h}
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}, nil
}

func (c *ChangeListener) Close() error {
	return c.listener.Close()
}

func (c *ChangeListener) run() {
	for notification := range c.listener.Notify {
		if notification == nil {
			// reconnect marker; subscribers keep last-known state
			continue
		}
		c.dispatch(notification.Channel, []byte(notification.Extra))
	}
}

// changeEnvelope is the trigger payload: operation plus the full row
// (NEW for INSERT/UPDATE, OLD for DELETE).
type changeEnvelope struct {
	Op     string          `json:"op"`
	Record json.RawMessage `json:"record"`
}

type stepResultRow struct {
	ID            uuid.UUID       `json:"id"`
	ProjectID     uuid.UUID       `json:"project_id"`
	StepNumber    int             `json:"step_number"`
	StepName      string          `json:"step_name"`
	LLMOutput     json.RawMessage `json:"llm_output"`
	UserSelection json.RawMessage `json:"user_selection"`
	Approved      bool            `json:"approved"`
	CreatedAt     time.Time       `json:"created_at"`
}

type projectRow struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Name         string    `json:"name"`
	SeedPrompt   string    `json:"seed_prompt"`
	CurrentStep  int       `json:"current_step"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"error_message"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (c *ChangeListener) dispatch(channel string, payload []byte) {
	var envelope changeEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		log.Printf("supabase: malformed notification on %s: %v", channel, err)
		return
	}

	switch channel {
	case stepResultsChannel:
		var row stepResultRow
		if err := json.Unmarshal(envelope.Record, &row); err != nil {
			log.Printf("supabase: malformed step_results record: %v", err)
			return
		}
		step := models.StepResult{
			ID:            row.ID,
			ProjectID:     row.ProjectID,
			StepNumber:    row.StepNumber,
			StepName:      row.StepName,
			LLMOutput:     row.LLMOutput,
			UserSelection: row.UserSelection,
			Approved:      row.Approved,
			CreatedAt:     row.CreatedAt,
		}
		for _, h := range c.handlersFor(step.ProjectID) {
			switch envelope.Op {
			case "INSERT":
				if h.OnStepInsert != nil {
					h.OnStepInsert(step)
				}
			case "UPDATE":
				if h.OnStepUpdate != nil {
					h.OnStepUpdate(step)
				}
			case "DELETE":
				if h.OnStepDelete != nil {
					h.OnStepDelete(step.ID)
				}
			}
		}

	case projectsChannel:
		var row projectRow
		if err := json.Unmarshal(envelope.Record, &row); err != nil {
			log.Printf("supabase: malformed projects record: %v", err)
			return
		}
		project := models.Project{
			ID:          row.ID,
			UserID:      row.UserID,
			Name:        row.Name,
			SeedPrompt:  row.SeedPrompt,
			CurrentStep: row.CurrentStep,
			Status:      row.Status,
			CreatedAt:   row.CreatedAt,
			UpdatedAt:   row.UpdatedAt,
		}
		if row.ErrorMessage != nil {
			project.ErrorMessage = sql.NullString{String: *row.ErrorMessage, Valid: true}
		}
		for _, h := range c.handlersFor(project.ID) {
			if h.OnProjectUpdate != nil {
				h.OnProjectUpdate(project)
			}
		}
	}
}

func (c *ChangeListener) handlersFor(projectID uuid.UUID) []chat.FeedHandlers {
	c.mu.Lock()
	defer c.mu.Unlock()

	var matched []chat.FeedHandlers
	for _, sub := range c.subs {
		if sub.projectID == projectID {
			matched = append(matched, sub.handlers)
		}
	}
	return matched
}
