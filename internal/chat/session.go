// Package chat implements the workflow synchronization engine: it turns
// persisted step results into an ordered conversation, reconciles it
// against locally-issued optimistic actions, gates pipeline advancement
// on credits, and infers transient UI state from data alone.
package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"stepchat-backend/internal/models"
)

// Store reads the persisted workflow entities.
type Store interface {
	FetchProject(ctx context.Context, id uuid.UUID) (models.Project, error)
	FetchStepResults(ctx context.Context, projectID uuid.UUID) ([]models.StepResult, error)
}

// FeedHandlers receives change-notification events for one project.
type FeedHandlers struct {
	OnStepInsert    func(models.StepResult)
	OnStepUpdate    func(models.StepResult)
	OnStepDelete    func(uuid.UUID)
	OnProjectUpdate func(models.Project)
}

// Feed delivers row change events. The returned release func must be
// safe to call more than once.
type Feed interface {
	Subscribe(projectID uuid.UUID, h FeedHandlers) (func(), error)
}

// Gate issues the admission-controlled pipeline actions. A rejection is
// reported as *AdmissionError; everything else is a transport fault.
type Gate interface {
	Advance(ctx context.Context, projectID uuid.UUID, req models.AdvanceRequest) error
	SelectOption(ctx context.Context, stepResultID uuid.UUID, optionIndex int) error
	ApproveStep(ctx context.Context, stepResultID uuid.UUID) error
	RegenerateStep(ctx context.Context, stepResultID uuid.UUID) error
}

// Snapshot is the UI-facing view of one project conversation.
type Snapshot struct {
	Messages  []Message
	IsWorking bool
	Sending   bool
	Terminal  bool
	Err       error
}

// Session owns the synchronization state for one active project view:
// the reconciler, the change subscription, and the in-flight action
// flags. User actions, gate-call completions and change notifications
// interleave arbitrarily; every one of them recomputes the merged view
// rather than patching it incrementally.
type Session struct {
	store Store
	gate  Gate
	feed  Feed

	mu          sync.Mutex
	project     models.Project
	rec         *Reconciler
	unsubscribe func()
	entering    bool
	pending     []func()
	sending     bool
	lastErr     error
	onChange    func(Snapshot)
}

func NewSession(store Store, gate Gate, feed Feed) *Session {
	return &Session{
		store: store,
		gate:  gate,
		feed:  feed,
	}
}

// OnChange registers the UI callback invoked after every state change.
// Set it before Enter.
func (s *Session) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Enter loads a project's history and opens its change subscription.
// Entering a new project tears down the previous subscription first, so
// at most one is live per session. A failed subscription is logged and
// the view degrades to last-known state instead of failing.
func (s *Session) Enter(ctx context.Context, projectID uuid.UUID) error {
	s.Close()

	project, err := s.store.FetchProject(ctx, projectID)
	if err != nil {
		return &FetchError{Entity: "project", Err: err}
	}

	// The reconciler is installed and the subscription opened before the
	// history fetch, so no event can slip through the gap between the
	// two. Events arriving while the fetch is in flight are buffered and
	// replayed on top of Reset; ApplyStep replaces rather than appends,
	// so a step present in both the fetch and the buffer lands once.
	s.mu.Lock()
	s.project = project
	s.rec = NewReconciler()
	s.entering = true
	s.pending = nil
	s.sending = false
	s.lastErr = nil
	s.mu.Unlock()

	var subErr error
	unsubscribe, err := s.feed.Subscribe(projectID, FeedHandlers{
		OnStepInsert:    s.handleStepChange,
		OnStepUpdate:    s.handleStepChange,
		OnStepDelete:    s.handleStepDelete,
		OnProjectUpdate: s.handleProjectUpdate,
	})
	if err != nil {
		log.Printf("chat: subscription failed for project %s: %v", projectID, err)
		subErr = &SubscriptionError{Err: err}
		unsubscribe = func() {}
	}

	steps, err := s.store.FetchStepResults(ctx, projectID)
	if err != nil {
		unsubscribe()
		s.mu.Lock()
		s.rec = nil
		s.entering = false
		s.pending = nil
		s.mu.Unlock()
		return &FetchError{Entity: "step_results", Err: err}
	}

	s.mu.Lock()
	if s.rec == nil {
		// closed while entering
		s.entering = false
		s.pending = nil
		s.mu.Unlock()
		unsubscribe()
		return ErrNotEntered
	}
	s.rec.Reset(steps)
	for _, replay := range s.pending {
		replay()
	}
	s.pending = nil
	s.entering = false
	s.unsubscribe = unsubscribe
	s.lastErr = subErr
	s.mu.Unlock()

	s.notify()
	return nil
}

// Close releases the change subscription. Idempotent; called on every
// exit path from a project view.
func (s *Session) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.rec = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Snapshot returns the current merged view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Project returns the last-known project row.
func (s *Session) Project() models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project
}

// ClearError dismisses the surfaced error notice.
func (s *Session) ClearError() {
	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
	s.notify()
}

// Submit appends the user's message optimistically and issues the gated
// advance call without blocking on it. On rejection the optimistic
// entry is rolled back and the failure is surfaced, distinguishing
// insufficient credits from generic faults.
func (s *Session) Submit(ctx context.Context, input string, attachments []string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return ErrEmptyInput
	}

	s.mu.Lock()
	if s.rec == nil {
		s.mu.Unlock()
		return ErrNotEntered
	}
	if models.IsTerminal(s.project.Status) || s.project.Status == models.StatusPaused {
		s.mu.Unlock()
		return ErrPipelineClosed
	}
	m := NewOptimistic(input)
	s.rec.AddOptimistic(m)
	s.sending = true
	s.lastErr = nil
	projectID := s.project.ID
	s.mu.Unlock()
	s.notify()

	go s.completeAdvance(ctx, m.ClientID, func() error {
		return s.gate.Advance(ctx, projectID, models.AdvanceRequest{
			UserInput:   input,
			Attachments: attachments,
		})
	})
	return nil
}

// SelectOption records the user's choice for a step that offered an
// option list. The chosen option is shown optimistically; the confirmed
// user message arrives via the step's UPDATE event and evicts it.
func (s *Session) SelectOption(ctx context.Context, stepResultID uuid.UUID, optionIndex int) error {
	s.mu.Lock()
	if s.rec == nil {
		s.mu.Unlock()
		return ErrNotEntered
	}
	if models.IsTerminal(s.project.Status) || s.project.Status == models.StatusPaused {
		s.mu.Unlock()
		return ErrPipelineClosed
	}

	var clientID string
	if ai, ok := s.rec.StepMessage(stepResultID); ok {
		if optionIndex >= 0 && optionIndex < len(ai.Payload.Options) {
			m := NewOptimistic(ai.Payload.Options[optionIndex])
			s.rec.AddOptimistic(m)
			clientID = m.ClientID
		}
	}
	s.sending = true
	s.lastErr = nil
	s.mu.Unlock()
	s.notify()

	go s.completeAdvance(ctx, clientID, func() error {
		return s.gate.SelectOption(ctx, stepResultID, optionIndex)
	})
	return nil
}

// Approve records a plain approval of a step with no option choice.
// The acknowledgment is shown optimistically; its confirmed counterpart
// is the same text synthesized from the step's approved flag, so the
// content-based eviction retires the optimistic entry on confirmation.
func (s *Session) Approve(ctx context.Context, stepResultID uuid.UUID) error {
	s.mu.Lock()
	if s.rec == nil {
		s.mu.Unlock()
		return ErrNotEntered
	}
	if models.IsTerminal(s.project.Status) || s.project.Status == models.StatusPaused {
		s.mu.Unlock()
		return ErrPipelineClosed
	}
	m := NewOptimistic(AckText)
	s.rec.AddOptimistic(m)
	s.sending = true
	s.lastErr = nil
	s.mu.Unlock()
	s.notify()

	go s.completeAdvance(ctx, m.ClientID, func() error {
		return s.gate.ApproveStep(ctx, stepResultID)
	})
	return nil
}

// Regenerate asks for a step to be deleted and re-created. The local
// view is not touched here: the authoritative DELETE event removes the
// step's messages when it arrives.
func (s *Session) Regenerate(ctx context.Context, stepResultID uuid.UUID) error {
	s.mu.Lock()
	if s.rec == nil {
		s.mu.Unlock()
		return ErrNotEntered
	}
	s.lastErr = nil
	s.mu.Unlock()

	go func() {
		err := s.gate.RegenerateStep(ctx, stepResultID)
		if err == nil {
			return
		}
		s.mu.Lock()
		s.lastErr = asAdmissionError(err)
		s.mu.Unlock()
		s.notify()
	}()
	return nil
}

func (s *Session) completeAdvance(ctx context.Context, clientID string, call func() error) {
	err := call()

	s.mu.Lock()
	s.sending = false
	if err != nil {
		if s.rec != nil && clientID != "" {
			s.rec.RemoveOptimistic(clientID)
		}
		s.lastErr = asAdmissionError(err)
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Session) handleStepChange(step models.StepResult) {
	s.mu.Lock()
	if s.rec != nil && step.ProjectID == s.project.ID {
		if s.entering {
			s.pending = append(s.pending, func() { s.rec.ApplyStep(step) })
		} else {
			s.rec.ApplyStep(step)
		}
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Session) handleStepDelete(stepResultID uuid.UUID) {
	s.mu.Lock()
	if s.rec != nil {
		if s.entering {
			s.pending = append(s.pending, func() { s.rec.RemoveStep(stepResultID) })
		} else {
			s.rec.RemoveStep(stepResultID)
		}
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Session) handleProjectUpdate(project models.Project) {
	s.mu.Lock()
	if s.rec != nil && project.ID == s.project.ID {
		s.project = project
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Session) snapshotLocked() Snapshot {
	var messages []Message
	if s.rec != nil {
		messages = s.rec.Messages()
	}
	return Snapshot{
		Messages:  messages,
		IsWorking: IsWorking(s.project, messages),
		Sending:   s.sending,
		Terminal:  models.IsTerminal(s.project.Status),
		Err:       s.lastErr,
	}
}

func (s *Session) notify() {
	s.mu.Lock()
	fn := s.onChange
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

func asAdmissionError(err error) error {
	var admission *AdmissionError
	if errors.As(err, &admission) {
		return admission
	}
	return &AdmissionError{Reason: ReasonGeneric, Message: err.Error()}
}
