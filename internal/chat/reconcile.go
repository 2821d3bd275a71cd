package chat

import (
	"sort"

	"github.com/google/uuid"
	"stepchat-backend/internal/models"
)

// Reconciler merges server-confirmed messages with a client-held
// optimistic overlay into one deduplicated, ordered conversation.
// Not safe for concurrent use; the Session serializes access.
type Reconciler struct {
	confirmed []Message
	overlay   []Message
}

func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Reset rebuilds the confirmed list from a full step history.
func (r *Reconciler) Reset(steps []models.StepResult) {
	r.confirmed = r.confirmed[:0]
	for _, step := range steps {
		r.confirmed = append(r.confirmed, ToMessages(step)...)
	}
	r.sortConfirmed()
	r.evictOverlay()
}

// ApplyStep handles both INSERT and UPDATE change events. Messages
// derived from the step are replaced, never appended, so a re-delivered
// event is idempotent and a late approval lands in chronological order
// instead of at the tail.
func (r *Reconciler) ApplyStep(step models.StepResult) {
	r.removeStep(step.ID)
	r.confirmed = append(r.confirmed, ToMessages(step)...)
	r.sortConfirmed()
	r.evictOverlay()
}

// RemoveStep drops all confirmed messages of a deleted step (the
// regenerate action deletes the row outright).
func (r *Reconciler) RemoveStep(stepResultID uuid.UUID) {
	r.removeStep(stepResultID)
}

// StepMessage returns the AI message currently confirmed for a step.
func (r *Reconciler) StepMessage(stepResultID uuid.UUID) (Message, bool) {
	for _, m := range r.confirmed {
		if m.StepResultID == stepResultID && m.Author == AuthorAI {
			return m, true
		}
	}
	return Message{}, false
}

// AddOptimistic appends a client-issued message to the overlay.
func (r *Reconciler) AddOptimistic(m Message) {
	r.overlay = append(r.overlay, m)
}

// RemoveOptimistic rolls back an overlay entry by its client id. Used
// when the admission gate rejects the action that produced it: no
// confirmed counterpart will ever arrive, so content-based eviction
// would never fire.
func (r *Reconciler) RemoveOptimistic(clientID string) bool {
	for i, m := range r.overlay {
		if m.ClientID == clientID {
			r.overlay = append(r.overlay[:i], r.overlay[i+1:]...)
			return true
		}
	}
	return false
}

// Messages returns the merged, ordered conversation: the confirmed list
// plus every overlay entry whose content has no confirmed counterpart.
// The sort is stable, so two messages sharing a timestamp keep their
// input order (AI output before its synthesized acknowledgment, and
// confirmed before optimistic).
func (r *Reconciler) Messages() []Message {
	seen := r.confirmedKeys()
	merged := make([]Message, 0, len(r.confirmed)+len(r.overlay))
	merged = append(merged, r.confirmed...)
	for _, m := range r.overlay {
		if _, ok := seen[m.contentKey()]; !ok {
			merged = append(merged, m)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})
	return merged
}

func (r *Reconciler) removeStep(stepResultID uuid.UUID) {
	kept := r.confirmed[:0]
	for _, m := range r.confirmed {
		if m.StepResultID != stepResultID {
			kept = append(kept, m)
		}
	}
	r.confirmed = kept
}

func (r *Reconciler) sortConfirmed() {
	sort.SliceStable(r.confirmed, func(i, j int) bool {
		return r.confirmed[i].CreatedAt.Before(r.confirmed[j].CreatedAt)
	})
}

// evictOverlay prunes overlay entries whose content now appears in the
// confirmed list. The key set is rebuilt on every pass rather than kept
// as a persistent identity map, so stale entries cannot leak.
func (r *Reconciler) evictOverlay() {
	if len(r.overlay) == 0 {
		return
	}
	seen := r.confirmedKeys()
	kept := r.overlay[:0]
	for _, m := range r.overlay {
		if _, ok := seen[m.contentKey()]; !ok {
			kept = append(kept, m)
		}
	}
	r.overlay = kept
}

func (r *Reconciler) confirmedKeys() map[string]struct{} {
	seen := make(map[string]struct{}, len(r.confirmed))
	for _, m := range r.confirmed {
		seen[m.contentKey()] = struct{}{}
	}
	return seen
}
