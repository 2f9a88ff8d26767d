package models

import (
	"math"
	"time"
)

// Snapshot is the cached current state of one document, derived from its
// status events.
//
// Invariants:
//   - CompletedStatuses only grows
//   - StepsDone == CompletedStatuses.Len()
//   - ProgressPct == Progress(StepsDone, totalSteps) as of the last accepted transition
type Snapshot struct {
	DocumentID        int64     `json:"document_id"`
	CurrentStatus     string    `json:"current_status"`
	CompletedStatuses StatusSet `json:"completed_statuses"`
	StepsDone         int       `json:"steps_done"`
	ProgressPct       int       `json:"progress_pct"`
	Reason            string    `json:"reason,omitempty"`
	ChangedBy         string    `json:"changed_by,omitempty"`
	ChangedAt         time.Time `json:"changed_at"`
}

// Progress returns round(stepsDone/totalSteps*100). totalSteps below 1 is
// treated as 1.
func Progress(stepsDone, totalSteps int) int {
	if totalSteps < 1 {
		totalSteps = 1
	}
	return int(math.Round(float64(stepsDone) / float64(totalSteps) * 100))
}

// NewSeedSnapshot builds the first snapshot of a document together with the
// seed event that must be written alongside it.
func NewSeedSnapshot(documentID int64, seedStatus, owner string, totalSteps int, now time.Time) (*Snapshot, *StatusEvent) {
	completed := NewStatusSet(seedStatus)
	snap := &Snapshot{
		DocumentID:        documentID,
		CurrentStatus:     seedStatus,
		CompletedStatuses: completed,
		StepsDone:         completed.Len(),
		ProgressPct:       Progress(completed.Len(), totalSteps),
		Reason:            "initialized",
		ChangedBy:         owner,
		ChangedAt:         now,
	}
	event := &StatusEvent{
		DocumentID: documentID,
		NewStatus:  seedStatus,
		Reason:     "initialized",
		ChangedBy:  owner,
		ChangedAt:  now,
	}
	return snap, event
}

// RequiresTransition is false when newStatus is already current; such
// requests are idempotent no-ops.
func (s *Snapshot) RequiresTransition(newStatus string) bool {
	return s.CurrentStatus != newStatus
}

// ApplyTransition moves the snapshot to newStatus and returns the event
// recording it. Call RequiresTransition first.
func (s *Snapshot) ApplyTransition(newStatus, reason, changedBy string, details Details, totalSteps int, now time.Time) *StatusEvent {
	old := s.CurrentStatus
	s.CompletedStatuses = s.CompletedStatuses.With(newStatus)
	s.StepsDone = s.CompletedStatuses.Len()
	s.ProgressPct = Progress(s.StepsDone, totalSteps)
	s.CurrentStatus = newStatus
	s.Reason = reason
	s.ChangedBy = changedBy
	s.ChangedAt = now
	return &StatusEvent{
		DocumentID: s.DocumentID,
		OldStatus:  &old,
		NewStatus:  newStatus,
		Reason:     reason,
		Details:    details.Clone(),
		ChangedBy:  changedBy,
		ChangedAt:  now,
	}
}

// Clone returns a copy safe to hand out of a store.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.CompletedStatuses = NewStatusSet(s.CompletedStatuses.Codes()...)
	return &c
}
