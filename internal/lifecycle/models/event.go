package models

import (
	"sort"
	"time"
)

// StatusEvent is one accepted transition. Events are append-only.
type StatusEvent struct {
	ID         int64     `json:"id"`
	DocumentID int64     `json:"document_id"`
	OldStatus  *string   `json:"old_status"`
	NewStatus  string    `json:"new_status"`
	Reason     string    `json:"reason,omitempty"`
	Details    Details   `json:"details,omitempty"`
	ChangedBy  string    `json:"changed_by,omitempty"`
	ChangedAt  time.Time `json:"changed_at"`
}

// SortStatusEvents orders events by (ChangedAt, ID), the total order of the log.
func SortStatusEvents(events []*StatusEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].ChangedAt.Equal(events[j].ChangedAt) {
			return events[i].ChangedAt.Before(events[j].ChangedAt)
		}
		return events[i].ID < events[j].ID
	})
}
