package models

import (
	"sort"
	"time"
)

// TimelineSource names the stream a timeline entry came from.
type TimelineSource string

const (
	SourceStatus TimelineSource = "status"
	SourceOtp    TimelineSource = "otp"
	SourceEsign  TimelineSource = "esign"
)

var sourceRank = map[TimelineSource]int{SourceStatus: 0, SourceOtp: 1, SourceEsign: 2}

// TimelineEntry is one row of the merged, read-only document timeline.
type TimelineEntry struct {
	Source  TimelineSource `json:"source"`
	ID      int64          `json:"id"`
	At      time.Time      `json:"at"`
	Event   string         `json:"event"`
	Actor   string         `json:"actor,omitempty"`
	Details Details        `json:"details,omitempty"`
}

func StatusTimelineEntry(e *StatusEvent) TimelineEntry {
	details := Details{"new_status": e.NewStatus}
	if e.OldStatus != nil {
		details["old_status"] = *e.OldStatus
	}
	if e.Reason != "" {
		details["reason"] = e.Reason
	}
	for k, v := range e.Details {
		if _, taken := details[k]; !taken {
			details[k] = v
		}
	}
	return TimelineEntry{Source: SourceStatus, ID: e.ID, At: e.ChangedAt, Event: "status_changed", Actor: e.ChangedBy, Details: details}
}

func OtpTimelineEntry(e *OtpEvent) TimelineEntry {
	details := e.Details.Clone()
	if details == nil {
		details = Details{}
	}
	details["role"] = e.Role
	details["session_id"] = e.SessionID.String()
	return TimelineEntry{Source: SourceOtp, ID: e.ID, At: e.CreatedAt, Event: "otp_" + e.Event, Actor: e.CreatedBy, Details: details}
}

func EsignTimelineEntry(e *EsignEvent) TimelineEntry {
	details := e.Details.Clone()
	if details == nil {
		details = Details{}
	}
	details["provider"] = e.Provider
	if e.Status != "" {
		details["status"] = e.Status
	}
	actor := e.Actor
	if actor == "" {
		actor = e.CreatedBy
	}
	return TimelineEntry{Source: SourceEsign, ID: e.ID, At: e.CreatedAt, Event: "esign_" + e.Event, Actor: actor, Details: details}
}

// SortTimeline orders entries by time; ties fall back to source, then id.
func SortTimeline(entries []TimelineEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.At.Equal(b.At) {
			return a.At.Before(b.At)
		}
		if a.Source != b.Source {
			return sourceRank[a.Source] < sourceRank[b.Source]
		}
		return a.ID < b.ID
	})
}
