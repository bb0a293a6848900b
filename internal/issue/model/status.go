package model

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a tracked issue.
type Status string

// Issue statuses.
const (
	StatusNew      Status = "NEW"
	StatusFixing   Status = "FIXING"
	StatusPROpen   Status = "PR_OPEN"
	StatusCIPassed Status = "CI_PASSED"
	StatusCIFailed Status = "CI_FAILED"
	StatusClosed   Status = "CLOSED"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusNew,
	StatusFixing,
	StatusPROpen,
	StatusCIPassed,
	StatusCIFailed,
	StatusClosed,
}

// transitions is the only source of truth for legal status changes.
// The moves into CLOSED cover merged pull requests and ones rejected without a merge.
var transitions = map[Status][]Status{
	StatusNew:      {StatusFixing},
	StatusFixing:   {StatusNew, StatusPROpen},
	StatusPROpen:   {StatusCIPassed, StatusCIFailed, StatusClosed},
	StatusCIPassed: {StatusCIFailed, StatusClosed},
	StatusCIFailed: {StatusCIPassed, StatusClosed},
	StatusClosed:   {},
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s.IsValid() && len(transitions[s]) == 0
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus converts an API value to a Status. Matching is case-insensitive.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s in one step.
func NextStatuses(s Status) []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// MergeState records what is known about an issue's pull request merge.
type MergeState string

// Merge states.
const (
	MergeStateUnknown   MergeState = "UNKNOWN"
	MergeStateNotMerged MergeState = "NOT_MERGED"
	MergeStateMerged    MergeState = "MERGED"
)

// EventType classifies an audit log entry.
type EventType string

// Event types.
const (
	EventIssueDetected EventType = "ISSUE_DETECTED"
	EventAICalled      EventType = "AI_CALLED"
	EventPRCreated     EventType = "PR_CREATED"
	EventCIPassed      EventType = "CI_PASSED"
	EventCIFailed      EventType = "CI_FAILED"
	EventStatusUpdated EventType = "STATUS_UPDATED"
	EventError         EventType = "ERROR"
)
