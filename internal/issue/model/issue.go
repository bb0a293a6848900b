// Package model provides domain models, DTOs and sentinel errors for tracked issues.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Issue is an analyzer finding tracked through the fix lifecycle.
// Matches the issues table schema.
type Issue struct {
	ID                string     `gorm:"primaryKey;column:id;type:varchar(36)"                                                  json:"id"`
	SonarQubeIssueKey string     `gorm:"column:sonarqube_issue_key;type:varchar(255);not null;uniqueIndex:uq_issues_sonarqube_issue_key" json:"sonarqube_issue_key"`
	ProjectKey        string     `gorm:"column:project_key;type:varchar(255);not null"                                          json:"project_key"`
	Rule              string     `gorm:"column:rule;type:varchar(255);not null"                                                 json:"rule"`
	Severity          string     `gorm:"column:severity;type:varchar(50);not null;index:idx_issues_severity"                    json:"severity"`
	Component         string     `gorm:"column:component;type:varchar(1024);not null"                                           json:"component"`
	Line              *int       `gorm:"column:line"                                                                            json:"line"`
	Message           *string    `gorm:"column:message;type:text"                                                               json:"message"`
	Status            Status     `gorm:"column:status;type:varchar(20);not null;index:idx_issues_status"                        json:"status"`
	PRURL             *string    `gorm:"column:pr_url;type:varchar(1024)"                                                       json:"pr_url"`
	PRBranch          *string    `gorm:"column:pr_branch;type:varchar(255)"                                                     json:"pr_branch"`
	PRMergeState      MergeState `gorm:"column:pr_merge_state;type:varchar(20);not null"                                        json:"pr_merge_state"`
	CreatedAt         time.Time  `gorm:"column:created_at;not null;index:idx_issues_created_at"                                 json:"created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;not null"                                                             json:"updated_at"`

	Events []Event `gorm:"foreignKey:IssueID;constraint:OnDelete:CASCADE" json:"events,omitempty"`
}

// TableName specifies the table name for GORM.
func (Issue) TableName() string {
	return "issues"
}

// BeforeCreate fills the surrogate key and lifecycle defaults.
func (i *Issue) BeforeCreate(_ *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Status == "" {
		i.Status = StatusNew
	}
	if i.PRMergeState == "" {
		i.PRMergeState = MergeStateUnknown
	}
	return nil
}

// TransitionTo moves the issue to status to if the lifecycle allows it.
func (i *Issue) TransitionTo(to Status) error {
	if !CanTransition(i.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, i.Status, to)
	}
	i.Status = to
	return nil
}

// HasPullRequest reports whether a PR has been recorded for the issue.
func (i *Issue) HasPullRequest() bool {
	return i.PRURL != nil && *i.PRURL != ""
}

// Event is an append-only audit entry attached to an issue.
// Matches the events table schema.
type Event struct {
	ID            string         `gorm:"primaryKey;column:id;type:varchar(36)"                             json:"id"`
	IssueID       string         `gorm:"column:issue_id;type:varchar(36);not null;index:idx_events_issue_id" json:"issue_id"`
	EventType     EventType      `gorm:"column:event_type;type:varchar(30);not null"                       json:"event_type"`
	Message       string         `gorm:"column:message;type:text;not null"                                 json:"message"`
	EventMetadata map[string]any `gorm:"column:event_metadata;type:text;serializer:json"                   json:"event_metadata,omitempty"`
	CreatedAt     time.Time      `gorm:"column:created_at;not null;index:idx_events_created_at"            json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Event) TableName() string {
	return "events"
}

// BeforeCreate fills the surrogate key.
func (e *Event) BeforeCreate(_ *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// NewEvent builds an event for issueID. metadata may be nil.
func NewEvent(issueID string, eventType EventType, message string, metadata map[string]any) Event {
	return Event{
		IssueID:       issueID,
		EventType:     eventType,
		Message:       message,
		EventMetadata: metadata,
	}
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
