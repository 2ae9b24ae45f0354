package domain

import (
	"strings"
	"time"
)

// Status is a task lifecycle state.
type Status string

const (
	StatusPending            Status = "pending"
	StatusWaitingForApproval Status = "waiting for approval"
	StatusApproved           Status = "approved"
	StatusCompleted          Status = "completed"
)

// Statuses lists every state a task may hold, in lifecycle order.
var Statuses = []Status{StatusPending, StatusWaitingForApproval, StatusApproved, StatusCompleted}

// ParseStatus normalises a client-supplied status. Matching ignores case and
// surrounding whitespace.
func ParseStatus(raw string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(raw)))
	if candidate.Valid() {
		return candidate, nil
	}
	return "", ErrInvalidStatus
}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Priority ranks a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func ParsePriority(raw string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(raw))); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	default:
		return "", ErrInvalidPriority
	}
}

// Attachment references a document held by the attachment store.
type Attachment struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// Task represents a unit of work created by one user and assigned to another.
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Instruction string       `json:"instruction,omitempty"`
	Department  string       `json:"department"`
	CreatedBy   string       `json:"createdBy"`
	AssignedTo  string       `json:"assignedTo"`
	UserRole    Role         `json:"userRole"`
	Status      Status       `json:"status"`
	Priority    Priority     `json:"priority"`
	DueDate     time.Time    `json:"dueDate"`
	Progress    float64      `json:"progress"`
	Documents   []Attachment `json:"documents"`
	ApprovedBy  *string      `json:"approvedBy,omitempty"`
	ApprovedAt  *time.Time   `json:"approvedAt,omitempty"`
	Version     int          `json:"version"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// IsParticipant reports whether userID created or is assigned the task.
func (t *Task) IsParticipant(userID string) bool {
	return t != nil && userID != "" && (t.CreatedBy == userID || t.AssignedTo == userID)
}

// ApprovalConsistent reports whether approvedBy/approvedAt are set exactly
// when the task is approved.
func (t *Task) ApprovalConsistent() bool {
	if t == nil {
		return false
	}
	stamped := t.ApprovedBy != nil && t.ApprovedAt != nil
	unstamped := t.ApprovedBy == nil && t.ApprovedAt == nil
	if t.Status == StatusApproved {
		return stamped
	}
	return unstamped
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	out := *t
	if t.Documents != nil {
		out.Documents = append([]Attachment(nil), t.Documents...)
	}
	if t.ApprovedBy != nil {
		by := *t.ApprovedBy
		out.ApprovedBy = &by
	}
	if t.ApprovedAt != nil {
		at := *t.ApprovedAt
		out.ApprovedAt = &at
	}
	return &out
}
