package usecase

import (
	"context"
	"io"
	"time"

	"github.com/fastygo/taskdesk/domain"
)

// Upload is a named document supplied with a task.
type Upload struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// AttachmentStore hosts task documents.
type AttachmentStore interface {
	// Upload stores the document, grants public read access and returns its reference.
	Upload(ctx context.Context, upload Upload) (domain.Attachment, error)
	Delete(ctx context.Context, id string) error
}

// AssignmentNotice tells a user a task was assigned to them.
type AssignmentNotice struct {
	TaskID         string          `json:"task_id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Instruction    string          `json:"instruction,omitempty"`
	Priority       domain.Priority `json:"priority"`
	DueDate        time.Time       `json:"due_date"`
	RecipientName  string          `json:"recipient_name"`
	RecipientEmail string          `json:"recipient_email"`
	AssignerEmail  string          `json:"assigner_email,omitempty"`
}

// Notifier delivers assignment notices.
type Notifier interface {
	NotifyAssignment(ctx context.Context, notice AssignmentNotice) error
}

// Outbox parks side effects that failed on the request path so a background
// janitor can retry them.
type Outbox interface {
	DeferAttachmentDelete(ctx context.Context, taskID string, attachment domain.Attachment) error
	DeferAssignmentNotice(ctx context.Context, notice AssignmentNotice) error
}
