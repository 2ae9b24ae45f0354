package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EntityAttachment   = "attachment"
	EntityNotification = "notification"

	OperationDelete = "delete"
	OperationSend   = "send"
)

// Item is a side effect that failed on the request path and waits for a retry.
type Item struct {
	ID          string          `json:"id"`
	TaskID      string          `json:"task_id,omitempty"`
	Entity      string          `json:"entity"`
	Operation   string          `json:"operation"`
	Data        json.RawMessage `json:"data"`
	Retries     int             `json:"retries"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	NextAttempt time.Time       `json:"next_attempt"`

	key []byte
}

func (i *Item) normalize(now time.Time) {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = now
	}
	if i.NextAttempt.IsZero() {
		i.NextAttempt = now
	}
}
