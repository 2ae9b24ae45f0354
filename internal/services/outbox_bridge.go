package services

import (
	"context"
	"encoding/json"

	"github.com/fastygo/taskdesk/domain"
	"github.com/fastygo/taskdesk/internal/infrastructure/outbox"
	"github.com/fastygo/taskdesk/usecase"
)

// OutboxBridge turns use-case side effects into outbox items.
type OutboxBridge struct {
	processor *OutboxProcessor
}

func NewOutboxBridge(processor *OutboxProcessor) *OutboxBridge {
	return &OutboxBridge{processor: processor}
}

func (b *OutboxBridge) DeferAttachmentDelete(ctx context.Context, taskID string, attachment domain.Attachment) error {
	if b.processor == nil || attachment.ID == "" {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(attachment)
	if err != nil {
		return err
	}
	return b.processor.Park(ctx, outbox.Item{
		TaskID:    taskID,
		Entity:    outbox.EntityAttachment,
		Operation: outbox.OperationDelete,
		Data:      payload,
	})
}

func (b *OutboxBridge) DeferAssignmentNotice(ctx context.Context, notice usecase.AssignmentNotice) error {
	if b.processor == nil || notice.RecipientEmail == "" {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	return b.processor.Park(ctx, outbox.Item{
		TaskID:    notice.TaskID,
		Entity:    outbox.EntityNotification,
		Operation: outbox.OperationSend,
		Data:      payload,
	})
}

var _ usecase.Outbox = (*OutboxBridge)(nil)
