package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/taskdesk/domain"
	"github.com/fastygo/taskdesk/internal/infrastructure/outbox"
	"github.com/fastygo/taskdesk/internal/metrics"
	"github.com/fastygo/taskdesk/usecase"
)

// ProcessorConfig controls how the outbox is drained.
type ProcessorConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxRetries  int
	Retention   time.Duration
	BaseBackoff time.Duration
}

// OutboxProcessor retries parked attachment deletes and assignment notices.
type OutboxProcessor struct {
	store       *outbox.Store
	attachments usecase.AttachmentStore
	notifier    usecase.Notifier
	logger      *zap.Logger
	cron        *cron.Cron
	cfg         ProcessorConfig
	now         func() time.Time
}

func NewOutboxProcessor(
	store *outbox.Store,
	attachments usecase.AttachmentStore,
	notifier usecase.Notifier,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *OutboxProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = cfg.Interval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &OutboxProcessor{
		store:       store,
		attachments: attachments,
		notifier:    notifier,
		logger:      logger,
		cfg:         cfg,
		cron:        cron.New(cron.WithSeconds()),
		now:         time.Now,
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	if _, err := p.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := p.Drain(ctx); err != nil {
			p.logger.Error("outbox drain failed", zap.Error(err))
		}
	}); err != nil {
		p.logger.Error("invalid outbox schedule", zap.String("schedule", schedule), zap.Error(err))
	}

	return p
}

// Start launches the cron scheduler.
func (p *OutboxProcessor) Start() {
	if p == nil || p.cron == nil {
		return
	}
	p.cron.Start()
	p.logger.Info("outbox processor started", zap.Duration("interval", p.cfg.Interval))
}

// Stop waits for a running drain to finish or ctx to expire.
func (p *OutboxProcessor) Stop(ctx context.Context) {
	if p == nil || p.cron == nil {
		return
	}
	stopCtx := p.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	p.logger.Info("outbox processor stopped")
}

// Park stores an item for a later retry.
func (p *OutboxProcessor) Park(ctx context.Context, item outbox.Item) error {
	if p == nil || p.store == nil {
		return fmt.Errorf("outbox processor not configured")
	}
	item.NextAttempt = p.now().Add(p.cfg.BaseBackoff)
	if err := p.store.Enqueue(item); err != nil {
		return err
	}
	p.logger.Info("side effect parked in outbox",
		zap.String("entity", item.Entity),
		zap.String("task_id", item.TaskID))
	p.refreshSize()
	return nil
}

// Drain processes due items synchronously.
func (p *OutboxProcessor) Drain(ctx context.Context) error {
	if p == nil || p.store == nil {
		return nil
	}
	now := p.now()

	if removed, err := p.store.Cleanup(now.Add(-p.cfg.Retention)); err != nil {
		p.logger.Warn("outbox retention cleanup failed", zap.Error(err))
	} else if removed > 0 {
		p.logger.Warn("expired outbox items discarded", zap.Int("count", removed))
	}

	items, err := p.store.Due(now, p.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if err := p.processItem(ctx, item); err != nil {
			metrics.RecordOutbox(item.Entity, metrics.ResultFailure)
			p.logger.Error("failed to process outbox item",
				zap.String("item_id", item.ID),
				zap.String("entity", item.Entity),
				zap.Int("retries", item.Retries),
				zap.Error(err))

			if item.Retries+1 >= p.cfg.MaxRetries {
				p.logger.Warn("dropping outbox item (max retries reached)", zap.String("item_id", item.ID))
				if err := p.store.Remove(item); err != nil {
					p.logger.Warn("failed to remove outbox item", zap.Error(err))
				}
				continue
			}
			if err := p.store.Reschedule(item, now.Add(p.backoff(item.Retries)), err); err != nil {
				p.logger.Error("failed to reschedule outbox item", zap.Error(err))
			}
			continue
		}

		metrics.RecordOutbox(item.Entity, metrics.ResultSuccess)
		if err := p.store.Remove(item); err != nil {
			p.logger.Warn("failed to purge processed outbox item", zap.Error(err))
		}
	}

	p.refreshSize()
	return nil
}

// Size returns the number of parked items.
func (p *OutboxProcessor) Size() int {
	if p == nil || p.store == nil {
		return 0
	}
	size, err := p.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (p *OutboxProcessor) refreshSize() {
	metrics.SetOutboxSize(p.Size())
}

// backoff doubles the base delay per retry, capped at one hour.
func (p *OutboxProcessor) backoff(retries int) time.Duration {
	d := p.cfg.BaseBackoff
	for i := 0; i < retries && d < time.Hour; i++ {
		d *= 2
	}
	if d > time.Hour {
		d = time.Hour
	}
	return d
}

func (p *OutboxProcessor) processItem(ctx context.Context, item outbox.Item) error {
	switch item.Entity {
	case outbox.EntityAttachment:
		if p.attachments == nil {
			return fmt.Errorf("attachment store not configured")
		}
		var att domain.Attachment
		if err := json.Unmarshal(item.Data, &att); err != nil {
			return err
		}
		return p.attachments.Delete(ctx, att.ID)

	case outbox.EntityNotification:
		if p.notifier == nil {
			return fmt.Errorf("notifier not configured")
		}
		var notice usecase.AssignmentNotice
		if err := json.Unmarshal(item.Data, &notice); err != nil {
			return err
		}
		return p.notifier.NotifyAssignment(ctx, notice)

	default:
		return fmt.Errorf("unsupported entity %s", item.Entity)
	}
}
