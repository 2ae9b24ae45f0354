package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fastygo/taskdesk/domain"
	"github.com/fastygo/taskdesk/internal/metrics"
	"github.com/fastygo/taskdesk/pkg/logger"
	"github.com/fastygo/taskdesk/repository"
	"github.com/fastygo/taskdesk/usecase"
)

// cleanupTimeout bounds key bookkeeping and compensation that run after the
// request context is gone.
const cleanupTimeout = 5 * time.Second

// Dependencies groups the collaborators of the task use case. Outbox and
// Keys are optional.
type Dependencies struct {
	Tasks       repository.TaskRepository
	Users       repository.UserRepository
	Attachments usecase.AttachmentStore
	Notifier    usecase.Notifier
	Outbox      usecase.Outbox
	Keys        repository.IdempotencyStore
	KeyTTL      time.Duration
}

type UseCase struct {
	tasks       repository.TaskRepository
	users       repository.UserRepository
	attachments usecase.AttachmentStore
	notifier    usecase.Notifier
	outbox      usecase.Outbox
	keys        repository.IdempotencyStore
	keyTTL      time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

func New(deps Dependencies, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.KeyTTL <= 0 {
		deps.KeyTTL = 24 * time.Hour
	}
	return &UseCase{
		tasks:       deps.Tasks,
		users:       deps.Users,
		attachments: deps.Attachments,
		notifier:    deps.Notifier,
		outbox:      deps.Outbox,
		keys:        deps.Keys,
		keyTTL:      deps.KeyTTL,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateInput carries a new task as submitted by its creator.
type CreateInput struct {
	Title          string
	Description    string
	Instruction    string
	AssignedTo     string
	Priority       string
	DueDate        time.Time
	Documents      []usecase.Upload
	IdempotencyKey string
}

// CreateTask validates, uploads documents, persists and notifies the assignee.
// The boolean result is true when an earlier request with the same
// idempotency key already created the task.
func (uc *UseCase) CreateTask(ctx context.Context, caller domain.Caller, in CreateInput) (*View, bool, error) {
	priority, err := validateCreate(in)
	if err != nil {
		return nil, false, err
	}
	if !caller.Authenticated() {
		return nil, false, domain.ErrUnauthorized
	}
	if strings.TrimSpace(caller.Department) == "" {
		return nil, false, domain.ErrMissingDepartment
	}

	assignee, err := uc.users.GetByID(ctx, in.AssignedTo)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, false, domain.ErrAssigneeNotFound
		}
		return nil, false, domain.WrapError(domain.ErrCodeInternal, "failed to load assignee", err)
	}

	log := logger.WithRequestID(ctx, uc.logger)

	key := ""
	if in.IdempotencyKey != "" && uc.keys != nil {
		key = caller.ID + ":" + in.IdempotencyKey
		existingID, reserved, err := uc.keys.Reserve(ctx, key, uc.keyTTL)
		if err != nil {
			return nil, false, domain.WrapError(domain.ErrCodeInternal, "failed to reserve idempotency key", err)
		}
		if !reserved {
			if existingID == "" {
				return nil, false, domain.ErrRequestInFlight
			}
			view, err := uc.GetTask(ctx, existingID)
			return view, err == nil, err
		}
	}

	created, err := uc.persistNew(ctx, caller, in, priority)
	if err != nil {
		if key != "" {
			keyCtx, cancel := detached(ctx)
			if relErr := uc.keys.Release(keyCtx, key); relErr != nil {
				log.Warn("failed to release idempotency key", zap.Error(relErr))
			}
			cancel()
		}
		return nil, false, err
	}
	if key != "" {
		keyCtx, cancel := detached(ctx)
		if err := uc.keys.Complete(keyCtx, key, created.ID, uc.keyTTL); err != nil {
			log.Warn("failed to record idempotency key", zap.String("task_id", created.ID), zap.Error(err))
		}
		cancel()
	}

	uc.notifyAssignee(ctx, caller, assignee, created)

	view, err := uc.resolveOne(ctx, created)
	if err != nil {
		return nil, false, err
	}
	return view, false, nil
}

func validateCreate(in CreateInput) (domain.Priority, error) {
	if strings.TrimSpace(in.Title) == "" ||
		strings.TrimSpace(in.Description) == "" ||
		strings.TrimSpace(in.AssignedTo) == "" ||
		strings.TrimSpace(in.Priority) == "" ||
		in.DueDate.IsZero() {
		return "", domain.ErrMissingFields
	}
	if !validID(in.AssignedTo) {
		return "", domain.ErrInvalidID
	}
	return domain.ParsePriority(in.Priority)
}

func (uc *UseCase) persistNew(ctx context.Context, caller domain.Caller, in CreateInput, priority domain.Priority) (*domain.Task, error) {
	documents, err := uc.uploadAll(ctx, in.Documents)
	if err != nil {
		return nil, err
	}

	task := &domain.Task{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Instruction: strings.TrimSpace(in.Instruction),
		Department:  caller.Department,
		CreatedBy:   caller.ID,
		AssignedTo:  in.AssignedTo,
		UserRole:    caller.Role,
		Status:      domain.StatusPending,
		Priority:    priority,
		DueDate:     in.DueDate.UTC(),
		Documents:   documents,
		Version:     1,
		CreatedAt:   uc.now().UTC(),
	}

	created, err := uc.tasks.Create(ctx, task)
	if err != nil {
		cleanupCtx, cancel := detached(ctx)
		uc.releaseAttachments(cleanupCtx, task.ID, documents)
		cancel()
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to save task", err)
	}
	metrics.RecordTaskCreated()
	return created, nil
}

// uploadAll uploads every document concurrently. It is all-or-nothing: when
// one upload fails the others are removed again. A failure does not cancel
// the sibling uploads, so every file that reached the store is known and
// released.
func (uc *UseCase) uploadAll(ctx context.Context, uploads []usecase.Upload) ([]domain.Attachment, error) {
	documents := make([]domain.Attachment, len(uploads))
	if len(uploads) == 0 {
		return documents, nil
	}
	if uc.attachments == nil {
		return nil, domain.WrapError(domain.ErrCodeDependency, domain.ErrUploadFailed.Message, errors.New("attachment store not configured"))
	}

	var g errgroup.Group
	for i, up := range uploads {
		i, up := i, up
		up.Name = storedName(up.Name)
		g.Go(func() error {
			att, err := uc.attachments.Upload(ctx, up)
			if err != nil {
				metrics.RecordAttachment("upload", metrics.ResultFailure)
				return fmt.Errorf("upload %q: %w", up.Name, err)
			}
			metrics.RecordAttachment("upload", metrics.ResultSuccess)
			documents[i] = att
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		uploaded := make([]domain.Attachment, 0, len(documents))
		for _, d := range documents {
			if d.ID != "" {
				uploaded = append(uploaded, d)
			}
		}
		cleanupCtx, cancel := detached(ctx)
		uc.releaseAttachments(cleanupCtx, "", uploaded)
		cancel()
		return nil, domain.WrapError(domain.ErrCodeDependency, domain.ErrUploadFailed.Message, err)
	}
	return documents, nil
}

// detached keeps the request's values but not its deadline, so bookkeeping
// after a timed-out request still completes.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

// storedName prefixes the original file name with a random id so concurrent
// uploads of equally named files never collide.
func storedName(original string) string {
	original = strings.TrimSpace(original)
	if original == "" {
		original = "document"
	}
	return uuid.NewString() + "-" + original
}

// releaseAttachments deletes attachments one by one. A failed delete is
// logged and parked in the outbox; it never stops the remaining deletes.
func (uc *UseCase) releaseAttachments(ctx context.Context, taskID string, attachments []domain.Attachment) {
	if uc.attachments == nil || len(attachments) == 0 {
		return
	}
	log := logger.WithRequestID(ctx, uc.logger)

	for _, att := range attachments {
		err := uc.attachments.Delete(ctx, att.ID)
		if err == nil {
			metrics.RecordAttachment("delete", metrics.ResultSuccess)
			continue
		}
		metrics.RecordAttachment("delete", metrics.ResultFailure)
		log.Warn("attachment delete failed",
			zap.String("task_id", taskID),
			zap.String("attachment_id", att.ID),
			zap.Error(err))

		if uc.outbox == nil {
			continue
		}
		if deferErr := uc.outbox.DeferAttachmentDelete(ctx, taskID, att); deferErr != nil {
			log.Error("failed to park attachment delete",
				zap.String("attachment_id", att.ID),
				zap.Error(deferErr))
		}
	}
}

// notifyAssignee is best-effort: a failed send is parked in the outbox and
// never undoes the created task.
func (uc *UseCase) notifyAssignee(ctx context.Context, caller domain.Caller, assignee *domain.User, task *domain.Task) {
	if uc.notifier == nil || assignee == nil {
		return
	}
	notice := usecase.AssignmentNotice{
		TaskID:         task.ID,
		Title:          task.Title,
		Description:    task.Description,
		Instruction:    task.Instruction,
		Priority:       task.Priority,
		DueDate:        task.DueDate,
		RecipientName:  assignee.Name,
		RecipientEmail: assignee.Email,
		AssignerEmail:  caller.Email,
	}

	err := uc.notifier.NotifyAssignment(ctx, notice)
	if err == nil {
		metrics.RecordNotification(metrics.ResultSuccess)
		return
	}

	metrics.RecordNotification(metrics.ResultFailure)
	log := logger.WithRequestID(ctx, uc.logger)
	log.Warn("assignment notification failed",
		zap.String("task_id", task.ID),
		zap.String("recipient", assignee.Email),
		zap.Error(err))

	if uc.outbox == nil {
		return
	}
	if deferErr := uc.outbox.DeferAssignmentNotice(ctx, notice); deferErr != nil {
		log.Error("failed to park assignment notification", zap.String("task_id", task.ID), zap.Error(deferErr))
	}
}

// UpdateStatus applies a status transition requested by caller.
func (uc *UseCase) UpdateStatus(ctx context.Context, caller domain.Caller, id, rawStatus string) (*View, error) {
	if !caller.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	if !validID(id) {
		return nil, domain.ErrInvalidID
	}
	target, err := domain.ParseStatus(rawStatus)
	if err != nil {
		metrics.RecordTransition("unknown", metrics.ResultInvalid)
		return nil, err
	}

	task, err := uc.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := Apply(task, target, caller, uc.now().UTC()); err != nil {
		result := metrics.ResultInvalid
		if domain.IsDomainError(err, domain.ErrCodeForbidden) {
			result = metrics.ResultDenied
		}
		metrics.RecordTransition(string(target), result)
		return nil, err
	}

	if err := uc.tasks.Update(ctx, task); err != nil {
		metrics.RecordTransition(string(target), metrics.ResultFailure)
		if domain.IsDomainError(err, domain.ErrCodeNotFound) || domain.IsDomainError(err, domain.ErrCodeConflict) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to save task", err)
	}
	metrics.RecordTransition(string(target), metrics.ResultSuccess)

	logger.WithRequestID(ctx, uc.logger).Info("task status changed",
		zap.String("task_id", task.ID),
		zap.String("status", string(task.Status)),
		zap.String("caller", caller.ID))

	return uc.resolveOne(ctx, task)
}

// DeleteResult confirms a deletion.
type DeleteResult struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// DeleteTask removes a task after releasing its attachments. Only a
// supervisor or the task's creator may delete it.
func (uc *UseCase) DeleteTask(ctx context.Context, caller domain.Caller, id string) (*DeleteResult, error) {
	if !caller.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	if !validID(id) {
		return nil, domain.ErrInvalidID
	}

	task, err := uc.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsSupervisor() && task.CreatedBy != caller.ID {
		return nil, domain.ErrDeleteForbidden
	}

	uc.releaseAttachments(ctx, task.ID, task.Documents)

	if err := uc.tasks.Delete(ctx, id); err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to delete task", err)
	}

	logger.WithRequestID(ctx, uc.logger).Info("task deleted",
		zap.String("task_id", id),
		zap.String("caller", caller.ID),
		zap.Int("documents", len(task.Documents)))

	return &DeleteResult{Message: "Task deleted successfully", ID: id}, nil
}

// MaxListLimit caps an explicit page size.
const MaxListLimit = 500

// ListOptions narrows and pages a listing. A zero Limit returns every match.
type ListOptions struct {
	Status string
	Limit  int
	Offset int
}

func (o ListOptions) filter(assignedTo string) (repository.TaskFilter, error) {
	f := repository.TaskFilter{AssignedTo: assignedTo}
	if strings.TrimSpace(o.Status) != "" {
		status, err := domain.ParseStatus(o.Status)
		if err != nil {
			return f, err
		}
		f.Status = status
	}
	if o.Limit < 0 || o.Limit > MaxListLimit || o.Offset < 0 {
		return f, domain.ErrInvalidPagination
	}
	f.Limit = o.Limit
	f.Offset = o.Offset
	return f, nil
}

// ListTasks returns tasks newest first.
func (uc *UseCase) ListTasks(ctx context.Context, opts ListOptions) ([]View, error) {
	filter, err := opts.filter("")
	if err != nil {
		return nil, err
	}
	tasks, err := uc.tasks.List(ctx, filter)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to list tasks", err)
	}
	return uc.resolve(ctx, tasks)
}

// ListTasksByUser returns the tasks assigned to userID. No match is an empty
// list, not an error.
func (uc *UseCase) ListTasksByUser(ctx context.Context, userID string, opts ListOptions) ([]View, error) {
	if !validID(userID) {
		return nil, domain.ErrInvalidID
	}
	filter, err := opts.filter(userID)
	if err != nil {
		return nil, err
	}
	tasks, err := uc.tasks.List(ctx, filter)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to list tasks", err)
	}
	return uc.resolve(ctx, tasks)
}

func (uc *UseCase) GetTask(ctx context.Context, id string) (*View, error) {
	if !validID(id) {
		return nil, domain.ErrInvalidID
	}
	task, err := uc.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return uc.resolveOne(ctx, task)
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
