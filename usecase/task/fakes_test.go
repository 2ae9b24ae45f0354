package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskdesk/domain"
	"github.com/fastygo/taskdesk/repository"
	"github.com/fastygo/taskdesk/repository/memory"
	"github.com/fastygo/taskdesk/usecase"
)

var errUnavailable = errors.New("service unavailable")

type fakeAttachments struct {
	mu        sync.Mutex
	stored    map[string]domain.Attachment
	names     []string
	deleted   []string
	failNames map[string]bool
	deleteErr error
}

func newFakeAttachments() *fakeAttachments {
	return &fakeAttachments{stored: map[string]domain.Attachment{}, failNames: map[string]bool{}}
}

func (f *fakeAttachments) Upload(_ context.Context, up usecase.Upload) (domain.Attachment, error) {
	if up.Content != nil {
		if _, err := io.ReadAll(up.Content); err != nil {
			return domain.Attachment{}, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for name := range f.failNames {
		if strings.HasSuffix(up.Name, name) {
			return domain.Attachment{}, errUnavailable
		}
	}
	id := uuid.NewString()
	att := domain.Attachment{ID: id, URL: "https://files.example/" + id, Name: up.Name}
	f.stored[id] = att
	f.names = append(f.names, up.Name)
	return att, nil
}

func (f *fakeAttachments) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.stored, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAttachments) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stored)
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []usecase.AssignmentNotice
	err  error
}

func (f *fakeNotifier) NotifyAssignment(_ context.Context, notice usecase.AssignmentNotice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, notice)
	return nil
}

type fakeOutbox struct {
	mu          sync.Mutex
	attachments []domain.Attachment
	notices     []usecase.AssignmentNotice
}

func (f *fakeOutbox) DeferAttachmentDelete(_ context.Context, _ string, att domain.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attachments = append(f.attachments, att)
	return nil
}

func (f *fakeOutbox) DeferAssignmentNotice(_ context.Context, notice usecase.AssignmentNotice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notice)
	return nil
}

type fixture struct {
	uc          *UseCase
	tasks       *memory.TaskRepository
	users       *memory.UserRepository
	keys        *memory.IdempotencyStore
	attachments *fakeAttachments
	notifier    *fakeNotifier
	outbox      *fakeOutbox

	supervisor *domain.User
	creator    *domain.User
	assignee   *domain.User
	outsider   *domain.User
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		tasks:       memory.NewTaskRepository(),
		users:       memory.NewUserRepository(),
		keys:        memory.NewIdempotencyStore(),
		attachments: newFakeAttachments(),
		notifier:    &fakeNotifier{},
		outbox:      &fakeOutbox{},
		now:         time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.supervisor = f.addUser(t, "Sam Supervisor", domain.RoleSupervisor, "operations")
	f.creator = f.addUser(t, "Casey Creator", domain.RoleUser, "operations")
	f.assignee = f.addUser(t, "Alex Assignee", domain.RoleUser, "operations")
	f.outsider = f.addUser(t, "Olly Outsider", domain.RoleUser, "finance")

	f.uc = New(Dependencies{
		Tasks:       f.tasks,
		Users:       f.users,
		Attachments: f.attachments,
		Notifier:    f.notifier,
		Outbox:      f.outbox,
		Keys:        f.keys,
	}, nil)
	f.uc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) addUser(t *testing.T, name string, role domain.Role, department string) *domain.User {
	t.Helper()
	user := &domain.User{
		Name:       name,
		Email:      strings.ReplaceAll(strings.ToLower(name), " ", ".") + "@example.com",
		Department: department,
		Role:       role,
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func (f *fixture) input(documents ...string) CreateInput {
	uploads := make([]usecase.Upload, 0, len(documents))
	for _, name := range documents {
		uploads = append(uploads, usecase.Upload{
			Name:        name,
			ContentType: "application/pdf",
			Content:     strings.NewReader(fmt.Sprintf("contents of %s", name)),
		})
	}
	return CreateInput{
		Title:       "Quarterly report",
		Description: "Compile the Q1 numbers",
		Instruction: "Use the shared template",
		AssignedTo:  f.assignee.ID,
		Priority:    "High",
		DueDate:     f.now.Add(72 * time.Hour),
		Documents:   uploads,
	}
}

// seed creates a pending task owned by creator and assigned to assignee.
func (f *fixture) seed(t *testing.T) *View {
	t.Helper()
	view, _, err := f.uc.CreateTask(context.Background(), f.creator.Caller(), f.input())
	require.NoError(t, err)
	return view
}

// deadlineKeys refuses to touch a key once the caller's context is done,
// the way a network-backed store does.
type deadlineKeys struct {
	*memory.IdempotencyStore
}

func (k deadlineKeys) Reserve(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	return k.IdempotencyStore.Reserve(ctx, key, ttl)
}

func (k deadlineKeys) Complete(ctx context.Context, key, taskID string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return k.IdempotencyStore.Complete(ctx, key, taskID, ttl)
}

func (k deadlineKeys) Release(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return k.IdempotencyStore.Release(ctx, key)
}

// stallingAttachments blocks every upload until the context ends.
type stallingAttachments struct {
	*fakeAttachments
}

func (s stallingAttachments) Upload(ctx context.Context, _ usecase.Upload) (domain.Attachment, error) {
	<-ctx.Done()
	return domain.Attachment{}, ctx.Err()
}

// lateAttachments stores a file before noticing cancellation, leaving it
// behind when the caller gave up. Names ending in failSuffix fail at once.
type lateAttachments struct {
	*fakeAttachments
	failSuffix string
	delay      time.Duration
}

func (l lateAttachments) Upload(ctx context.Context, up usecase.Upload) (domain.Attachment, error) {
	if strings.HasSuffix(up.Name, l.failSuffix) {
		return domain.Attachment{}, errUnavailable
	}
	time.Sleep(l.delay)
	att, err := l.fakeAttachments.Upload(ctx, up)
	if err != nil {
		return att, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.Attachment{}, ctxErr
	}
	return att, nil
}

// withStores rebuilds the use case around different attachment and key stores.
func (f *fixture) withStores(attachments usecase.AttachmentStore, keys repository.IdempotencyStore) {
	f.uc = New(Dependencies{
		Tasks:       f.tasks,
		Users:       f.users,
		Attachments: attachments,
		Notifier:    f.notifier,
		Outbox:      f.outbox,
		Keys:        keys,
	}, nil)
	f.uc.now = func() time.Time { return f.now }
}
