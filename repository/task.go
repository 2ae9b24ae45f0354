package repository

import (
	"context"

	"github.com/fastygo/taskdesk/domain"
)

type TaskFilter struct {
	AssignedTo string
	Status     domain.Status
	Limit      int
	Offset     int
}

type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	// Update persists task if the stored version equals task.Version and
	// bumps task.Version on success.
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id string) error
}
