package repository

import (
	"context"

	"github.com/fastygo/taskdesk/domain"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetMany returns the users found among ids, keyed by id. Unknown ids are skipped.
	GetMany(ctx context.Context, ids []string) (map[string]*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Create(ctx context.Context, user *domain.User) error
}
