package profile

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fastygo/taskdesk/domain"
	"github.com/fastygo/taskdesk/repository"
)

type UseCase struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func New(users repository.UserRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:  users,
		logger: logger,
	}
}

func (uc *UseCase) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	return uc.users.GetByID(ctx, userID)
}

func (uc *UseCase) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := uc.users.List(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to list users", err)
	}
	return users, nil
}

// Resolve loads the caller context for userID from the directory, so role
// and department always reflect the stored user.
func (uc *UseCase) Resolve(ctx context.Context, userID string) (domain.Caller, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.Caller{}, domain.ErrUnauthorized
		}
		return domain.Caller{}, err
	}
	return user.Caller(), nil
}
