package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/taskdesk/domain"
	appAuth "github.com/fastygo/taskdesk/internal/auth"
	"github.com/fastygo/taskdesk/pkg/logger"
	"github.com/fastygo/taskdesk/repository"
)

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	Issue(user *domain.User) (string, error)
}

type UseCase struct {
	users  repository.UserRepository
	tokens TokenIssuer
	logger *zap.Logger
}

func New(users repository.UserRepository, tokens TokenIssuer, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// Session is a user summary together with a freshly signed token.
type Session struct {
	domain.User
	Token string `json:"token"`
}

type RegisterInput struct {
	Name       string
	Email      string
	Password   string
	Department string
	Role       string
}

func (uc *UseCase) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Department = strings.TrimSpace(in.Department)

	if in.Name == "" || in.Email == "" || in.Password == "" || in.Department == "" {
		return nil, domain.ErrMissingFields
	}
	if len(in.Password) > appAuth.MaxPasswordBytes {
		return nil, domain.ErrPasswordTooLong
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "invalid email", err)
	}
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}

	if _, err := uc.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to look up user", err)
	}

	hash, err := appAuth.HashPassword(in.Password)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to hash password", err)
	}

	user := &domain.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Department:   in.Department,
		Role:         role,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to create user", err)
	}

	logger.WithRequestID(ctx, uc.logger).Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)))

	return uc.session(user)
}

func (uc *UseCase) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to look up user", err)
	}
	if !appAuth.CheckPassword(password, user.PasswordHash) {
		logger.WithRequestID(ctx, uc.logger).Info("login rejected", zap.String("user_id", user.ID))
		return nil, domain.ErrInvalidCredentials
	}
	return uc.session(user)
}

func (uc *UseCase) session(user *domain.User) (*Session, error) {
	token, err := uc.tokens.Issue(user)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to issue token", err)
	}
	return &Session{User: *user, Token: token}, nil
}
