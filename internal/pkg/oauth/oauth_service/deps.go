package oauth_service

import (
	"context"

	"yadisk_bot/internal/pkg/user/domain"
)

// UserStore - то, что токен-менеджеру нужно от сервиса пользователей.
type UserStore interface {
	Load(ctx context.Context, userID int64) (*domain.User, error)
	Add(ctx context.Context, u *domain.User, patch domain.Attributes) error
	AddIf(ctx context.Context, u *domain.User, patch domain.Attributes, cond func(*domain.User) bool) (bool, error)
	All(ctx context.Context) ([]int64, error)
}
