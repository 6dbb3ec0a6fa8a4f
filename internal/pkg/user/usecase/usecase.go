package usecase

import (
	"context"
	"fmt"

	"yadisk_bot/internal/pkg/apperr"
	"yadisk_bot/internal/pkg/user/domain"
	"yadisk_bot/internal/pkg/user/repository"
)

// UserService загружает пользователей и сохраняет изменения их атрибутов.
type UserService struct {
	store repository.Store
}

func NewUserService(store repository.Store) *UserService {
	return &UserService{store: store}
}

// Load никогда не создает запись: неизвестный пользователь получает пустой набор атрибутов.
func (s *UserService) Load(ctx context.Context, userID int64) (*domain.User, error) {
	attrs, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: load user %d: %v", apperr.ErrStore, userID, err)
	}
	return domain.NewUser(userID, attrs), nil
}

// Add сохраняет patch и обновляет атрибуты u итоговым набором из хранилища.
func (s *UserService) Add(ctx context.Context, u *domain.User, patch domain.Attributes) error {
	merged, err := s.store.AddAttributes(ctx, u.ID, patch)
	if err != nil {
		return fmt.Errorf("%w: save user %d: %v", apperr.ErrStore, u.ID, err)
	}
	u.Attrs = merged
	return nil
}

// AddIf сохраняет patch, только если cond одобрил сохраненный набор. В обоих случаях
// атрибуты u заменяются тем, что лежит в хранилище.
func (s *UserService) AddIf(ctx context.Context, u *domain.User, patch domain.Attributes, cond func(*domain.User) bool) (bool, error) {
	attrs, applied, err := s.store.AddAttributesIf(ctx, u.ID, patch, func(current domain.Attributes) bool {
		return cond(domain.NewUser(u.ID, current))
	})
	if err != nil {
		return false, fmt.Errorf("%w: save user %d: %v", apperr.ErrStore, u.ID, err)
	}
	u.Attrs = attrs
	return applied, nil
}

func (s *UserService) All(ctx context.Context) ([]int64, error) {
	ids, err := s.store.AllIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %v", apperr.ErrStore, err)
	}
	return ids, nil
}
