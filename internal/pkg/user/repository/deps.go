package repository

import (
	"context"

	"yadisk_bot/internal/pkg/user/domain"
)

// Store - долговременное хранилище атрибутов пользователей и индекса всех пользователей.
type Store interface {
	// Get возвращает пустой набор, если записи нет.
	Get(ctx context.Context, userID int64) (domain.Attributes, error)
	// Put перезаписывает набор и добавляет пользователя в индекс в одной транзакции.
	Put(ctx context.Context, userID int64, attrs domain.Attributes) error
	// AddAttributes сливает patch с сохраненным набором и добавляет пользователя в индекс
	// в одной транзакции. Возвращает итоговый набор.
	AddAttributes(ctx context.Context, userID int64, patch domain.Attributes) (domain.Attributes, error)
	// AddAttributesIf проверяет cond на сохраненном наборе в той же транзакции.
	// При отказе ничего не пишет и возвращает текущий набор с applied=false.
	AddAttributesIf(ctx context.Context, userID int64, patch domain.Attributes, cond func(domain.Attributes) bool) (attrs domain.Attributes, applied bool, err error)
	// AllIDs - снимок индекса, по возрастанию.
	AllIDs(ctx context.Context) ([]int64, error)
}
