package repository

import (
	"context"
	"database/sql"
	"errors"
)

// querier - общее у *sql.DB и *sql.Tx, чем пользуется хранилище
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// errSkipWrite откатывает транзакцию без ошибки для вызывающего
var errSkipWrite = errors.New("write skipped")

// inTx выполняет fn в транзакции хранилища. Коммит только при nil от fn,
// при ошибке или панике - откат, панику пробрасываем дальше.
func (s *SQLStorage) inTx(ctx context.Context, fn func(tx querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
