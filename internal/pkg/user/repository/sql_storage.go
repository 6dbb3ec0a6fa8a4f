package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"yadisk_bot/internal/pkg/user/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Dialect описывает различия драйверов, которые важны хранилищу.
type Dialect struct {
	Name       string
	driver     string
	lockClause string
	goose      goose.Dialect
}

var (
	Postgres = Dialect{Name: "postgres", driver: "postgres", lockClause: " FOR UPDATE", goose: goose.DialectPostgres}
	// SQLite сериализует запись через единственное соединение, блокировка строк не нужна
	SQLite = Dialect{Name: "sqlite", driver: "sqlite", goose: goose.DialectSQLite3}
)

func DialectByName(name string) (Dialect, error) {
	switch name {
	case Postgres.Name:
		return Postgres, nil
	case SQLite.Name:
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", name)
	}
}

// Open открывает соединение и накатывает миграции.
func Open(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(dialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if dialect.Name == SQLite.Name {
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
			db.Close()
			return nil, fmt.Errorf("db pragma error: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if err := Migrate(ctx, db, dialect); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	provider, err := goose.NewProvider(dialect.goose, db, fsys)
	if err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	log.Info().Str("dialect", dialect.Name).Int("applied", len(results)).Msg("migrations done")
	return nil
}

type SQLStorage struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLStorage(db *sql.DB, dialect Dialect) *SQLStorage {
	return &SQLStorage{db: db, dialect: dialect}
}

func recordKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func (s *SQLStorage) Get(ctx context.Context, userID int64) (domain.Attributes, error) {
	return s.selectAttrs(ctx, s.db, userID, "")
}

func (s *SQLStorage) Put(ctx context.Context, userID int64, attrs domain.Attributes) error {
	if attrs == nil {
		attrs = domain.Attributes{}
	}
	raw, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	return s.inTx(ctx, func(tx querier) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO records (record_key, attrs)
			VALUES ($1, $2)
			ON CONFLICT (record_key) DO UPDATE
			SET attrs = excluded.attrs, updated_at = CURRENT_TIMESTAMP
		`, recordKey(userID), string(raw))
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return s.addToIndex(ctx, tx, userID)
	})
}

func (s *SQLStorage) AddAttributes(ctx context.Context, userID int64, patch domain.Attributes) (domain.Attributes, error) {
	merged, _, err := s.AddAttributesIf(ctx, userID, patch, nil)
	return merged, err
}

// AddAttributesIf - AddAttributes, который пишет только если cond одобрил набор,
// прочитанный под блокировкой. Если cond отказал, транзакция откатывается,
// а вызывающий получает текущий набор и applied=false.
func (s *SQLStorage) AddAttributesIf(ctx context.Context, userID int64, patch domain.Attributes, cond func(domain.Attributes) bool) (domain.Attributes, bool, error) {
	var result domain.Attributes

	err := s.inTx(ctx, func(tx querier) error {
		// строка должна существовать до блокировки, иначе два первых писателя не увидят друг друга
		_, err := tx.ExecContext(ctx, `
			INSERT INTO records (record_key, attrs)
			VALUES ($1, '{}')
			ON CONFLICT (record_key) DO NOTHING
		`, recordKey(userID))
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		current, err := s.selectAttrs(ctx, tx, userID, s.dialect.lockClause)
		if err != nil {
			return err
		}
		if cond != nil && !cond(current) {
			result = current
			return errSkipWrite
		}

		result = current.Merge(patch)
		raw, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE records
			SET attrs = $2, updated_at = CURRENT_TIMESTAMP
			WHERE record_key = $1
		`, recordKey(userID), string(raw))
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		return s.addToIndex(ctx, tx, userID)
	})
	if errors.Is(err, errSkipWrite) {
		return result, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return result, true, nil
}

func (s *SQLStorage) AllIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM user_index ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ids, nil
}

func (s *SQLStorage) selectAttrs(ctx context.Context, db querier, userID int64, suffix string) (domain.Attributes, error) {
	var raw string
	err := db.QueryRowContext(ctx, `SELECT attrs FROM records WHERE record_key = $1`+suffix, recordKey(userID)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attributes{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	attrs := domain.Attributes{}
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return nil, fmt.Errorf("corrupt record %s: %w", recordKey(userID), err)
	}
	if attrs == nil {
		attrs = domain.Attributes{}
	}
	return attrs, nil
}

func (s *SQLStorage) addToIndex(ctx context.Context, tx querier, userID int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO user_index (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
