// Package postgresql реализует storage.Store поверх таблицы documents в PostgreSQL.
// Записи хранятся как JSONB; многопутевое обновление выполняется в одной транзакции.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Xmananti/llb-case-tracker/internal/storage"
)

// Storage инкапсулирует соединение с PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New открывает соединение и проверяет его доступность.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.postgresql.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{DB: db}, nil
}

// CheckDatabaseReady проверяет, что миграции применены.
func CheckDatabaseReady(ctx context.Context, s *Storage) error {
	var exists bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'documents'
    )`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("required table documents query error: %w", err)
	}
	if !exists {
		return errors.New("required table documents missing")
	}
	return nil
}

// Get возвращает запись по пути collection/id.
func (s *Storage) Get(ctx context.Context, path string) (json.RawMessage, error) {
	const op = "storage.postgresql.Get"
	addr, err := recordAddress(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var data []byte
	err = s.DB.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		addr.Collection, addr.ID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return json.RawMessage(data), nil
}

// List возвращает записи коллекции в порядке вставки.
func (s *Storage) List(ctx context.Context, collection string) ([]storage.Node, error) {
	const op = "storage.postgresql.List"

	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection = $1 ORDER BY seq`, collection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := []storage.Node{}
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, storage.Node{Key: id, Value: json.RawMessage(data)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// Set записывает запись целиком.
func (s *Storage) Set(ctx context.Context, path string, value any) error {
	return s.Update(ctx, map[string]any{path: value})
}

// Remove удаляет запись; отсутствие записи не является ошибкой.
func (s *Storage) Remove(ctx context.Context, path string) error {
	const op = "storage.postgresql.Remove"
	addr, err := recordAddress(path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.DB.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, addr.Collection, addr.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Update применяет все пути в одной транзакции.
func (s *Storage) Update(ctx context.Context, updates map[string]any) error {
	const op = "storage.postgresql.Update"

	paths := make([]string, 0, len(updates))
	for p := range updates {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	for _, p := range paths {
		addr, err := storage.ParsePath(p)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		value, err := storage.Encode(updates[p])
		if err != nil {
			return fmt.Errorf("%s: %s: %w", op, p, err)
		}
		if err := apply(ctx, tx, addr, value); err != nil {
			return fmt.Errorf("%s: %s: %w", op, p, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func apply(ctx context.Context, tx *sql.Tx, addr storage.Address, value json.RawMessage) error {
	switch {
	case addr.Field == "" && value == nil:
		_, err := tx.ExecContext(ctx,
			`DELETE FROM documents WHERE collection = $1 AND id = $2`, addr.Collection, addr.ID)
		return err
	case addr.Field == "":
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
			ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
			addr.Collection, addr.ID, string(value))
		return err
	}

	var (
		res sql.Result
		err error
	)
	if value == nil {
		res, err = tx.ExecContext(ctx, `
			UPDATE documents SET data = data - $3::text, updated_at = now()
			WHERE collection = $1 AND id = $2`,
			addr.Collection, addr.ID, addr.Field)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE documents SET data = jsonb_set(data, ARRAY[$3::text], $4::jsonb, true), updated_at = now()
			WHERE collection = $1 AND id = $2`,
			addr.Collection, addr.ID, addr.Field, string(value))
	}
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Increment атомарно прибавляет delta к числовому полю; отсутствующее поле считается нулём.
func (s *Storage) Increment(ctx context.Context, path string, delta int) error {
	const op = "storage.postgresql.Increment"
	addr, err := storage.ParsePath(path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if addr.Field == "" {
		return fmt.Errorf("%s: %w: field path expected", op, storage.ErrInvalidPath)
	}

	res, err := s.DB.ExecContext(ctx, `
		UPDATE documents
		SET data = jsonb_set(data, ARRAY[$3::text], to_jsonb(COALESCE((data->>$3::text)::bigint, 0) + $4::bigint), true),
		    updated_at = now()
		WHERE collection = $1 AND id = $2`,
		addr.Collection, addr.ID, addr.Field, int64(delta))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := requireRow(res); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Ping проверяет соединение.
func (s *Storage) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func recordAddress(path string) (storage.Address, error) {
	addr, err := storage.ParsePath(path)
	if err != nil {
		return storage.Address{}, err
	}
	if addr.Field != "" {
		return storage.Address{}, fmt.Errorf("%w: record path expected, got %q", storage.ErrInvalidPath, path)
	}
	return addr, nil
}
