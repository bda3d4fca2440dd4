package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Поддерживаемые драйверы БД.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

// querier: общее подмножество *sql.DB и *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries содержит все запросы к таблицам. Работает и поверх соединения, и внутри транзакции.
// Плейсхолдеры $N всегда идут по возрастанию: go-sqlite3 привязывает их по порядку появления.
type Queries struct {
	q querier
}

type DB struct {
	*Queries
	Conn    *sql.DB
	Dialect string
}

func NewDB(conn *sql.DB, dialect string) *DB {
	return &DB{Queries: &Queries{q: conn}, Conn: conn, Dialect: dialect}
}

// Open подключается к БД и проверяет соединение.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	switch driver {
	case DialectPostgres, DialectSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DialectSQLite {
		// SQLite допускает одного писателя; для :memory: второе соединение увидело бы пустую БД.
		conn.SetMaxOpenConns(1)
		if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return NewDB(conn, driver), nil
}

func (db *DB) Close() error {
	return db.Conn.Close()
}

// WithTx выполняет fn в транзакции. Внутри fn можно пользоваться только переданными Queries.
func (db *DB) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := db.Conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&Queries{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// isUniqueViolation распознаёт нарушение уникальности для обоих драйверов.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
