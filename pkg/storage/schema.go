package storage

import (
	"context"
	"fmt"
	"strings"
)

// Счётчики последовательностей. Значения никогда не уменьшаются.
const (
	CounterSubmissionID  = "submission_id"
	CounterPublishNumber = "publish_number"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS counters (
	name  TEXT PRIMARY KEY,
	value BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS submissions (
	id             BIGINT PRIMARY KEY,
	sender         TEXT NOT NULL,
	account_group  TEXT NOT NULL,
	messages       TEXT NOT NULL DEFAULT '[]',
	merged_text    TEXT NOT NULL DEFAULT '',
	media          TEXT NOT NULL DEFAULT '[]',
	is_anonymous   BOOLEAN NOT NULL DEFAULT FALSE,
	is_safe        BOOLEAN NOT NULL DEFAULT FALSE,
	is_complete    BOOLEAN NOT NULL DEFAULT FALSE,
	needs_rerender BOOLEAN NOT NULL DEFAULT FALSE,
	artifact_ref   TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	publish_number BIGINT UNIQUE,
	comment        TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS submissions_group_status ON submissions (account_group, status);

CREATE TABLE IF NOT EXISTS message_cache (
	id            BIGSERIAL PRIMARY KEY,
	window_id     BIGINT NOT NULL,
	sender        TEXT NOT NULL,
	account_group TEXT NOT NULL,
	message_ref   TEXT NOT NULL DEFAULT '',
	text          TEXT NOT NULL DEFAULT '',
	media         TEXT NOT NULL DEFAULT '[]',
	arrived_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS message_cache_window ON message_cache (window_id);

CREATE TABLE IF NOT EXISTS audit_log (
	id            BIGSERIAL PRIMARY KEY,
	submission_id BIGINT NOT NULL,
	account_group TEXT NOT NULL,
	actor         TEXT NOT NULL,
	command       TEXT NOT NULL,
	args          TEXT NOT NULL DEFAULT '',
	outcome       TEXT NOT NULL,
	detail        TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_log_submission ON audit_log (submission_id);

CREATE TABLE IF NOT EXISTS blacklist (
	id            BIGSERIAL PRIMARY KEY,
	sender        TEXT NOT NULL,
	account_group TEXT NOT NULL DEFAULT '',
	reason        TEXT NOT NULL DEFAULT '',
	actor         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	UNIQUE (sender, account_group)
);

CREATE TABLE IF NOT EXISTS stored_posts (
	submission_id BIGINT PRIMARY KEY,
	account_group TEXT NOT NULL,
	enqueued_at   TIMESTAMPTZ NOT NULL,
	dispatched    BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS stored_posts_group ON stored_posts (account_group);

CREATE TABLE IF NOT EXISTS publish_records (
	id            BIGSERIAL PRIMARY KEY,
	submission_id BIGINT NOT NULL,
	platform      TEXT NOT NULL,
	account       TEXT NOT NULL DEFAULT '',
	external_id   TEXT NOT NULL DEFAULT '',
	attempts      INTEGER NOT NULL DEFAULT 0,
	last_error    TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	UNIQUE (submission_id, platform)
);

CREATE TABLE IF NOT EXISTS account_session (
	account   TEXT PRIMARY KEY,
	data_json TEXT NOT NULL,
	date_time TIMESTAMPTZ NOT NULL
);

INSERT INTO counters (name, value) VALUES ('submission_id', 0), ('publish_number', 0)
ON CONFLICT (name) DO NOTHING;
`

// SchemaSQL возвращает схему для выбранного диалекта.
// SQLite отличается только автоинкрементом и типом времени.
func SchemaSQL(dialect string) string {
	if dialect == DialectSQLite {
		return strings.NewReplacer(
			"BIGSERIAL PRIMARY KEY", "INTEGER PRIMARY KEY AUTOINCREMENT",
			"TIMESTAMPTZ", "TIMESTAMP",
		).Replace(postgresSchema)
	}
	return postgresSchema
}

// Migrate создаёт недостающие таблицы. Повторный запуск безопасен.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Conn.ExecContext(ctx, SchemaSQL(db.Dialect)); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// NextCounter атомарно увеличивает счётчик и возвращает новое значение.
func (q *Queries) NextCounter(ctx context.Context, name string) (int64, error) {
	var v int64
	err := q.q.QueryRowContext(ctx,
		`UPDATE counters SET value = value + 1 WHERE name = $1 RETURNING value`, name,
	).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("next counter %s: %w", name, err)
	}
	return v, nil
}
