package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wall_go/models"
)

// LoadAccountSession читает сохранённую сессию Telegram аккаунта.
// В таблице account_session не более одной записи на аккаунт.
func (q *Queries) LoadAccountSession(ctx context.Context, account string) (*models.AccountSession, error) {
	s := models.AccountSession{Account: account}
	err := q.q.QueryRowContext(ctx,
		`SELECT data_json, date_time FROM account_session WHERE account = $1`, account,
	).Scan(&s.DataJSON, &s.DateTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", account, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", account, err)
	}
	return &s, nil
}

// StoreAccountSession обновляет существующую запись, чтобы не плодить дубликаты.
func (q *Queries) StoreAccountSession(ctx context.Context, account string, data []byte) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO account_session (account, data_json, date_time) VALUES ($1, $2, $3)
		ON CONFLICT (account) DO UPDATE SET data_json = excluded.data_json, date_time = excluded.date_time`,
		account, string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("store session %s: %w", account, err)
	}
	return nil
}
