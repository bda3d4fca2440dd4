package storage

import (
	"context"
	"fmt"
	"time"

	"wall_go/models"
)

// AddBlacklist добавляет отправителя в чёрный список. Повторное добавление не является ошибкой.
func (q *Queries) AddBlacklist(ctx context.Context, e *models.BlacklistEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO blacklist (sender, account_group, reason, actor, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sender, account_group) DO NOTHING`,
		e.Sender, e.AccountGroup, e.Reason, e.Actor, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("add blacklist %s: %w", e.Sender, err)
	}
	return nil
}

// IsBlacklisted проверяет запись для группы и глобальную запись.
func (q *Queries) IsBlacklisted(ctx context.Context, sender, group string) (bool, error) {
	var n int
	err := q.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM blacklist
		WHERE sender = $1 AND (account_group = $2 OR account_group = '')`,
		sender, group,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check blacklist %s: %w", sender, err)
	}
	return n > 0, nil
}

func (q *Queries) RemoveBlacklist(ctx context.Context, sender, group string) (bool, error) {
	res, err := q.q.ExecContext(ctx, `DELETE FROM blacklist WHERE sender = $1 AND account_group = $2`, sender, group)
	if err != nil {
		return false, fmt.Errorf("remove blacklist %s: %w", sender, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListBlacklist возвращает записи группы вместе с глобальными.
func (q *Queries) ListBlacklist(ctx context.Context, group string) ([]*models.BlacklistEntry, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, sender, account_group, reason, actor, created_at
		FROM blacklist
		WHERE account_group = $1 OR account_group = ''
		ORDER BY id`, group)
	if err != nil {
		return nil, fmt.Errorf("list blacklist: %w", err)
	}
	defer rows.Close()

	var out []*models.BlacklistEntry
	for rows.Next() {
		var e models.BlacklistEntry
		if err := rows.Scan(&e.ID, &e.Sender, &e.AccountGroup, &e.Reason, &e.Actor, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan blacklist entry: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
