package storage

import (
	"context"
	"fmt"

	"wall_go/models"
)

// InsertCacheEntry буферизует сообщение открытого окна.
func (q *Queries) InsertCacheEntry(ctx context.Context, e *models.MessageCacheEntry) error {
	media, err := encodeJSON(e.Media)
	if err != nil {
		return err
	}
	err = q.q.QueryRowContext(ctx, `
		INSERT INTO message_cache (window_id, sender, account_group, message_ref, text, media, arrived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		e.WindowID, e.Sender, e.AccountGroup, e.MessageRef, e.Text, media, e.ArrivedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert cache entry for window %d: %w", e.WindowID, err)
	}
	return nil
}

// ListWindowEntries возвращает сообщения окна в порядке поступления.
func (q *Queries) ListWindowEntries(ctx context.Context, windowID int64) ([]*models.MessageCacheEntry, error) {
	return q.listCache(ctx, `WHERE window_id = $1`, windowID)
}

// ListOpenWindows возвращает все буферизованные сообщения; используется при восстановлении после рестарта.
func (q *Queries) ListOpenWindows(ctx context.Context) ([]*models.MessageCacheEntry, error) {
	return q.listCache(ctx, ``)
}

func (q *Queries) listCache(ctx context.Context, where string, args ...any) ([]*models.MessageCacheEntry, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, window_id, sender, account_group, message_ref, text, media, arrived_at
		FROM message_cache `+where+`
		ORDER BY window_id, arrived_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list message cache: %w", err)
	}
	defer rows.Close()

	var out []*models.MessageCacheEntry
	for rows.Next() {
		var (
			e     models.MessageCacheEntry
			media string
		)
		if err := rows.Scan(&e.ID, &e.WindowID, &e.Sender, &e.AccountGroup, &e.MessageRef, &e.Text, &media, &e.ArrivedAt); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		if err := decodeJSON(media, &e.Media); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// DeleteWindow удаляет все сообщения окна после его закрытия.
func (q *Queries) DeleteWindow(ctx context.Context, windowID int64) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM message_cache WHERE window_id = $1`, windowID); err != nil {
		return fmt.Errorf("delete window %d: %w", windowID, err)
	}
	return nil
}

// MoveWindowEntries переносит сообщения окна from в окно to.
func (q *Queries) MoveWindowEntries(ctx context.Context, from, to int64) error {
	if _, err := q.q.ExecContext(ctx, `UPDATE message_cache SET window_id = $1 WHERE window_id = $2`, to, from); err != nil {
		return fmt.Errorf("move window %d into %d: %w", from, to, err)
	}
	return nil
}

// DeleteCacheEntryByRef удаляет отозванное сообщение. Возвращает false, если его уже нет.
func (q *Queries) DeleteCacheEntryByRef(ctx context.Context, windowID int64, ref string) (bool, error) {
	res, err := q.q.ExecContext(ctx,
		`DELETE FROM message_cache WHERE window_id = $1 AND message_ref = $2`, windowID, ref)
	if err != nil {
		return false, fmt.Errorf("delete cache entry %s: %w", ref, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
