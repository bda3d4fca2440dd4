package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wall_go/models"
)

// InsertStoredPost ставит одобренную заявку в очередь публикации.
func (q *Queries) InsertStoredPost(ctx context.Context, p *models.StoredPost) error {
	if p.EnqueuedAt.IsZero() {
		p.EnqueuedAt = time.Now().UTC()
	}
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO stored_posts (submission_id, account_group, enqueued_at, dispatched)
		VALUES ($1, $2, $3, $4)`,
		p.SubmissionID, p.AccountGroup, p.EnqueuedAt, p.Dispatched,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("stored post %d already queued: %w", p.SubmissionID, models.ErrInvalidTransition)
	}
	if err != nil {
		return fmt.Errorf("insert stored post %d: %w", p.SubmissionID, err)
	}
	return nil
}

func (q *Queries) GetStoredPost(ctx context.Context, submissionID int64) (*models.StoredPost, error) {
	var p models.StoredPost
	err := q.q.QueryRowContext(ctx, `
		SELECT submission_id, account_group, enqueued_at, dispatched
		FROM stored_posts WHERE submission_id = $1`, submissionID,
	).Scan(&p.SubmissionID, &p.AccountGroup, &p.EnqueuedAt, &p.Dispatched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("stored post %d: %w", submissionID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get stored post %d: %w", submissionID, err)
	}
	return &p, nil
}

// ListStoredPosts возвращает очередь группы в порядке номеров публикации.
func (q *Queries) ListStoredPosts(ctx context.Context, group string) ([]*models.StoredPost, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT p.submission_id, p.account_group, p.enqueued_at, p.dispatched
		FROM stored_posts p
		JOIN submissions s ON s.id = p.submission_id
		WHERE p.account_group = $1
		ORDER BY s.publish_number, p.submission_id`, group)
	if err != nil {
		return nil, fmt.Errorf("list stored posts: %w", err)
	}
	defer rows.Close()

	var out []*models.StoredPost
	for rows.Next() {
		var p models.StoredPost
		if err := rows.Scan(&p.SubmissionID, &p.AccountGroup, &p.EnqueuedAt, &p.Dispatched); err != nil {
			return nil, fmt.Errorf("scan stored post: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (q *Queries) CountStoredPosts(ctx context.Context, group string) (int, error) {
	var n int
	if err := q.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM stored_posts WHERE account_group = $1`, group).Scan(&n); err != nil {
		return 0, fmt.Errorf("count stored posts: %w", err)
	}
	return n, nil
}

func (q *Queries) MarkDispatched(ctx context.Context, submissionID int64) error {
	if _, err := q.q.ExecContext(ctx, `UPDATE stored_posts SET dispatched = $1 WHERE submission_id = $2`, true, submissionID); err != nil {
		return fmt.Errorf("mark stored post %d dispatched: %w", submissionID, err)
	}
	return nil
}

// DeleteStoredPost убирает пост из очереди. Возвращает false, если его там не было.
func (q *Queries) DeleteStoredPost(ctx context.Context, submissionID int64) (bool, error) {
	res, err := q.q.ExecContext(ctx, `DELETE FROM stored_posts WHERE submission_id = $1`, submissionID)
	if err != nil {
		return false, fmt.Errorf("delete stored post %d: %w", submissionID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ClearStoredPosts очищает очередь группы без публикации.
func (q *Queries) ClearStoredPosts(ctx context.Context, group string) (int64, error) {
	res, err := q.q.ExecContext(ctx, `DELETE FROM stored_posts WHERE account_group = $1`, group)
	if err != nil {
		return 0, fmt.Errorf("clear stored posts of %s: %w", group, err)
	}
	return res.RowsAffected()
}
