package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wall_go/models"
)

// UpsertRecord создаёт или обновляет запись доставки для пары (заявка, платформа).
func (q *Queries) UpsertRecord(ctx context.Context, r *models.PublishRecord) error {
	r.UpdatedAt = time.Now().UTC()
	err := q.q.QueryRowContext(ctx, `
		INSERT INTO publish_records (submission_id, platform, account, external_id, attempts, last_error, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (submission_id, platform) DO UPDATE SET
			account = excluded.account,
			external_id = excluded.external_id,
			attempts = excluded.attempts,
			last_error = excluded.last_error,
			status = excluded.status,
			updated_at = excluded.updated_at
		RETURNING id`,
		r.SubmissionID, r.Platform, r.Account, r.ExternalID, r.Attempts, r.LastError, string(r.Status), r.UpdatedAt,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("upsert publish record %d/%s: %w", r.SubmissionID, r.Platform, err)
	}
	return nil
}

func (q *Queries) GetRecord(ctx context.Context, submissionID int64, platform string) (*models.PublishRecord, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT id, submission_id, platform, account, external_id, attempts, last_error, status, updated_at
		FROM publish_records WHERE submission_id = $1 AND platform = $2`, submissionID, platform)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("publish record %d/%s: %w", submissionID, platform, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get publish record: %w", err)
	}
	return r, nil
}

// ListRecords возвращает записи доставки заявки, индексированные по платформе.
func (q *Queries) ListRecords(ctx context.Context, submissionID int64) (map[string]*models.PublishRecord, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, submission_id, platform, account, external_id, attempts, last_error, status, updated_at
		FROM publish_records WHERE submission_id = $1`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("list publish records: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*models.PublishRecord)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan publish record: %w", err)
		}
		out[r.Platform] = r
	}
	return out, rows.Err()
}

func scanRecord(row rowScanner) (*models.PublishRecord, error) {
	var (
		r      models.PublishRecord
		status string
	)
	if err := row.Scan(&r.ID, &r.SubmissionID, &r.Platform, &r.Account, &r.ExternalID, &r.Attempts, &r.LastError, &status, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = models.RecordStatus(status)
	return &r, nil
}
