package storage

import (
	"context"
	"fmt"
	"time"

	"wall_go/models"
)

// AppendAudit добавляет запись в журнал. Изменения и удаления журнала не предусмотрены.
func (q *Queries) AppendAudit(ctx context.Context, e *models.AuditLogEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	err := q.q.QueryRowContext(ctx, `
		INSERT INTO audit_log (submission_id, account_group, actor, command, args, outcome, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		e.SubmissionID, e.AccountGroup, e.Actor, e.Command, e.Args, e.Outcome, e.Detail, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListAudit возвращает историю действий по заявке в хронологическом порядке.
func (q *Queries) ListAudit(ctx context.Context, submissionID int64) ([]*models.AuditLogEntry, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, submission_id, account_group, actor, command, args, outcome, detail, created_at
		FROM audit_log
		WHERE submission_id = $1
		ORDER BY id`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var out []*models.AuditLogEntry
	for rows.Next() {
		var e models.AuditLogEntry
		if err := rows.Scan(&e.ID, &e.SubmissionID, &e.AccountGroup, &e.Actor, &e.Command, &e.Args, &e.Outcome, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
