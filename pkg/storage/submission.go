package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wall_go/models"
)

const submissionColumns = `id, sender, account_group, messages, merged_text, media, is_anonymous, is_safe,
	is_complete, needs_rerender, artifact_ref, status, publish_number, comment, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var (
		s        models.Submission
		messages string
		media    string
		status   string
		number   sql.NullInt64
	)
	if err := row.Scan(
		&s.ID,
		&s.Sender,
		&s.AccountGroup,
		&messages,
		&s.Text,
		&media,
		&s.IsAnonymous,
		&s.IsSafe,
		&s.IsComplete,
		&s.NeedsRerender,
		&s.ArtifactRef,
		&status,
		&number,
		&s.Comment,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := decodeJSON(messages, &s.Messages); err != nil {
		return nil, err
	}
	if err := decodeJSON(media, &s.Media); err != nil {
		return nil, err
	}
	s.Status = models.SubmissionStatus(status)
	if number.Valid {
		n := number.Int64
		s.PublishNumber = &n
	}
	return &s, nil
}

// InsertSubmission сохраняет заявку с заранее зарезервированным ID.
func (q *Queries) InsertSubmission(ctx context.Context, s *models.Submission) error {
	messages, err := encodeJSON(s.Messages)
	if err != nil {
		return err
	}
	media, err := encodeJSON(s.Media)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	_, err = q.q.ExecContext(ctx, `
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		s.ID, s.Sender, s.AccountGroup, messages, s.Text, media,
		s.IsAnonymous, s.IsSafe, s.IsComplete, s.NeedsRerender, s.ArtifactRef,
		string(s.Status), nullableNumber(s.PublishNumber), s.Comment, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission %d: %w", s.ID, err)
	}
	return nil
}

// GetSubmission возвращает заявку или ошибку, оборачивающую models.ErrNotFound.
func (q *Queries) GetSubmission(ctx context.Context, id int64) (*models.Submission, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
	s, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("submission %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get submission %d: %w", id, err)
	}
	return s, nil
}

// UpdateSubmission записывает изменяемые поля заявки.
// Номер публикации, однажды записанный, не перезаписывается: COALESCE оставляет старое значение.
func (q *Queries) UpdateSubmission(ctx context.Context, s *models.Submission) error {
	media, err := encodeJSON(s.Media)
	if err != nil {
		return err
	}
	s.UpdatedAt = time.Now().UTC()
	res, err := q.q.ExecContext(ctx, `
		UPDATE submissions
		SET merged_text = $1, media = $2, is_anonymous = $3, is_safe = $4, is_complete = $5,
		    needs_rerender = $6, artifact_ref = $7, status = $8,
		    publish_number = COALESCE(publish_number, $9), comment = $10, updated_at = $11
		WHERE id = $12`,
		s.Text, media, s.IsAnonymous, s.IsSafe, s.IsComplete,
		s.NeedsRerender, s.ArtifactRef, string(s.Status),
		nullableNumber(s.PublishNumber), s.Comment, s.UpdatedAt,
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("update submission %d: %w", s.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("submission %d: %w", s.ID, models.ErrNotFound)
	}
	return nil
}

// SubmissionFilter ограничивает выборку ListSubmissions. Пустые поля не фильтруют.
type SubmissionFilter struct {
	AccountGroup string
	Status       models.SubmissionStatus
	Limit        int
}

func (q *Queries) ListSubmissions(ctx context.Context, f SubmissionFilter) ([]*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE 1 = 1`
	var args []any
	if f.AccountGroup != "" {
		args = append(args, f.AccountGroup)
		query += fmt.Sprintf(" AND account_group = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []*models.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullableNumber(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}
