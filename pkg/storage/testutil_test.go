package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"wall_go/models"
)

// setupTestDB поднимает SQLite в памяти с рабочей схемой.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, DialectSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))
	t.Cleanup(func() { db.Close() })
	return db
}

func seedSubmission(t *testing.T, db *DB, id int64, group string, status models.SubmissionStatus) *models.Submission {
	t.Helper()
	s := &models.Submission{
		ID:           id,
		Sender:       "user-1",
		AccountGroup: group,
		Messages:     []models.RawMessage{{Ref: "m1", Text: "hello", ArrivedAt: time.Now().UTC()}},
		Text:         "hello",
		Status:       status,
	}
	require.NoError(t, db.InsertSubmission(context.Background(), s))
	return s
}
