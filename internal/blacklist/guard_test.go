package blacklist

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wall_go/models"
	"wall_go/pkg/storage"
)

func newGuard(t *testing.T) *Guard {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(ctx, storage.DialectSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))
	t.Cleanup(func() { db.Close() })

	g, err := New(db, zap.NewNop())
	require.NoError(t, err)
	return g
}

func TestCheckSeesNewEntries(t *testing.T) {
	g := newGuard(t)
	ctx := context.Background()

	require.NoError(t, g.Check(ctx, "u1", "main"), "пустой список")

	require.NoError(t, g.Add(ctx, &models.BlacklistEntry{Sender: "u1", AccountGroup: "main"}))
	assert.ErrorIs(t, g.Check(ctx, "u1", "main"), models.ErrBlacklisted)
	assert.NoError(t, g.Check(ctx, "u1", "other"))
}

func TestGlobalEntryBlocksEveryGroup(t *testing.T) {
	g := newGuard(t)
	ctx := context.Background()

	require.NoError(t, g.Check(ctx, "u2", "other"))
	require.NoError(t, g.Add(ctx, &models.BlacklistEntry{Sender: "u2", AccountGroup: models.GlobalGroup}))
	assert.ErrorIs(t, g.Check(ctx, "u2", "other"), models.ErrBlacklisted)

	removed, err := g.Remove(ctx, "u2", models.GlobalGroup)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.NoError(t, g.Check(ctx, "u2", "other"))
}

func TestConcurrentCheckDoesNotCacheStaleAnswer(t *testing.T) {
	g := newGuard(t)
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		sender := fmt.Sprintf("s%d", i)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = g.Check(ctx, sender, "main")
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, g.Add(ctx, &models.BlacklistEntry{Sender: sender, AccountGroup: "main"}))
		}()
		wg.Wait()
		require.ErrorIs(t, g.Check(ctx, sender, "main"), models.ErrBlacklisted, "sender %s", sender)
	}
}
