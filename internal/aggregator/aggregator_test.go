package aggregator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wall_go/internal/blacklist"
	"wall_go/internal/config"
	"wall_go/internal/platform"
	"wall_go/internal/worker"
	"wall_go/models"
	"wall_go/pkg/storage"
)

type harness struct {
	agg   *Aggregator
	db    *storage.DB
	guard *blacklist.Guard

	mu     sync.Mutex
	closed []*models.Submission
}

func newHarness(t *testing.T, window time.Duration) *harness {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(ctx, storage.DialectSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))
	t.Cleanup(func() { db.Close() })

	cfg, err := config.New(config.Config{Groups: []config.GroupConfig{{Name: "main", AggregationWindow: window}}})
	require.NoError(t, err)

	guard, err := blacklist.New(db, zap.NewNop())
	require.NoError(t, err)
	pool := worker.NewPool(zap.NewNop())
	t.Cleanup(pool.StopAll)

	h := &harness{db: db, guard: guard}
	h.agg = New(db, guard, pool, config.StaticStore(cfg), zap.NewNop())
	h.agg.OnClose(func(_ context.Context, s *models.Submission) {
		h.mu.Lock()
		h.closed = append(h.closed, s)
		h.mu.Unlock()
	})
	return h
}

func (h *harness) created() []*models.Submission {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*models.Submission(nil), h.closed...)
}

func msg(sender, ref, text string, at time.Time) platform.InboundMessage {
	return platform.InboundMessage{Group: "main", Sender: sender, Ref: ref, Text: text, ArrivedAt: at}
}

func TestMergeHelloWorld(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()
	t0 := time.Now().UTC()

	st, err := h.agg.Admit(ctx, msg("u1", "1", "hello", t0))
	require.NoError(t, err)
	_, err = h.agg.Admit(ctx, msg("u1", "2", "world", t0.Add(time.Second)))
	require.NoError(t, err)

	require.NoError(t, h.agg.ForceClose(ctx, "main", st.WindowID))

	created := h.created()
	require.Len(t, created, 1)
	assert.Equal(t, "hello world", created[0].Text)
	assert.Equal(t, st.WindowID, created[0].ID)

	stored, err := h.db.GetSubmission(ctx, st.WindowID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Len(t, stored.Messages, 2)

	open, err := h.db.ListOpenWindows(ctx)
	require.NoError(t, err)
	assert.Empty(t, open, "кэш окна очищен")
}

func TestOneWindowPerSender(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()
	t0 := time.Now().UTC()

	a, err := h.agg.Admit(ctx, msg("u1", "1", "a", t0))
	require.NoError(t, err)
	b, err := h.agg.Admit(ctx, msg("u1", "2", "b", t0.Add(time.Second)))
	require.NoError(t, err)
	c, err := h.agg.Admit(ctx, msg("u2", "3", "c", t0))
	require.NoError(t, err)

	assert.Equal(t, a.WindowID, b.WindowID)
	assert.Equal(t, 2, b.Messages)
	assert.NotEqual(t, a.WindowID, c.WindowID)
	assert.Equal(t, 2, h.agg.OpenWindows("main"))
}

func TestRetractRemovesMessage(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()
	t0 := time.Now().UTC()

	st, err := h.agg.Admit(ctx, msg("u1", "1", "first", t0))
	require.NoError(t, err)
	_, err = h.agg.Admit(ctx, msg("u1", "2", "second", t0.Add(time.Second)))
	require.NoError(t, err)

	require.NoError(t, h.agg.Retract(ctx, platform.Retraction{Group: "main", Sender: "u1", Ref: "1"}))
	require.NoError(t, h.agg.ForceClose(ctx, "main", st.WindowID))

	created := h.created()
	require.Len(t, created, 1)
	assert.Equal(t, "second", created[0].Text)

	// после закрытия отзыв ничего не меняет
	require.NoError(t, h.agg.Retract(ctx, platform.Retraction{Group: "main", Sender: "u1", Ref: "2"}))
	stored, err := h.db.GetSubmission(ctx, st.WindowID)
	require.NoError(t, err)
	assert.Equal(t, "second", stored.Text)
}

func TestFullyRetractedWindowIsDiscarded(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()

	st, err := h.agg.Admit(ctx, msg("u1", "1", "oops", time.Now().UTC()))
	require.NoError(t, err)
	require.NoError(t, h.agg.Retract(ctx, platform.Retraction{Group: "main", Sender: "u1", Ref: "1"}))
	require.NoError(t, h.agg.ForceClose(ctx, "main", st.WindowID))

	assert.Empty(t, h.created())
	_, err = h.db.GetSubmission(ctx, st.WindowID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestTimerClosesWindow(t *testing.T) {
	h := newHarness(t, 30*time.Millisecond)
	ctx := context.Background()

	_, err := h.agg.Admit(ctx, msg("u1", "1", "tick", time.Now().UTC()))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(h.created()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, h.agg.OpenWindows("main"))
}

func TestBlacklistedSenderRejected(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, h.guard.Add(ctx, &models.BlacklistEntry{Sender: "bad", AccountGroup: "main"}))
	_, err := h.agg.Admit(ctx, msg("bad", "1", "hi", time.Now().UTC()))
	assert.ErrorIs(t, err, models.ErrBlacklisted)
	assert.Equal(t, 0, h.agg.OpenWindows("main"))
}

func TestForceCloseUnknownWindow(t *testing.T) {
	h := newHarness(t, time.Hour)
	err := h.agg.ForceClose(context.Background(), "main", 999)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestUnknownGroup(t *testing.T) {
	h := newHarness(t, time.Hour)
	_, err := h.agg.Admit(context.Background(), platform.InboundMessage{Group: "nope", Sender: "u1", Text: "x"})
	assert.Error(t, err)
}

func TestRecoverRestoresWindows(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()
	t0 := time.Now().UTC()

	id, err := h.db.NextCounter(ctx, storage.CounterSubmissionID)
	require.NoError(t, err)
	for i, text := range []string{"до", "рестарта"} {
		require.NoError(t, h.db.InsertCacheEntry(ctx, &models.MessageCacheEntry{
			WindowID: id, Sender: "u1", AccountGroup: "main", MessageRef: text, Text: text,
			ArrivedAt: t0.Add(time.Duration(i) * time.Second),
		}))
	}

	n, err := h.agg.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, h.agg.HasWindow(id))

	st, err := h.agg.Admit(ctx, msg("u1", "3", "после", t0.Add(2*time.Second)))
	require.NoError(t, err)
	assert.Equal(t, id, st.WindowID, "новое сообщение продлевает восстановленное окно")
	assert.Equal(t, 3, st.Messages)

	require.NoError(t, h.agg.ForceClose(ctx, "main", id))
	created := h.created()
	require.Len(t, created, 1)
	assert.Equal(t, "до рестарта после", created[0].Text)
}

func TestFailedCloseKeepsWindowOpen(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()
	t0 := time.Now().UTC()

	st, err := h.agg.Admit(ctx, msg("u1", "1", "первое", t0))
	require.NoError(t, err)
	// заявка с тем же ID уже есть, вставка при закрытии упадёт
	require.NoError(t, h.db.InsertSubmission(ctx, &models.Submission{
		ID: st.WindowID, Sender: "other", AccountGroup: "main", Status: models.StatusPending, CreatedAt: t0,
	}))

	require.Error(t, h.agg.ForceClose(ctx, "main", st.WindowID))
	assert.Empty(t, h.created())
	assert.True(t, h.agg.HasWindow(st.WindowID))
	assert.Equal(t, 1, h.agg.OpenWindows("main"))

	next, err := h.agg.Admit(ctx, msg("u1", "2", "второе", t0.Add(time.Second)))
	require.NoError(t, err)
	assert.Equal(t, st.WindowID, next.WindowID, "сообщение попадает в то же окно")
	assert.Equal(t, 2, next.Messages)

	entries, err := h.db.ListWindowEntries(ctx, st.WindowID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRecoverMergesWindowsOfOneSender(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()
	t0 := time.Now().UTC()

	var ids []int64
	for i, text := range []string{"старое", "новое"} {
		id, err := h.db.NextCounter(ctx, storage.CounterSubmissionID)
		require.NoError(t, err)
		ids = append(ids, id)
		require.NoError(t, h.db.InsertCacheEntry(ctx, &models.MessageCacheEntry{
			WindowID: id, Sender: "u1", AccountGroup: "main", MessageRef: text, Text: text,
			ArrivedAt: t0.Add(time.Duration(i) * time.Second),
		}))
	}

	n, err := h.agg.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, h.agg.OpenWindows("main"))
	assert.True(t, h.agg.HasWindow(ids[0]))
	assert.False(t, h.agg.HasWindow(ids[1]))

	require.NoError(t, h.agg.ForceClose(ctx, "main", ids[0]))
	created := h.created()
	require.Len(t, created, 1)
	assert.Equal(t, "старое новое", created[0].Text)

	left, err := h.db.ListOpenWindows(ctx)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestMergeKeepsArrivalOrderAndMedia(t *testing.T) {
	t0 := time.Now()
	s := Merge([]*models.MessageCacheEntry{
		{Text: "b", Media: []string{"2.jpg"}, ArrivedAt: t0.Add(time.Second)},
		{Text: "a", Media: []string{"1.jpg"}, ArrivedAt: t0},
		{Text: "", Media: []string{"3.jpg"}, ArrivedAt: t0.Add(2 * time.Second)},
	})
	assert.Equal(t, "a b", s.Text)
	assert.Equal(t, []string{"1.jpg", "2.jpg", "3.jpg"}, s.Media)
	assert.Len(t, s.Messages, 3)
}
