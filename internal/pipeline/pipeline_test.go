package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wall_go/internal/config"
	"wall_go/internal/platform"
	"wall_go/internal/worker"
	"wall_go/models"
	"wall_go/pkg/storage"
)

type fakeClassifier struct {
	mu      sync.Mutex
	calls   int
	verdict *platform.Classification
	err     error

	// если задано, Classify сообщает в entered и ждёт release
	entered chan struct{}
	release chan struct{}
}

func (f *fakeClassifier) Classify(context.Context, string, []string) (*platform.Classification, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.verdict, f.err
}

type fakeRenderer struct {
	mu  sync.Mutex
	err error
}

func (f *fakeRenderer) Render(_ context.Context, s *models.Submission) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return "art://" + s.Text, nil
}

func (f *fakeRenderer) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeNotifier) NotifyModerators(_ context.Context, _, text string) error {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeNotifier) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type harness struct {
	p          *Pipeline
	db         *storage.DB
	classifier *fakeClassifier
	renderer   *fakeRenderer
	notifier   *fakeNotifier
}

func newHarness(t *testing.T, pc config.PipelineConfig) *harness {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(ctx, storage.DialectSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))
	t.Cleanup(func() { db.Close() })

	cfg, err := config.New(config.Config{Pipeline: pc, Groups: []config.GroupConfig{{Name: "main"}}})
	require.NoError(t, err)
	store := config.StaticStore(cfg)
	pool := worker.NewPool(zap.NewNop())
	t.Cleanup(pool.StopAll)

	h := &harness{
		db:         db,
		classifier: &fakeClassifier{verdict: &platform.Classification{IsSafe: true, IsComplete: true}},
		renderer:   &fakeRenderer{},
		notifier:   &fakeNotifier{},
	}
	h.p = New(ctx, Options{
		DB:         db,
		Workers:    pool,
		Config:     store,
		Classifier: h.classifier,
		Notifier:   h.notifier,
		Stages:     DefaultStages(store, h.renderer),
		Logger:     zap.NewNop(),
	})
	return h
}

func (h *harness) insert(t *testing.T, id int64, text string) *models.Submission {
	t.Helper()
	s := &models.Submission{ID: id, Sender: "u1", AccountGroup: "main", Text: text, Status: models.StatusPending, CreatedAt: time.Now().UTC()}
	require.NoError(t, h.db.InsertSubmission(context.Background(), s))
	return s
}

func TestProcessHappyPath(t *testing.T) {
	h := newHarness(t, config.PipelineConfig{})
	s := h.insert(t, 1, "анонимно: спасибо столовой")

	require.NoError(t, h.p.Process(context.Background(), s))

	got, err := h.db.GetSubmission(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingAudit, got.Status)
	assert.True(t, got.IsSafe)
	assert.True(t, got.IsAnonymous, "маркер в тексте")
	assert.True(t, got.IsComplete)
	assert.Equal(t, "art://анонимно: спасибо столовой", got.ArtifactRef)
	assert.False(t, got.NeedsRerender)
	assert.Equal(t, 1, h.classifier.calls)
	require.Len(t, h.notifier.messages(), 1)
	assert.Contains(t, h.notifier.messages()[0], "#1")
}

func TestProcessFallbacks(t *testing.T) {
	h := newHarness(t, config.PipelineConfig{})
	h.classifier.err = models.ErrClassificationUnavailable
	h.renderer.fail(errors.New("timeout"))
	s := h.insert(t, 2, "just text")

	require.NoError(t, h.p.Process(context.Background(), s))

	got, err := h.db.GetSubmission(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingAudit, got.Status, "без вердикта заявка идёт к модераторам")
	assert.False(t, got.IsSafe)
	assert.False(t, got.IsAnonymous)
	assert.True(t, got.NeedsRerender)
	assert.Equal(t, 1, h.classifier.calls, "классификатор вызывается один раз")
}

func TestIncompleteSubmissionIsHeld(t *testing.T) {
	h := newHarness(t, config.PipelineConfig{})
	h.classifier.verdict = &platform.Classification{IsSafe: true, IsComplete: false}
	s := h.insert(t, 3, "а")

	require.NoError(t, h.p.Process(context.Background(), s))

	got, err := h.db.GetSubmission(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, models.StatusHeld, got.Status)
	assert.Empty(t, h.notifier.messages())

	entries, err := h.db.ListAudit(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ActorPipeline, entries[0].Actor)
}

func TestSensitiveWordsOverrideClassifier(t *testing.T) {
	h := newHarness(t, config.PipelineConfig{SensitiveWords: []string{"Казино"}})
	s := h.insert(t, 4, "анон: Лучшее КАЗИНО города!")

	require.NoError(t, h.p.Process(context.Background(), s))

	got, err := h.db.GetSubmission(context.Background(), 4)
	require.NoError(t, err)
	assert.False(t, got.IsSafe)
	assert.True(t, got.IsAnonymous, "маркер в тексте")
	assert.True(t, got.IsComplete)
	assert.Equal(t, models.StatusAwaitingAudit, got.Status)
	assert.Equal(t, 0, h.classifier.calls, "классификатор не вызывается")
	assert.Len(t, h.notifier.messages(), 1, "пропуск классификатора не считается сбоем")
}

func TestResultDroppedWhenSubmissionLeftPending(t *testing.T) {
	h := newHarness(t, config.PipelineConfig{})
	s := h.insert(t, 5, "text")
	deleted := *s
	deleted.Status = models.StatusDeleted
	require.NoError(t, h.db.UpdateSubmission(context.Background(), &deleted))

	require.NoError(t, h.p.Process(context.Background(), s))

	got, err := h.db.GetSubmission(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeleted, got.Status)
	assert.Empty(t, got.ArtifactRef)
	assert.Empty(t, h.notifier.messages())
}

func TestModeratorToggleDuringProcessingWins(t *testing.T) {
	h := newHarness(t, config.PipelineConfig{})
	h.classifier.entered = make(chan struct{})
	h.classifier.release = make(chan struct{})
	anon := false
	h.classifier.verdict = &platform.Classification{IsSafe: true, IsComplete: true, Anonymous: &anon}
	s := h.insert(t, 6, "просто текст")
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- h.p.Process(ctx, s) }()
	<-h.classifier.entered

	// модератор переключает анонимность, пока стадии работают
	cur, err := h.db.GetSubmission(ctx, 6)
	require.NoError(t, err)
	cur.IsAnonymous = true
	cur.NeedsRerender = true
	require.NoError(t, h.db.UpdateSubmission(ctx, cur))

	close(h.classifier.release)
	require.NoError(t, <-done)

	got, err := h.db.GetSubmission(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingAudit, got.Status)
	assert.True(t, got.IsAnonymous, "флаг модератора сохраняется")
	assert.True(t, got.NeedsRerender, "картинка рендерилась со старым флагом")
	assert.Empty(t, got.ArtifactRef)
	assert.True(t, got.IsSafe)
}

func TestConsecutiveFailuresAlertOnce(t *testing.T) {
	h := newHarness(t, config.PipelineConfig{FailureAlertThreshold: 2})
	h.renderer.fail(errors.New("down"))
	ctx := context.Background()

	alerts := func() int {
		n := 0
		for _, m := range h.notifier.messages() {
			if strings.Contains(m, "стадия render") {
				n++
			}
		}
		return n
	}

	for id := int64(10); id < 13; id++ {
		require.NoError(t, h.p.Process(ctx, h.insert(t, id, "x")))
	}
	assert.Equal(t, 1, alerts())

	h.renderer.fail(nil)
	require.NoError(t, h.p.Process(ctx, h.insert(t, 13, "ok")))
	h.renderer.fail(errors.New("down again"))
	require.NoError(t, h.p.Process(ctx, h.insert(t, 14, "x")))
	assert.Equal(t, 1, alerts(), "после успеха счёт начинается заново")
	require.NoError(t, h.p.Process(ctx, h.insert(t, 15, "x")))
	assert.Equal(t, 2, alerts())
}

func TestRerenderKeepsStatus(t *testing.T) {
	h := newHarness(t, config.PipelineConfig{})
	h.renderer.fail(errors.New("down"))
	s := h.insert(t, 20, "pic")
	require.NoError(t, h.p.Process(context.Background(), s))

	h.renderer.fail(nil)
	got, err := h.db.GetSubmission(context.Background(), 20)
	require.NoError(t, err)
	require.True(t, got.NeedsRerender)

	require.NoError(t, h.p.Rerender(context.Background(), got))
	got, err = h.db.GetSubmission(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingAudit, got.Status)
	assert.False(t, got.NeedsRerender)
	assert.Equal(t, "art://pic", got.ArtifactRef)
}

func TestStartRunsInBackground(t *testing.T) {
	h := newHarness(t, config.PipelineConfig{})
	s := h.insert(t, 30, "async")
	h.p.Start(context.Background(), s)
	h.p.Wait()

	got, err := h.db.GetSubmission(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingAudit, got.Status)
}

func TestMatcher(t *testing.T) {
	tests := []struct {
		text, phrase string
		want         bool
	}{
		{"I am anon here", "anon", true},
		{"canon law", "anon", false},
		{"我想匿名投稿", "匿名", true},
		{"Café déjà vu", "deja", true},
		{"hello world", "hello world", true},
		{"hello there world", "hello world", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, newMatcher(tt.text).contains(tt.phrase), "%q / %q", tt.text, tt.phrase)
	}
}
