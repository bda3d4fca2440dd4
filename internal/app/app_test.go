package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wall_go/internal/config"
	"wall_go/internal/platform"
	"wall_go/models"
	"wall_go/pkg/storage"
)

type fakeReceiver struct {
	mu      sync.Mutex
	private []string
	group   []string
}

func (f *fakeReceiver) Run(ctx context.Context, _ platform.Sink) error {
	<-ctx.Done()
	return nil
}

func (f *fakeReceiver) SendPrivate(_ context.Context, sender, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.private = append(f.private, sender+": "+text)
	return nil
}

func (f *fakeReceiver) SendGroup(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.group = append(f.group, text)
	return nil
}

func (f *fakeReceiver) privateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.private)
}

type fakePublisher struct {
	mu    sync.Mutex
	posts []platform.Content
}

func (f *fakePublisher) Publish(_ context.Context, _ models.Account, c platform.Content) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, c)
	return fmt.Sprintf("ext-%d", c.SubmissionID), nil
}

func (f *fakePublisher) Comment(context.Context, models.Account, string, string) error { return nil }

type harness struct {
	app  *App
	recv *fakeReceiver
	pub  *fakePublisher
}

type gatedClassifier struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gatedClassifier) Classify(context.Context, string, []string) (*platform.Classification, error) {
	g.entered <- struct{}{}
	<-g.release
	anon := false
	return &platform.Classification{IsSafe: true, IsComplete: true, Anonymous: &anon}, nil
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, nil)
}

func newHarnessWith(t *testing.T, classifier platform.Classifier) *harness {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(ctx, storage.DialectSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))

	cfg, err := config.New(config.Config{Groups: []config.GroupConfig{{
		Name:              "wall",
		Receiver:          config.ReceiverConfig{Platform: "fake", ModeratorChat: "mods"},
		Moderators:        []string{"7"},
		AggregationWindow: time.Hour,
		Platforms: []config.PlatformConfig{{
			Name:       "fake",
			Enabled:    true,
			WithNumber: true,
			Accounts:   []models.Account{{Name: "acc"}},
		}},
	}}})
	require.NoError(t, err)

	h := &harness{recv: &fakeReceiver{}, pub: &fakePublisher{}}
	pubs := platform.NewRegistry[platform.Publisher]()
	pubs.Register("fake", h.pub)

	h.app, err = New(ctx, Options{
		Config:     config.StaticStore(cfg),
		DB:         db,
		Logger:     zap.NewNop(),
		Classifier: classifier,
		Publishers: pubs,
		Receivers:  map[string]platform.Receiver{"wall": h.recv},
	})
	require.NoError(t, err)
	require.NoError(t, h.app.Start())
	t.Cleanup(h.app.Close)
	return h
}

func TestSubmissionLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.app.HandleMessage(ctx, platform.InboundMessage{Group: "wall", Sender: "42", Ref: "1", Text: "hello"})
	h.app.HandleMessage(ctx, platform.InboundMessage{Group: "wall", Sender: "42", Ref: "2", Text: "world"})
	assert.Eventually(t, func() bool { return h.recv.privateCount() == 1 }, time.Second, 10*time.Millisecond)

	require.Equal(t, 1, h.app.Aggregator.OpenWindows("wall"))
	reply := h.app.HandleCommand(ctx, platform.CommandEvent{Group: "wall", Actor: "7", Text: "1 refresh"})
	assert.Contains(t, reply, "закрыто")
	h.app.Pipeline.Wait()

	s, err := h.app.DB.GetSubmission(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "hello world", s.Text)
	assert.Equal(t, models.StatusAwaitingAudit, s.Status)

	reply = h.app.HandleCommand(ctx, platform.CommandEvent{Group: "wall", Actor: "7", Text: "1 approve"})
	assert.Contains(t, reply, "одобрена")

	rep, err := h.app.Scheduler.Flush(ctx, "wall")
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Succeeded)

	s, err = h.app.DB.GetSubmission(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, s.Status)
	require.Len(t, h.pub.posts, 1)
	assert.Equal(t, "#1\nhello world", h.pub.posts[0].Body())
}

func TestToggleAnonymousDuringProcessing(t *testing.T) {
	gate := &gatedClassifier{entered: make(chan struct{}), release: make(chan struct{})}
	h := newHarnessWith(t, gate)
	ctx := context.Background()

	h.app.HandleMessage(ctx, platform.InboundMessage{Group: "wall", Sender: "42", Ref: "1", Text: "hello"})
	h.app.HandleCommand(ctx, platform.CommandEvent{Group: "wall", Actor: "7", Text: "1 refresh"})
	<-gate.entered

	reply := h.app.HandleCommand(ctx, platform.CommandEvent{Group: "wall", Actor: "7", Text: "1 anon"})
	assert.Contains(t, reply, "анонимна")
	h.app.Audit.Wait()

	close(gate.release)
	h.app.Pipeline.Wait()

	s, err := h.app.DB.GetSubmission(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingAudit, s.Status)
	assert.True(t, s.IsAnonymous, "переключение модератора не теряется")
	assert.True(t, s.NeedsRerender)
}

func TestHandleCommandReplies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.Empty(t, h.app.HandleCommand(ctx, platform.CommandEvent{Group: "wall", Actor: "7", Text: "доброе утро"}))
	assert.Contains(t, h.app.HandleCommand(ctx, platform.CommandEvent{Group: "wall", Actor: "99", Text: "1 approve"}), "только модераторам")
	assert.Contains(t, h.app.HandleCommand(ctx, platform.CommandEvent{Group: "wall", Actor: "7", Text: "1 dance"}), "Неизвестная команда")
	assert.Contains(t, h.app.HandleCommand(ctx, platform.CommandEvent{Group: "wall", Actor: "7", Text: "5 approve"}), "Недопустимо")
}

func TestBlacklistedSenderIsDropped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.app.Guard.Add(ctx, &models.BlacklistEntry{Sender: "13", AccountGroup: "wall", Reason: "spam"}))
	h.app.HandleMessage(ctx, platform.InboundMessage{Group: "wall", Sender: "13", Ref: "1", Text: "spam"})
	assert.Equal(t, 0, h.app.Aggregator.OpenWindows("wall"))
	assert.Equal(t, 0, h.recv.privateCount())
}

func TestLooksLikeCommand(t *testing.T) {
	assert.True(t, looksLikeCommand("12 approve"))
	assert.True(t, looksLikeCommand("#12 是"))
	assert.False(t, looksLikeCommand("approve 12"))
	assert.False(t, looksLikeCommand(""))
}
