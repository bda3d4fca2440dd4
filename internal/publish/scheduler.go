package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"wall_go/internal/config"
	"wall_go/internal/metrics"
	"wall_go/internal/platform"
	"wall_go/internal/worker"
	"wall_go/models"
	"wall_go/pkg/account_mutex"
	"wall_go/pkg/storage"
)

// Причины запуска цикла публикации.
const (
	TriggerStack    = "stack"
	TriggerSchedule = "schedule"
	TriggerRetry    = "retry"
	TriggerManual   = "manual"
	TriggerNow      = "immediate"
)

// Report: итог одного цикла публикации.
type Report struct {
	Group     string `json:"group"`
	Trigger   string `json:"trigger"`
	Posts     int    `json:"posts"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Retrying  int    `json:"retrying"`
	Skipped   int    `json:"skipped"`
	Finished  int    `json:"finished"`
}

type groupState struct {
	flush        sync.Mutex
	mu           sync.Mutex
	lastCycle    time.Time
	lastSchedule string
}

// Scheduler публикует одобренные посты пакетами на все включённые площадки группы.
type Scheduler struct {
	db         *storage.DB
	workers    *worker.Pool
	cfg        *config.Store
	publishers *platform.Registry[platform.Publisher]
	notifier   platform.Notifier
	locks      *account_mutex.Locks
	log        *zap.Logger
	now        func() time.Time

	groups   *xsync.MapOf[string, *groupState]
	limiters *xsync.MapOf[string, *rate.Limiter]
	rotation *xsync.MapOf[string, *atomic.Uint64]
}

type Options struct {
	DB         *storage.DB
	Workers    *worker.Pool
	Config     *config.Store
	Publishers *platform.Registry[platform.Publisher]
	Notifier   platform.Notifier
	Logger     *zap.Logger
}

func New(o Options) *Scheduler {
	log := o.Logger.Named("publish")
	return &Scheduler{
		db:         o.DB,
		workers:    o.Workers,
		cfg:        o.Config,
		publishers: o.Publishers,
		notifier:   o.Notifier,
		locks:      account_mutex.New(log),
		log:        log,
		now:        time.Now,
		groups:     xsync.NewMapOf[string, *groupState](),
		limiters:   xsync.NewMapOf[string, *rate.Limiter](),
		rotation:   xsync.NewMapOf[string, *atomic.Uint64](),
	}
}

func (s *Scheduler) state(group string) *groupState {
	st, _ := s.groups.LoadOrCompute(group, func() *groupState { return &groupState{} })
	return st
}

// Run проверяет триггеры всех групп каждые interval до отмены ctx.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, g := range s.cfg.Current().Groups {
			if _, err := s.MaybeFlush(ctx, g.Name, s.now()); err != nil {
				s.log.Error("publish cycle failed", zap.String("group", g.Name), zap.Error(err))
			}
		}
	}
}

// MaybeFlush запускает цикл, если сработал один из триггеров группы.
// Возвращает nil, если цикл не понадобился или уже идёт.
func (s *Scheduler) MaybeFlush(ctx context.Context, group string, now time.Time) (*Report, error) {
	g, ok := s.cfg.Group(group)
	if !ok {
		return nil, fmt.Errorf("unknown account group %q", group)
	}
	trigger, err := s.trigger(ctx, g, now)
	if err != nil || trigger == "" {
		return nil, err
	}
	st := s.state(group)
	if !st.flush.TryLock() {
		return nil, nil
	}
	defer st.flush.Unlock()
	return s.cycle(ctx, g, trigger)
}

// Flush публикует очередь группы немедленно.
func (s *Scheduler) Flush(ctx context.Context, group string) (*Report, error) {
	g, ok := s.cfg.Group(group)
	if !ok {
		return nil, fmt.Errorf("unknown account group %q", group)
	}
	st := s.state(group)
	st.flush.Lock()
	defer st.flush.Unlock()
	return s.cycle(ctx, g, TriggerManual)
}

// PublishNow доставляет одну заявку вне пакета.
func (s *Scheduler) PublishNow(ctx context.Context, group string, submissionID int64) error {
	g, ok := s.cfg.Group(group)
	if !ok {
		return fmt.Errorf("unknown account group %q", group)
	}
	st := s.state(group)
	st.flush.Lock()
	defer st.flush.Unlock()

	post, err := s.db.GetStoredPost(ctx, submissionID)
	if err != nil {
		return err
	}
	if post.AccountGroup != group {
		return fmt.Errorf("stored post %d: %w", submissionID, models.ErrNotFound)
	}
	rep := &Report{Group: group, Trigger: TriggerNow, Posts: 1}
	err = s.deliver(ctx, g, post, rep)
	metrics.Flushes.WithLabelValues(group, TriggerNow).Inc()
	return err
}

// ActorScheduler: автор записей аудита, сделанных планировщиком.
const ActorScheduler = "scheduler"

// Clear убирает из очереди все посты группы без публикации. Их заявки возвращаются
// в awaiting_audit, чтобы модератор мог одобрить их снова; номер публикации сохраняется.
func (s *Scheduler) Clear(ctx context.Context, group string) (int64, error) {
	var n int64
	err := s.workers.Get(group).Do(ctx, func(ctx context.Context) error {
		return s.db.WithTx(ctx, func(q *storage.Queries) error {
			posts, err := q.ListStoredPosts(ctx, group)
			if err != nil {
				return err
			}
			for _, post := range posts {
				sub, err := q.GetSubmission(ctx, post.SubmissionID)
				if err != nil {
					return err
				}
				if sub.Status != models.StatusApproved && sub.Status != models.StatusQueued {
					continue
				}
				from := sub.Status
				sub.Status = models.StatusAwaitingAudit
				if err := q.UpdateSubmission(ctx, sub); err != nil {
					return err
				}
				if err := q.AppendAudit(ctx, &models.AuditLogEntry{
					SubmissionID: sub.ID,
					AccountGroup: group,
					Actor:        ActorScheduler,
					Command:      "clear",
					Outcome:      models.OutcomeOK,
					Detail:       fmt.Sprintf("queue cleared, %s -> %s", from, sub.Status),
				}); err != nil {
					return err
				}
			}
			n, err = q.ClearStoredPosts(ctx, group)
			return err
		})
	})
	if err != nil {
		return 0, err
	}
	metrics.QueueDepth.WithLabelValues(group).Set(0)
	s.log.Info("queue cleared", zap.String("group", group), zap.Int64("posts", n))
	return n, nil
}

func (s *Scheduler) cycle(ctx context.Context, g *config.GroupConfig, trigger string) (*Report, error) {
	posts, err := s.db.ListStoredPosts(ctx, g.Name)
	if err != nil {
		return nil, err
	}
	rep := &Report{Group: g.Name, Trigger: trigger, Posts: len(posts)}
	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := s.deliver(ctx, g, post, rep); err != nil {
			s.log.Error("deliver post failed", zap.Int64("submission", post.SubmissionID), zap.Error(err))
		}
	}

	st := s.state(g.Name)
	st.mu.Lock()
	st.lastCycle = s.now()
	st.mu.Unlock()

	if left, err := s.db.CountStoredPosts(ctx, g.Name); err == nil {
		metrics.QueueDepth.WithLabelValues(g.Name).Set(float64(left))
	}
	metrics.Flushes.WithLabelValues(g.Name, trigger).Inc()
	s.log.Info("publish cycle finished",
		zap.String("group", g.Name),
		zap.String("trigger", trigger),
		zap.Int("posts", rep.Posts),
		zap.Int("succeeded", rep.Succeeded),
		zap.Int("failed", rep.Failed),
		zap.Int("retrying", rep.Retrying),
		zap.Int("finished", rep.Finished))
	return rep, nil
}

// trigger решает, нужен ли цикл. Триггер стопки считает только ещё не отправлявшиеся посты:
// посты с повторами ждут retry_interval.
func (s *Scheduler) trigger(ctx context.Context, g *config.GroupConfig, now time.Time) (string, error) {
	posts, err := s.db.ListStoredPosts(ctx, g.Name)
	if err != nil {
		return "", err
	}
	if len(posts) == 0 {
		return "", nil
	}
	fresh, retrying := 0, 0
	for _, p := range posts {
		if p.Dispatched {
			retrying++
		} else {
			fresh++
		}
	}

	st := s.state(g.Name)
	st.mu.Lock()
	defer st.mu.Unlock()

	if g.MaxPostStack > 0 && fresh >= g.MaxPostStack {
		return TriggerStack, nil
	}
	minute := now.Format("15:04")
	stamp := now.Format("2006-01-02 15:04")
	for _, at := range g.SendSchedule {
		if at == minute && st.lastSchedule != stamp {
			st.lastSchedule = stamp
			return TriggerSchedule, nil
		}
	}
	if retrying > 0 && now.Sub(st.lastCycle) >= g.RetryInterval {
		return TriggerRetry, nil
	}
	return "", nil
}

type target struct {
	cfg    config.PlatformConfig
	record models.PublishRecord
}

type outcome struct {
	record  models.PublishRecord
	skipped bool
}

// deliver публикует пост на все площадки без терминальной записи.
// Площадки одного поста доставляются параллельно, записи фиксирует воркер группы.
func (s *Scheduler) deliver(ctx context.Context, g *config.GroupConfig, post *models.StoredPost, rep *Report) error {
	var (
		sub     *models.Submission
		targets []target
	)
	w := s.workers.Get(g.Name)
	err := w.Do(ctx, func(ctx context.Context) error {
		cur, err := s.db.GetSubmission(ctx, post.SubmissionID)
		if err != nil {
			return err
		}
		if cur.Status != models.StatusApproved && cur.Status != models.StatusQueued {
			return nil
		}
		if cur.Status == models.StatusApproved {
			cur.Status = models.StatusQueued
			if err := s.db.UpdateSubmission(ctx, cur); err != nil {
				return err
			}
		}
		if !post.Dispatched {
			if err := s.db.MarkDispatched(ctx, post.SubmissionID); err != nil {
				return err
			}
		}
		records, err := s.db.ListRecords(ctx, cur.ID)
		if err != nil {
			return err
		}
		for _, pc := range g.EnabledPlatforms() {
			rec := models.PublishRecord{SubmissionID: cur.ID, Platform: pc.Name, Status: models.RecordPending}
			if r, ok := records[pc.Name]; ok {
				if r.Status.IsTerminal() {
					continue
				}
				rec = *r
			}
			targets = append(targets, target{cfg: pc, record: rec})
		}
		sub = cur
		return nil
	})
	if err != nil {
		return err
	}
	if sub == nil {
		s.log.Info("post skipped, submission is no longer approved", zap.Int64("submission", post.SubmissionID))
		return nil
	}

	outcomes := make([]outcome, len(targets))
	var eg errgroup.Group
	for i, t := range targets {
		i, t := i, t
		eg.Go(func() error {
			outcomes[i] = s.attempt(ctx, g.Name, t, sub)
			return nil
		})
	}
	_ = eg.Wait()

	var failures []models.PublishRecord
	err = w.Do(ctx, func(ctx context.Context) error {
		cur, err := s.db.GetSubmission(ctx, sub.ID)
		if err != nil {
			return err
		}
		if cur.Status != models.StatusQueued {
			s.log.Info("in-flight results dropped", zap.Int64("submission", cur.ID), zap.String("status", string(cur.Status)))
			return nil
		}
		for _, o := range outcomes {
			if o.skipped {
				rep.Skipped++
				continue
			}
			rec := o.record
			if err := s.db.UpsertRecord(ctx, &rec); err != nil {
				return err
			}
			switch rec.Status {
			case models.RecordSucceeded:
				rep.Succeeded++
			case models.RecordFailed:
				rep.Failed++
				failures = append(failures, rec)
			default:
				rep.Retrying++
			}
		}
		finished, err := s.finalize(ctx, g, cur)
		if finished {
			rep.Finished++
		}
		return err
	})
	if err != nil {
		return err
	}

	for _, f := range failures {
		s.notify(ctx, g.Name, fmt.Sprintf("❌ #%d: публикация в %s не удалась после %d попыток: %s",
			sub.ID, f.Platform, f.Attempts, f.LastError))
	}
	return nil
}

// finalize снимает пост с очереди, когда у всех включённых площадок терминальная запись.
// Вызывать на воркере группы.
func (s *Scheduler) finalize(ctx context.Context, g *config.GroupConfig, sub *models.Submission) (bool, error) {
	enabled := g.EnabledPlatforms()
	if len(enabled) == 0 {
		return false, nil
	}
	records, err := s.db.ListRecords(ctx, sub.ID)
	if err != nil {
		return false, err
	}
	succeeded := false
	for _, pc := range enabled {
		r, ok := records[pc.Name]
		if !ok || !r.Status.IsTerminal() {
			return false, nil
		}
		if r.Status == models.RecordSucceeded {
			succeeded = true
		}
	}
	sub.Status = models.StatusFailed
	if succeeded {
		sub.Status = models.StatusPublished
	}
	err = s.db.WithTx(ctx, func(q *storage.Queries) error {
		if err := q.UpdateSubmission(ctx, sub); err != nil {
			return err
		}
		_, err := q.DeleteStoredPost(ctx, sub.ID)
		return err
	})
	if err != nil {
		return false, err
	}
	s.log.Info("post finished", zap.Int64("submission", sub.ID), zap.String("status", string(sub.Status)))
	return true, nil
}

// attempt выполняет одну попытку публикации на площадку. В БД не пишет.
func (s *Scheduler) attempt(ctx context.Context, group string, t target, sub *models.Submission) outcome {
	rec := t.record
	pub, ok := s.publishers.Get(t.cfg.Name)
	if !ok {
		rec.Status = models.RecordFailed
		rec.LastError = fmt.Sprintf("no publisher registered for %q", t.cfg.Name)
		return outcome{record: rec}
	}
	account, release, ok := s.pickAccount(group, t.cfg)
	if !ok {
		if len(t.cfg.Accounts) == 0 {
			rec.Status = models.RecordFailed
			rec.LastError = "platform has no accounts"
			return outcome{record: rec}
		}
		s.log.Warn("all accounts busy, platform skipped this cycle", zap.String("platform", t.cfg.Name))
		return outcome{skipped: true}
	}
	defer release()

	if err := s.limiter(group, t.cfg, account).Wait(ctx); err != nil {
		return outcome{skipped: true}
	}

	content := Compose(t.cfg, sub)
	externalID, err := pub.Publish(ctx, account, content)
	rec.Attempts++
	rec.Account = account.Name
	switch {
	case err == nil:
		rec.Status = models.RecordSucceeded
		rec.ExternalID = externalID
		rec.LastError = ""
		metrics.Deliveries.WithLabelValues(group, t.cfg.Name, "succeeded").Inc()
		if t.cfg.WithComment && sub.Comment != "" {
			if err := pub.Comment(ctx, account, externalID, sub.Comment); err != nil {
				s.log.Warn("post comment failed", zap.Int64("submission", sub.ID), zap.String("platform", t.cfg.Name), zap.Error(err))
			}
		}
	case errors.Is(err, models.ErrDeliveryTerminal):
		rec.Status = models.RecordFailed
		rec.LastError = err.Error()
		metrics.Deliveries.WithLabelValues(group, t.cfg.Name, "failed").Inc()
	default:
		rec.LastError = err.Error()
		rec.Status = models.RecordPending
		if rec.Attempts >= t.cfg.MaxAttempts {
			rec.Status = models.RecordFailed
		}
		metrics.Deliveries.WithLabelValues(group, t.cfg.Name, "transient").Inc()
	}
	s.log.Info("delivery attempt",
		zap.Int64("submission", sub.ID),
		zap.String("platform", t.cfg.Name),
		zap.String("account", account.Name),
		zap.Int("attempt", rec.Attempts),
		zap.String("status", string(rec.Status)),
		zap.Error(err))
	return outcome{record: rec}
}

// pickAccount выбирает аккаунты площадки по кругу, пропуская занятые.
func (s *Scheduler) pickAccount(group string, pc config.PlatformConfig) (models.Account, func(), bool) {
	n := len(pc.Accounts)
	if n == 0 {
		return models.Account{}, nil, false
	}
	counter, _ := s.rotation.LoadOrCompute(group+"/"+pc.Name, func() *atomic.Uint64 { return new(atomic.Uint64) })
	start := counter.Add(1) - 1
	for i := 0; i < n; i++ {
		acc := pc.Accounts[(start+uint64(i))%uint64(n)]
		key := pc.Name + "/" + acc.Name
		if err := s.locks.LockAccount(key); err != nil {
			continue
		}
		return acc, func() { s.locks.UnlockAccount(key) }, true
	}
	return models.Account{}, nil, false
}

// limiter ограничивает частоту публикаций аккаунта интервалом min_interval.
func (s *Scheduler) limiter(group string, pc config.PlatformConfig, acc models.Account) *rate.Limiter {
	key := group + "/" + pc.Name + "/" + acc.Name
	limit := rate.Inf
	if pc.MinInterval > 0 {
		limit = rate.Every(pc.MinInterval)
	}
	l, _ := s.limiters.LoadOrCompute(key, func() *rate.Limiter {
		return rate.NewLimiter(limit, 1)
	})
	// интервал мог поменяться после перезагрузки конфигурации
	if l.Limit() != limit {
		l.SetLimit(limit)
	}
	return l
}

func (s *Scheduler) notify(ctx context.Context, group, text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyModerators(ctx, group, text); err != nil {
		s.log.Warn("notify moderators failed", zap.String("group", group), zap.Error(err))
	}
}
