package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"wall_go/internal/config"
	"wall_go/internal/metrics"
	"wall_go/internal/platform"
	"wall_go/internal/worker"
	"wall_go/models"
	"wall_go/pkg/countstore"
	"wall_go/pkg/storage"
)

// ActorPipeline: автор записей аудита, сделанных конвейером.
const ActorPipeline = "pipeline"

// Pipeline прогоняет новую заявку через стадии и передаёт её модераторам.
// Стадии работают вне воркера группы; результат фиксируется через воркер.
type Pipeline struct {
	base       context.Context
	db         *storage.DB
	workers    *worker.Pool
	cfg        *config.Store
	classifier platform.Classifier
	notifier   platform.Notifier
	counts     countstore.CountStore
	stages     *platform.Registry[platform.Processor]
	log        *zap.Logger

	wg sync.WaitGroup
}

type Options struct {
	DB         *storage.DB
	Workers    *worker.Pool
	Config     *config.Store
	Classifier platform.Classifier
	Notifier   platform.Notifier
	Counts     countstore.CountStore
	Stages     *platform.Registry[platform.Processor]
	Logger     *zap.Logger
}

// New создаёт конвейер. base: контекст жизни приложения для фоновых прогонок.
func New(base context.Context, o Options) *Pipeline {
	if o.Counts == nil {
		o.Counts = countstore.NewMemCountStore()
	}
	return &Pipeline{
		base:       base,
		db:         o.DB,
		workers:    o.Workers,
		cfg:        o.Config,
		classifier: o.Classifier,
		notifier:   o.Notifier,
		counts:     o.Counts,
		stages:     o.Stages,
		log:        o.Logger.Named("pipeline"),
	}
}

// Start запускает прогонку в фоне. Подходит как обработчик закрытия окна: не блокирует воркер.
func (p *Pipeline) Start(_ context.Context, s *models.Submission) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.Process(p.base, s); err != nil {
			p.log.Error("process submission failed", zap.Int64("submission", s.ID), zap.Error(err))
		}
	}()
}

// Wait дожидается фоновых прогонок.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Process прогоняет все стадии и фиксирует результат. Сбой стадии не прерывает остальные.
func (p *Pipeline) Process(ctx context.Context, s *models.Submission) error {
	work := *s
	job := platform.NewJob(&work, p.classifier)
	cfg := p.cfg.Current()

	for _, name := range cfg.Pipeline.Stages {
		stage, ok := p.stages.Get(name)
		if !ok {
			p.log.Warn("unknown stage skipped", zap.String("stage", name))
			continue
		}
		p.runStage(ctx, stage, job)
	}

	var (
		status  models.SubmissionStatus
		dropped bool
	)
	err := p.workers.Get(s.AccountGroup).Do(ctx, func(ctx context.Context) error {
		cur, err := p.db.GetSubmission(ctx, s.ID)
		if err != nil {
			return err
		}
		if cur.Status != models.StatusPending {
			dropped = true
			return nil
		}
		cur.IsSafe = work.IsSafe
		cur.IsComplete = work.IsComplete
		if cur.IsAnonymous == s.IsAnonymous {
			cur.IsAnonymous = work.IsAnonymous
			cur.ArtifactRef = work.ArtifactRef
			cur.NeedsRerender = work.NeedsRerender
		}
		// иначе модератор переключил анонимность во время прогонки: его флаг
		// и картинка от его перерендера важнее результата стадий
		cur.Status = models.StatusAwaitingAudit
		if !cur.IsComplete {
			cur.Status = models.StatusHeld
		}
		if err := p.db.UpdateSubmission(ctx, cur); err != nil {
			return err
		}
		if cur.Status == models.StatusHeld {
			if err := p.db.AppendAudit(ctx, &models.AuditLogEntry{
				SubmissionID: cur.ID,
				AccountGroup: cur.AccountGroup,
				Actor:        ActorPipeline,
				Command:      "incomplete",
				Outcome:      models.OutcomeOK,
				Detail:       "held: submission looks incomplete",
			}); err != nil {
				return err
			}
		}
		status = cur.Status
		work = *cur
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit processing result: %w", err)
	}
	if dropped {
		p.log.Info("processing result dropped, submission left pending", zap.Int64("submission", s.ID))
		return nil
	}

	p.log.Info("submission processed",
		zap.Int64("submission", work.ID),
		zap.String("status", string(status)),
		zap.Bool("safe", work.IsSafe),
		zap.Bool("anonymous", work.IsAnonymous),
		zap.Bool("needs_rerender", work.NeedsRerender))
	if status == models.StatusAwaitingAudit {
		p.notify(ctx, work.AccountGroup, work.Summary())
	}
	return nil
}

// Rerender повторяет только стадию рендера. Статус заявки не меняется.
func (p *Pipeline) Rerender(ctx context.Context, s *models.Submission) error {
	stage, ok := p.stages.Get("render")
	if !ok {
		return fmt.Errorf("render stage is not registered")
	}
	work := *s
	p.runStage(ctx, stage, platform.NewJob(&work, p.classifier))

	var notify bool
	err := p.workers.Get(s.AccountGroup).Do(ctx, func(ctx context.Context) error {
		cur, err := p.db.GetSubmission(ctx, s.ID)
		if err != nil {
			return err
		}
		if cur.Status == models.StatusDeleted {
			return nil
		}
		if cur.IsAnonymous != work.IsAnonymous {
			// флаг анонимности поменяли во время рендера, картинка устарела
			cur.NeedsRerender = true
		} else {
			cur.ArtifactRef = work.ArtifactRef
			cur.NeedsRerender = work.NeedsRerender
		}
		notify = cur.Status == models.StatusAwaitingAudit || cur.Status == models.StatusHeld
		work = *cur
		return p.db.UpdateSubmission(ctx, cur)
	})
	if err != nil {
		return fmt.Errorf("commit rerender: %w", err)
	}
	if notify {
		p.notify(ctx, work.AccountGroup, work.Summary())
	}
	return nil
}

// StartRerender запускает Rerender в фоне.
func (p *Pipeline) StartRerender(s *models.Submission) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.Rerender(p.base, s); err != nil {
			p.log.Error("rerender failed", zap.Int64("submission", s.ID), zap.Error(err))
		}
	}()
}

func (p *Pipeline) runStage(ctx context.Context, stage platform.Processor, job *platform.Job) {
	start := time.Now()
	err := stage.Process(ctx, job)
	metrics.StageDuration.WithLabelValues(stage.Name()).Observe(time.Since(start).Seconds())
	p.track(ctx, job.Submission.AccountGroup, stage.Name(), err)
	if err != nil {
		p.log.Warn("stage failed, fallback applied",
			zap.Int64("submission", job.Submission.ID),
			zap.String("stage", stage.Name()),
			zap.Error(err))
	}
}

// track считает сбои стадии подряд. При достижении порога модераторам уходит одно
// предупреждение; успешный прогон обнуляет счётчик.
func (p *Pipeline) track(ctx context.Context, group, stage string, stageErr error) {
	if stageErr == nil {
		if err := p.counts.Reset(ctx, group, stage); err != nil {
			p.log.Warn("reset failure counter", zap.Error(err))
		}
		return
	}
	metrics.StageFailures.WithLabelValues(group, stage).Inc()
	n, err := p.counts.Increment(ctx, group, stage)
	if err != nil {
		p.log.Warn("increment failure counter", zap.Error(err))
		return
	}
	threshold := p.cfg.Current().Pipeline.FailureAlertThreshold
	if threshold > 0 && n == threshold {
		p.notify(ctx, group, fmt.Sprintf("⚠️ стадия %s: %d сбоев подряд, последний: %v", stage, n, stageErr))
	}
}

func (p *Pipeline) notify(ctx context.Context, group, text string) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.NotifyModerators(ctx, group, text); err != nil {
		p.log.Warn("notify moderators failed", zap.String("group", group), zap.Error(err))
	}
}
