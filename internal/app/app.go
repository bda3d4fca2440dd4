package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"wall_go/internal/aggregator"
	"wall_go/internal/audit"
	"wall_go/internal/blacklist"
	"wall_go/internal/common"
	"wall_go/internal/config"
	"wall_go/internal/notify"
	"wall_go/internal/pipeline"
	"wall_go/internal/platform"
	"wall_go/internal/publish"
	"wall_go/internal/worker"
	"wall_go/pkg/countstore"
	"wall_go/pkg/storage"
)

// Как часто планировщик проверяет триггеры публикации.
const schedulerTick = 15 * time.Second

// Options: внешние зависимости приложения. Пустые адаптеры собирает Adapters.
type Options struct {
	Config     *config.Store
	DB         *storage.DB
	Logger     *zap.Logger
	Classifier platform.Classifier
	Renderer   platform.Renderer
	Counts     countstore.CountStore
	Publishers *platform.Registry[platform.Publisher]
	Receivers  map[string]platform.Receiver // по имени группы
	// StartJitter: разброс задержки перед подключением каждого бота.
	StartJitter time.Duration
}

// App связывает компоненты жизненного цикла заявки и служит Sink для ботов.
type App struct {
	Config     *config.Store
	DB         *storage.DB
	Workers    *worker.Pool
	Guard      *blacklist.Guard
	Aggregator *aggregator.Aggregator
	Pipeline   *pipeline.Pipeline
	Audit      *audit.Machine
	Scheduler  *publish.Scheduler
	Notify     *notify.Chat

	log       *zap.Logger
	receivers map[string]platform.Receiver
	jitter    time.Duration
	base      context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func New(ctx context.Context, o Options) (*App, error) {
	log := o.Logger
	base, cancel := context.WithCancel(ctx)

	guard, err := blacklist.New(o.DB, log)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("blacklist: %w", err)
	}
	if o.Publishers == nil {
		o.Publishers = platform.NewRegistry[platform.Publisher]()
	}

	workers := worker.NewPool(log)
	chat := notify.New(o.Config, log)
	for group, r := range o.Receivers {
		chat.Register(group, r)
	}

	agg := aggregator.New(o.DB, guard, workers, o.Config, log)
	pipe := pipeline.New(base, pipeline.Options{
		DB:         o.DB,
		Workers:    workers,
		Config:     o.Config,
		Classifier: o.Classifier,
		Notifier:   chat,
		Counts:     o.Counts,
		Stages:     pipeline.DefaultStages(o.Config, o.Renderer),
		Logger:     log,
	})
	agg.OnClose(pipe.Start)

	sched := publish.New(publish.Options{
		DB:         o.DB,
		Workers:    workers,
		Config:     o.Config,
		Publishers: o.Publishers,
		Notifier:   chat,
		Logger:     log,
	})
	machine := audit.New(base, audit.Options{
		DB:        o.DB,
		Guard:     guard,
		Workers:   workers,
		Config:    o.Config,
		Windows:   agg,
		Processor: pipe,
		Immediate: sched,
		Messenger: chat,
		Logger:    log,
	})

	return &App{
		Config:     o.Config,
		DB:         o.DB,
		Workers:    workers,
		Guard:      guard,
		Aggregator: agg,
		Pipeline:   pipe,
		Audit:      machine,
		Scheduler:  sched,
		Notify:     chat,
		log:        log.Named("app"),
		receivers:  o.Receivers,
		jitter:     o.StartJitter,
		base:       base,
		cancel:     cancel,
	}, nil
}

// Start восстанавливает открытые окна, запускает планировщик и ботов.
func (a *App) Start() error {
	n, err := a.Aggregator.Recover(a.base)
	if err != nil {
		return fmt.Errorf("recover windows: %w", err)
	}
	if n > 0 {
		a.log.Info("aggregation windows recovered", zap.Int("windows", n))
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.Scheduler.Run(a.base, schedulerTick)
	}()

	for group, r := range a.receivers {
		a.wg.Add(1)
		go func(group string, r platform.Receiver) {
			defer a.wg.Done()
			if err := common.WaitWithCancellation(a.base, 0, a.jitter); err != nil {
				return
			}
			a.log.Info("receiver starting", zap.String("group", group))
			if err := r.Run(a.base, a); err != nil {
				a.log.Error("receiver stopped", zap.String("group", group), zap.Error(err))
			}
		}(group, r)
	}
	return nil
}

// Close останавливает фоновые задачи и воркеры групп.
func (a *App) Close() {
	a.cancel()
	a.wg.Wait()
	a.Pipeline.Wait()
	a.Audit.Wait()
	a.Workers.StopAll()
}
