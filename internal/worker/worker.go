package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// ErrStopped возвращается задачам, поставленным после остановки воркера.
var ErrStopped = errors.New("group worker stopped")

type task struct {
	fn   func(ctx context.Context) error
	done chan error // nil для асинхронных задач
}

// Worker последовательно выполняет задачи одной группы аккаунтов.
// Все изменения состояния группы проходят через него, поэтому задачи
// не конкурируют между собой. Задача не должна вызывать Do того же воркера:
// она ждала бы сама себя. Сетевые вызовы выполняются вне воркера.
type Worker struct {
	group string
	log   *zap.Logger

	mu      sync.Mutex
	queue   []task
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

func New(group string, log *zap.Logger) *Worker {
	w := &Worker{
		group: group,
		log:   log.Named("worker").With(zap.String("group", group)),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) Group() string { return w.group }

// Do выполняет fn на воркере и ждёт результата.
// Отмена ctx прекращает ожидание, но не отменяет уже поставленную задачу.
func (w *Worker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	if !w.push(task{fn: fn, done: done}) {
		return ErrStopped
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Go ставит задачу в очередь без ожидания. Безопасно вызывать из задачи и из таймеров.
func (w *Worker) Go(fn func(ctx context.Context)) bool {
	return w.push(task{fn: func(ctx context.Context) error {
		fn(ctx)
		return nil
	}})
}

func (w *Worker) push(t task) bool {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return false
	}
	w.queue = append(w.queue, t)
	// Сигнал под мьютексом: Stop закрывает wake тоже под ним.
	select {
	case w.wake <- struct{}{}:
	default:
	}
	w.mu.Unlock()
	return true
}

// Stop дожидается выполнения уже поставленных задач и останавливает воркер.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.wake)
	}
	w.mu.Unlock()
	<-w.done
}

func (w *Worker) loop() {
	defer close(w.done)
	ctx := context.Background()
	for {
		_, open := <-w.wake
		for {
			w.mu.Lock()
			if len(w.queue) == 0 {
				w.mu.Unlock()
				break
			}
			t := w.queue[0]
			w.queue[0] = task{}
			w.queue = w.queue[1:]
			w.mu.Unlock()

			err := w.run(ctx, t)
			if t.done != nil {
				t.done <- err
			}
		}
		if !open {
			return
		}
	}
}

func (w *Worker) run(ctx context.Context, t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("panic in group task", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("group task panic: %v", r)
		}
	}()
	return t.fn(ctx)
}

// Pool создаёт воркер группы при первом обращении.
type Pool struct {
	log     *zap.Logger
	workers *xsync.MapOf[string, *Worker]
}

func NewPool(log *zap.Logger) *Pool {
	return &Pool{log: log, workers: xsync.NewMapOf[string, *Worker]()}
}

func (p *Pool) Get(group string) *Worker {
	w, _ := p.workers.LoadOrCompute(group, func() *Worker {
		return New(group, p.log)
	})
	return w
}

// StopAll останавливает все воркеры, дожидаясь их очередей.
func (p *Pool) StopAll() {
	p.workers.Range(func(_ string, w *Worker) bool {
		w.Stop()
		return true
	})
}
