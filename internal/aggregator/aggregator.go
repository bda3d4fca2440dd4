package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"wall_go/internal/blacklist"
	"wall_go/internal/config"
	"wall_go/internal/metrics"
	"wall_go/internal/platform"
	"wall_go/internal/worker"
	"wall_go/models"
	"wall_go/pkg/storage"
)

// closeRetryDelay: через сколько повторить закрытие окна, если запись в БД не удалась.
var closeRetryDelay = 30 * time.Second

// CloseHandler получает заявку, созданную при закрытии окна. Вызывается на воркере группы,
// поэтому не должен блокироваться на сетевых вызовах.
type CloseHandler func(ctx context.Context, s *models.Submission)

// WindowState описывает открытое окно после приёма сообщения.
type WindowState struct {
	WindowID int64     `json:"window_id"`
	Messages int       `json:"messages"`
	Deadline time.Time `json:"deadline"`
}

type windowKey struct {
	sender string
	group  string
}

type window struct {
	id       int64
	key      windowKey
	count    int
	deadline time.Time
	timer    *time.Timer
	gen      uint64
}

// Aggregator объединяет сообщения отправителя за окно времени в одну заявку.
// Окно на пару (отправитель, группа) всегда одно. ID заявки резервируется при открытии окна.
type Aggregator struct {
	db      *storage.DB
	guard   *blacklist.Guard
	workers *worker.Pool
	cfg     *config.Store
	log     *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	windows map[windowKey]*window
	byID    map[int64]*window
	onClose CloseHandler
}

func New(db *storage.DB, guard *blacklist.Guard, workers *worker.Pool, cfg *config.Store, log *zap.Logger) *Aggregator {
	return &Aggregator{
		db:      db,
		guard:   guard,
		workers: workers,
		cfg:     cfg,
		log:     log.Named("aggregator"),
		now:     func() time.Time { return time.Now().UTC() },
		windows: make(map[windowKey]*window),
		byID:    make(map[int64]*window),
	}
}

// OnClose задаёт получателя созданных заявок.
func (a *Aggregator) OnClose(h CloseHandler) {
	a.mu.Lock()
	a.onClose = h
	a.mu.Unlock()
}

// Admit принимает сообщение: проверяет чёрный список, кэширует сообщение
// и продлевает (или открывает) окно отправителя.
func (a *Aggregator) Admit(ctx context.Context, msg platform.InboundMessage) (WindowState, error) {
	g, ok := a.cfg.Group(msg.Group)
	if !ok {
		return WindowState{}, fmt.Errorf("unknown account group %q", msg.Group)
	}
	if err := a.guard.Check(ctx, msg.Sender, msg.Group); err != nil {
		if errors.Is(err, models.ErrBlacklisted) {
			metrics.MessagesAdmitted.WithLabelValues(msg.Group, "blacklisted").Inc()
		}
		return WindowState{}, err
	}
	if msg.ArrivedAt.IsZero() {
		msg.ArrivedAt = a.now()
	}

	var state WindowState
	err := a.workers.Get(msg.Group).Do(ctx, func(ctx context.Context) error {
		key := windowKey{sender: msg.Sender, group: msg.Group}
		a.mu.Lock()
		w := a.windows[key]
		a.mu.Unlock()

		if w == nil {
			id, err := a.db.NextCounter(ctx, storage.CounterSubmissionID)
			if err != nil {
				return err
			}
			w = &window{id: id, key: key}
			a.mu.Lock()
			a.windows[key] = w
			a.byID[id] = w
			a.mu.Unlock()
			a.log.Debug("window opened", zap.Int64("window", id), zap.String("sender", msg.Sender), zap.String("group", msg.Group))
		}

		entry := &models.MessageCacheEntry{
			WindowID:     w.id,
			Sender:       msg.Sender,
			AccountGroup: msg.Group,
			MessageRef:   msg.Ref,
			Text:         msg.Text,
			Media:        msg.Media,
			ArrivedAt:    msg.ArrivedAt,
		}
		if err := a.db.InsertCacheEntry(ctx, entry); err != nil {
			return err
		}
		w.count++
		a.schedule(w, g.AggregationWindow)
		state = WindowState{WindowID: w.id, Messages: w.count, Deadline: w.deadline}
		return nil
	})
	if err != nil {
		return WindowState{}, err
	}
	metrics.MessagesAdmitted.WithLabelValues(msg.Group, "accepted").Inc()
	return state, nil
}

// schedule перезапускает таймер окна. Срабатывание старого поколения игнорируется.
func (a *Aggregator) schedule(w *window, d time.Duration) {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.gen++
	gen := w.gen
	w.deadline = a.now().Add(d)
	w.timer = time.AfterFunc(d, func() {
		a.workers.Get(w.key.group).Go(func(ctx context.Context) {
			a.expire(ctx, w, gen)
		})
	})
}

// expire срабатывает только для окна, которое всё ещё открыто, и только для последнего таймера.
func (a *Aggregator) expire(ctx context.Context, w *window, gen uint64) {
	a.mu.Lock()
	live := a.byID[w.id] == w
	a.mu.Unlock()
	if !live || w.gen != gen {
		return
	}
	if err := a.closeWindow(ctx, w); err != nil {
		a.log.Error("close window failed", zap.Int64("window", w.id), zap.Error(err))
	}
}

// Retract убирает сообщение из открытого окна, не трогая таймер.
// Отзыв после закрытия окна ни на что не влияет.
func (a *Aggregator) Retract(ctx context.Context, r platform.Retraction) error {
	return a.workers.Get(r.Group).Do(ctx, func(ctx context.Context) error {
		a.mu.Lock()
		w := a.windows[windowKey{sender: r.Sender, group: r.Group}]
		a.mu.Unlock()
		if w == nil {
			return nil
		}
		removed, err := a.db.DeleteCacheEntryByRef(ctx, w.id, r.Ref)
		if err != nil {
			return err
		}
		if removed {
			w.count--
			a.log.Debug("message retracted", zap.Int64("window", w.id), zap.String("ref", r.Ref))
		}
		return nil
	})
}

// ForceClose досрочно закрывает окно через воркер группы.
func (a *Aggregator) ForceClose(ctx context.Context, group string, windowID int64) error {
	return a.workers.Get(group).Do(ctx, func(ctx context.Context) error {
		return a.CloseWindow(ctx, group, windowID)
	})
}

// CloseWindow закрывает окно windowID. Вызывать только на воркере группы.
func (a *Aggregator) CloseWindow(ctx context.Context, group string, windowID int64) error {
	a.mu.Lock()
	w := a.byID[windowID]
	a.mu.Unlock()
	if w == nil || w.key.group != group {
		return &models.TransitionError{SubmissionID: windowID, Command: "refresh", Reason: "no open aggregation window"}
	}
	return a.closeWindow(ctx, w)
}

// HasWindow сообщает, открыто ли окно с таким ID.
func (a *Aggregator) HasWindow(windowID int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.byID[windowID]
	return ok
}

// OpenWindows: число открытых окон группы.
func (a *Aggregator) OpenWindows(group string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for k := range a.windows {
		if k.group == group {
			n++
		}
	}
	return n
}

// closeWindow превращает окно в заявку. Окно остаётся открытым, пока запись не зафиксирована;
// при ошибке закрытие повторится по таймеру.
func (a *Aggregator) closeWindow(ctx context.Context, w *window) error {
	s, err := a.commitWindow(ctx, w)
	if err != nil {
		a.schedule(w, closeRetryDelay)
		return err
	}

	a.mu.Lock()
	delete(a.windows, w.key)
	delete(a.byID, w.id)
	handler := a.onClose
	a.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}

	if s == nil {
		a.log.Info("window discarded, every message retracted", zap.Int64("window", w.id))
		return nil
	}
	metrics.SubmissionsCreated.WithLabelValues(s.AccountGroup).Inc()
	a.log.Info("submission created",
		zap.Int64("submission", s.ID),
		zap.String("sender", s.Sender),
		zap.String("group", s.AccountGroup),
		zap.Int("messages", len(s.Messages)))

	if handler != nil {
		handler(ctx, s)
	}
	return nil
}

// commitWindow сливает сообщения окна в заявку. Пустое окно просто удаляется, заявка тогда nil.
func (a *Aggregator) commitWindow(ctx context.Context, w *window) (*models.Submission, error) {
	entries, err := a.db.ListWindowEntries(ctx, w.id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, a.db.DeleteWindow(ctx, w.id)
	}

	now := a.now()
	s := Merge(entries)
	s.ID = w.id
	s.Sender = w.key.sender
	s.AccountGroup = w.key.group
	s.Status = models.StatusPending
	s.IsComplete = true
	s.CreatedAt = now
	s.UpdatedAt = now

	err = a.db.WithTx(ctx, func(q *storage.Queries) error {
		if err := q.InsertSubmission(ctx, s); err != nil {
			return err
		}
		return q.DeleteWindow(ctx, w.id)
	})
	if err != nil {
		return nil, fmt.Errorf("close window %d: %w", w.id, err)
	}
	return s, nil
}
