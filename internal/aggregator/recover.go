package aggregator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"wall_go/internal/config"
)

// Recover восстанавливает открытые окна из message_cache после перезапуска.
// Срок окна считается от последнего сообщения; просроченные окна закрываются сразу.
func (a *Aggregator) Recover(ctx context.Context) (int, error) {
	entries, err := a.db.ListOpenWindows(ctx)
	if err != nil {
		return 0, err
	}

	// Несколько окон одной пары (остаток неудачного закрытия и более новое окно)
	// сливаются в окно с меньшим ID. Записи идут по возрастанию window_id.
	restored := make(map[windowKey]*window)
	var order []*window
	last := make(map[int64]time.Time)
	moved := make(map[int64]bool)
	for _, e := range entries {
		key := windowKey{sender: e.Sender, group: e.AccountGroup}
		w, ok := restored[key]
		if !ok {
			w = &window{id: e.WindowID, key: key}
			restored[key] = w
			order = append(order, w)
		}
		if e.WindowID != w.id && !moved[e.WindowID] {
			if err := a.db.MoveWindowEntries(ctx, e.WindowID, w.id); err != nil {
				return 0, err
			}
			moved[e.WindowID] = true
			a.log.Info("window merged", zap.Int64("window", e.WindowID), zap.Int64("into", w.id))
		}
		w.count++
		if e.ArrivedAt.After(last[w.id]) {
			last[w.id] = e.ArrivedAt
		}
	}

	for _, w := range order {
		length := config.DefaultAggregationWindow
		if g, ok := a.cfg.Group(w.key.group); ok {
			length = g.AggregationWindow
		}
		remaining := last[w.id].Add(length).Sub(a.now())
		if remaining < 0 {
			remaining = 0
		}
		w := w
		err := a.workers.Get(w.key.group).Do(ctx, func(context.Context) error {
			a.mu.Lock()
			a.windows[w.key] = w
			a.byID[w.id] = w
			a.mu.Unlock()
			a.schedule(w, remaining)
			return nil
		})
		if err != nil {
			return 0, err
		}
		a.log.Info("window restored", zap.Int64("window", w.id), zap.Int("messages", w.count), zap.Duration("remaining", remaining))
	}
	return len(order), nil
}
