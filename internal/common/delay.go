package common

import (
	"context"
	"math/rand"
	"time"
)

// WaitWithCancellation ждёт случайное время из диапазона [min, max] или до отмены ctx.
// Разносит во времени подключения ботов, чтобы не логиниться всеми аккаунтами сразу.
func WaitWithCancellation(ctx context.Context, min, max time.Duration) error {
	delay := min
	if max > min {
		delay += time.Duration(rand.Int63n(int64(max - min + 1)))
	}
	if delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
