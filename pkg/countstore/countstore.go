package countstore

import (
	"context"
	"fmt"
)

// CountStore: счётчики подряд идущих событий (например, сбоев стадии обработки).
type CountStore interface {
	// Increment увеличивает счётчик и возвращает новое значение.
	Increment(ctx context.Context, name, val string) (int, error)
	Reset(ctx context.Context, name, val string) error
	GetCount(ctx context.Context, name, val string) (int, error)
}

func bucket(name, val string) string {
	return fmt.Sprintf("%s/%s", name, val)
}

// New выбирает Redis, если задан URL, иначе хранит счётчики в памяти процесса.
func New(redisURL string) (CountStore, error) {
	if redisURL == "" {
		return NewMemCountStore(), nil
	}
	return NewRedisCountStore(redisURL)
}
