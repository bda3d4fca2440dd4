package blacklist

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"wall_go/models"
	"wall_go/pkg/storage"
)

const cacheSize = 4096

type cacheKey struct {
	sender string
	group  string
}

// Guard отвечает на вопрос "заблокирован ли отправитель в группе".
// Результаты проверок кэшируются; любое изменение списка сбрасывает кэш,
// так как глобальная запись влияет на все группы.
type Guard struct {
	db    *storage.DB
	log   *zap.Logger
	cache *lru.Cache[cacheKey, bool]

	// gen растёт при каждом изменении списка. Ответ БД попадает в кэш,
	// только если за время запроса список не менялся.
	mu  sync.Mutex
	gen uint64
}

func New(db *storage.DB, log *zap.Logger) (*Guard, error) {
	cache, err := lru.New[cacheKey, bool](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("blacklist cache: %w", err)
	}
	return &Guard{db: db, log: log.Named("blacklist"), cache: cache}, nil
}

// Check возвращает models.ErrBlacklisted, если есть запись для группы или глобальная.
func (g *Guard) Check(ctx context.Context, sender, group string) error {
	key := cacheKey{sender: sender, group: group}
	blocked, ok := g.cache.Get(key)
	if !ok {
		gen := g.generation()
		var err error
		blocked, err = g.db.IsBlacklisted(ctx, sender, group)
		if err != nil {
			return fmt.Errorf("check blacklist: %w", err)
		}
		g.mu.Lock()
		if g.gen == gen {
			g.cache.Add(key, blocked)
		}
		g.mu.Unlock()
	}
	if blocked {
		return fmt.Errorf("%s in %s: %w", sender, group, models.ErrBlacklisted)
	}
	return nil
}

// Add заносит отправителя в список. Повторное добавление не ошибка.
func (g *Guard) Add(ctx context.Context, e *models.BlacklistEntry) error {
	if err := g.db.AddBlacklist(ctx, e); err != nil {
		return err
	}
	g.invalidate()
	g.log.Info("sender blacklisted",
		zap.String("sender", e.Sender),
		zap.String("group", e.AccountGroup),
		zap.String("actor", e.Actor))
	return nil
}

func (g *Guard) Remove(ctx context.Context, sender, group string) (bool, error) {
	removed, err := g.db.RemoveBlacklist(ctx, sender, group)
	if err != nil {
		return false, err
	}
	g.invalidate()
	return removed, nil
}

func (g *Guard) generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen
}

func (g *Guard) invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen++
	g.cache.Purge()
}

func (g *Guard) List(ctx context.Context, group string) ([]*models.BlacklistEntry, error) {
	return g.db.ListBlacklist(ctx, group)
}
