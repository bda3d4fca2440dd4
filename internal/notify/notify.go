package notify

import (
	"context"
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"wall_go/internal/config"
	"wall_go/internal/platform"
	"wall_go/models"
)

// Chat доставляет уведомления через бота группы: модераторам в их чат,
// отправителям в личку.
type Chat struct {
	cfg       *config.Store
	log       *zap.Logger
	receivers *xsync.MapOf[string, platform.Receiver]
}

func New(cfg *config.Store, log *zap.Logger) *Chat {
	return &Chat{
		cfg:       cfg,
		log:       log.Named("notify"),
		receivers: xsync.NewMapOf[string, platform.Receiver](),
	}
}

// Register привязывает бота к группе. Повторная регистрация заменяет прежнего.
func (c *Chat) Register(group string, r platform.Receiver) {
	c.receivers.Store(group, r)
}

func (c *Chat) Receiver(group string) (platform.Receiver, bool) {
	return c.receivers.Load(group)
}

func (c *Chat) NotifyModerators(ctx context.Context, group, text string) error {
	r, ok := c.receivers.Load(group)
	if !ok {
		return fmt.Errorf("receiver for group %s: %w", group, models.ErrNotFound)
	}
	g, ok := c.cfg.Group(group)
	if !ok {
		return fmt.Errorf("group %s: %w", group, models.ErrNotFound)
	}
	if g.Receiver.ModeratorChat == "" {
		c.log.Debug("moderator chat not configured", zap.String("group", group))
		return nil
	}
	return r.SendGroup(ctx, g.Receiver.ModeratorChat, text)
}

func (c *Chat) SendPrivate(ctx context.Context, group, sender, text string) error {
	r, ok := c.receivers.Load(group)
	if !ok {
		return fmt.Errorf("receiver for group %s: %w", group, models.ErrNotFound)
	}
	return r.SendPrivate(ctx, sender, text)
}
