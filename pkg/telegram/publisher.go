package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/message/styling"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"wall_go/internal/platform"
	"wall_go/models"
	"wall_go/pkg/storage"
)

// Publisher публикует посты в канал Account.Target от имени бота аккаунта.
// Клиент поднимается на время одного вызова: аккаунтов много, держать все соединения незачем.
type Publisher struct {
	creds Credentials
	db    *storage.DB
	log   *zap.Logger
}

func NewPublisher(creds Credentials, db *storage.DB, log *zap.Logger) *Publisher {
	return &Publisher{creds: creds, db: db, log: log.Named("telegram")}
}

func (p *Publisher) Publish(ctx context.Context, acc models.Account, c platform.Content) (string, error) {
	var id int
	err := p.withSender(ctx, acc, func(ctx context.Context, s *message.Sender) error {
		b := s.Resolve(acc.Target)
		var (
			upd tg.UpdatesClass
			err error
		)
		if photo := firstURL(c.Media); photo != "" {
			upd, err = b.Media(ctx, message.PhotoExternal(photo, styling.Plain(c.Body())))
		} else {
			upd, err = b.Text(ctx, c.Body())
		}
		if err != nil {
			return err
		}
		id = sentMessageID(upd)
		return nil
	})
	if err != nil {
		return "", classify(err)
	}
	if id == 0 {
		p.log.Warn("sent message id not found in updates", zap.String("account", acc.Name))
	}
	return strconv.Itoa(id), nil
}

// Comment отвечает на опубликованный пост.
func (p *Publisher) Comment(ctx context.Context, acc models.Account, externalID, text string) error {
	msgID, err := strconv.Atoi(externalID)
	if err != nil || msgID == 0 {
		return fmt.Errorf("%w: bad message id %q", models.ErrDeliveryTerminal, externalID)
	}
	err = p.withSender(ctx, acc, func(ctx context.Context, s *message.Sender) error {
		_, err := s.Resolve(acc.Target).Reply(msgID).Text(ctx, text)
		return err
	})
	return classify(err)
}

func (p *Publisher) withSender(ctx context.Context, acc models.Account, fn func(context.Context, *message.Sender) error) error {
	client, err := NewClient(p.creds, acc, p.db, p.log, nil)
	if err != nil {
		return err
	}
	return client.Run(ctx, func(ctx context.Context) error {
		if err := authorizeBot(ctx, client, acc.Token); err != nil {
			return err
		}
		return fn(ctx, message.NewSender(tg.NewClient(client)))
	})
}

func firstURL(media []string) string {
	for _, m := range media {
		if strings.HasPrefix(m, "http://") || strings.HasPrefix(m, "https://") {
			return m
		}
	}
	return ""
}

// sentMessageID достаёт ID отправленного сообщения из ответа на отправку.
func sentMessageID(upd tg.UpdatesClass) int {
	switch u := upd.(type) {
	case *tg.UpdateShortSentMessage:
		return u.ID
	case *tg.Updates:
		for _, item := range u.Updates {
			switch v := item.(type) {
			case *tg.UpdateMessageID:
				return v.ID
			case *tg.UpdateNewChannelMessage:
				if m, ok := v.Message.(*tg.Message); ok {
					return m.ID
				}
			case *tg.UpdateNewMessage:
				if m, ok := v.Message.(*tg.Message); ok {
					return m.ID
				}
			}
		}
	}
	return 0
}
