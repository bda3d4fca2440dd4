package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/tg"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"wall_go/internal/platform"
	"wall_go/models"
	"wall_go/pkg/storage"
)

// recentMessages: сколько последних личных сообщений помнить для сопоставления удалений.
const recentMessages = 4096

var ErrNotConnected = errors.New("telegram receiver is not connected")

// Receiver это бот группы. Принимает заявки в личке и команды в чате модераторов.
type Receiver struct {
	creds         Credentials
	group         string
	acc           models.Account
	moderatorChat string
	db            *storage.DB
	log           *zap.Logger

	api   atomic.Pointer[tg.Client]
	users *xsync.MapOf[int64, tg.InputPeerClass]
	chats *xsync.MapOf[int64, tg.InputPeerClass]
	// UpdateDeleteMessages в личке не содержит собеседника, поэтому отправителя ищем здесь.
	senders *lru.Cache[int, string]
}

func NewReceiver(creds Credentials, group string, acc models.Account, moderatorChat string, db *storage.DB, log *zap.Logger) (*Receiver, error) {
	senders, err := lru.New[int, string](recentMessages)
	if err != nil {
		return nil, err
	}
	return &Receiver{
		creds:         creds,
		group:         group,
		acc:           acc,
		moderatorChat: moderatorChat,
		db:            db,
		log:           log.Named("telegram").With(zap.String("group", group)),
		users:         xsync.NewMapOf[int64, tg.InputPeerClass](),
		chats:         xsync.NewMapOf[int64, tg.InputPeerClass](),
		senders:       senders,
	}, nil
}

// Run держит соединение до отмены ctx и переподключается с экспоненциальной паузой.
func (r *Receiver) Run(ctx context.Context, sink platform.Sink) error {
	d := tg.NewUpdateDispatcher()
	d.OnNewMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
		r.remember(e)
		r.onMessage(ctx, sink, u.Message)
		return nil
	})
	d.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
		r.remember(e)
		r.onMessage(ctx, sink, u.Message)
		return nil
	})
	d.OnDeleteMessages(func(ctx context.Context, e tg.Entities, u *tg.UpdateDeleteMessages) error {
		for _, id := range u.Messages {
			sender, ok := r.senders.Get(id)
			if !ok {
				continue
			}
			r.senders.Remove(id)
			sink.HandleRetraction(ctx, platform.Retraction{Group: r.group, Sender: sender, Ref: strconv.Itoa(id)})
		}
		return nil
	})

	op := func() error {
		client, err := NewClient(r.creds, r.acc, r.db, r.log, d)
		if err != nil {
			return backoff.Permanent(err)
		}
		err = client.Run(ctx, func(ctx context.Context) error {
			if err := authorizeBot(ctx, client, r.acc.Token); err != nil {
				return err
			}
			r.api.Store(tg.NewClient(client))
			r.log.Info("receiver connected", zap.String("account", r.acc.Name))
			<-ctx.Done()
			return ctx.Err()
		})
		r.api.Store(nil)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	err := backoff.RetryNotify(op, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		r.log.Warn("receiver disconnected", zap.Error(err), zap.Duration("retry_in", wait))
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (r *Receiver) remember(e tg.Entities) {
	for id, u := range e.Users {
		r.users.Store(id, &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash})
	}
	for id := range e.Chats {
		r.chats.Store(id, &tg.InputPeerChat{ChatID: id})
	}
	for id, c := range e.Channels {
		r.chats.Store(id, &tg.InputPeerChannel{ChannelID: c.ID, AccessHash: c.AccessHash})
	}
}

func (r *Receiver) onMessage(ctx context.Context, sink platform.Sink, m tg.MessageClass) {
	msg, ok := m.(*tg.Message)
	if !ok || msg.Out {
		return
	}
	switch peer := msg.PeerID.(type) {
	case *tg.PeerUser:
		sender := strconv.FormatInt(peer.UserID, 10)
		r.senders.Add(msg.ID, sender)
		sink.HandleMessage(ctx, platform.InboundMessage{
			Group:     r.group,
			Sender:    sender,
			Ref:       strconv.Itoa(msg.ID),
			Text:      msg.Message,
			Media:     mediaRefs(msg),
			ArrivedAt: time.Unix(int64(msg.Date), 0).UTC(),
		})
	case *tg.PeerChat:
		r.onChatMessage(ctx, sink, msg, peer.ChatID)
	case *tg.PeerChannel:
		r.onChatMessage(ctx, sink, msg, peer.ChannelID)
	}
}

// onChatMessage исполняет команду из чата модераторов и отвечает на неё реплаем.
func (r *Receiver) onChatMessage(ctx context.Context, sink platform.Sink, msg *tg.Message, chatID int64) {
	if !matchesChat(r.moderatorChat, chatID) {
		return
	}
	from, ok := msg.FromID.(*tg.PeerUser)
	if !ok {
		return
	}
	text := strings.TrimSpace(msg.Message)
	if text == "" {
		return
	}
	reply := sink.HandleCommand(ctx, platform.CommandEvent{
		Group: r.group,
		Actor: strconv.FormatInt(from.UserID, 10),
		Text:  text,
	})
	if reply == "" {
		return
	}
	api := r.api.Load()
	peer, ok := r.chats.Load(chatID)
	if api == nil || !ok {
		return
	}
	if _, err := message.NewSender(api).To(peer).Reply(msg.ID).Text(ctx, reply); err != nil {
		r.log.Warn("command reply failed", zap.Error(err))
	}
}

// SendPrivate пишет пользователю, который уже писал боту.
func (r *Receiver) SendPrivate(ctx context.Context, sender, text string) error {
	api := r.api.Load()
	if api == nil {
		return ErrNotConnected
	}
	id, err := strconv.ParseInt(sender, 10, 64)
	if err != nil {
		return fmt.Errorf("bad sender id %q: %w", sender, err)
	}
	peer, ok := r.users.Load(id)
	if !ok {
		return fmt.Errorf("sender %s: %w", sender, models.ErrNotFound)
	}
	if _, err := message.NewSender(api).To(peer).Text(ctx, text); err != nil {
		return fmt.Errorf("send private to %s: %w", sender, err)
	}
	return nil
}

// SendGroup пишет в чат: по ID из кэша или по username.
func (r *Receiver) SendGroup(ctx context.Context, chat, text string) error {
	api := r.api.Load()
	if api == nil {
		return ErrNotConnected
	}
	s := message.NewSender(api)
	var b *message.RequestBuilder
	if id, ok := chatID(chat); ok {
		peer, found := r.chats.Load(id)
		if !found {
			return fmt.Errorf("chat %s: %w", chat, models.ErrNotFound)
		}
		b = s.To(peer)
	} else {
		b = s.Resolve(chat)
	}
	if _, err := b.Text(ctx, text); err != nil {
		return fmt.Errorf("send to chat %s: %w", chat, err)
	}
	return nil
}

// chatID разбирает ID чата в форме Bot API (-100123, -123) или голый 123.
func chatID(chat string) (int64, bool) {
	s := strings.TrimPrefix(chat, "-100")
	if s == chat {
		s = strings.TrimPrefix(chat, "-")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func matchesChat(configured string, id int64) bool {
	want, ok := chatID(configured)
	return ok && want == id
}

func mediaRefs(msg *tg.Message) []string {
	switch m := msg.Media.(type) {
	case *tg.MessageMediaPhoto:
		if p, ok := m.Photo.(*tg.Photo); ok {
			return []string{"tg:photo:" + strconv.FormatInt(p.ID, 10)}
		}
	case *tg.MessageMediaDocument:
		if d, ok := m.Document.(*tg.Document); ok {
			return []string{"tg:document:" + strconv.FormatInt(d.ID, 10)}
		}
	}
	return nil
}
