package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"wall_go/internal/platform"
	"wall_go/models"
)

// Лимит длины сообщения в Discord.
const maxContent = 2000

// Publisher публикует посты в канал Account.Target через REST API.
// Websocket не открывается: сессии нужны только для HTTP запросов.
type Publisher struct {
	log      *zap.Logger
	sessions *xsync.MapOf[string, *discordgo.Session]
}

func New(log *zap.Logger) *Publisher {
	return &Publisher{
		log:      log.Named("discord"),
		sessions: xsync.NewMapOf[string, *discordgo.Session](),
	}
}

func (p *Publisher) session(acc models.Account) (*discordgo.Session, error) {
	if s, ok := p.sessions.Load(acc.Name); ok {
		return s, nil
	}
	s, err := discordgo.New("Bot " + acc.Token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDeliveryTerminal, err)
	}
	actual, _ := p.sessions.LoadOrStore(acc.Name, s)
	return actual, nil
}

func (p *Publisher) Publish(ctx context.Context, acc models.Account, c platform.Content) (string, error) {
	s, err := p.session(acc)
	if err != nil {
		return "", err
	}
	msg, err := s.ChannelMessageSendComplex(acc.Target, buildMessage(c), discordgo.WithContext(ctx))
	if err != nil {
		return "", classify(err)
	}
	return msg.ID, nil
}

func (p *Publisher) Comment(ctx context.Context, acc models.Account, externalID, text string) error {
	s, err := p.session(acc)
	if err != nil {
		return err
	}
	_, err = s.ChannelMessageSendReply(acc.Target, truncate(text), &discordgo.MessageReference{
		MessageID: externalID,
		ChannelID: acc.Target,
	}, discordgo.WithContext(ctx))
	return classify(err)
}

func buildMessage(c platform.Content) *discordgo.MessageSend {
	m := &discordgo.MessageSend{Content: truncate(c.Body())}
	for _, ref := range c.Media {
		if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
			continue
		}
		m.Embeds = append(m.Embeds, &discordgo.MessageEmbed{Image: &discordgo.MessageEmbedImage{URL: ref}})
	}
	return m
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxContent {
		return s
	}
	return string(r[:maxContent-1]) + "…"
}

// classify: 429 и 5xx повторяются, остальные ответы API окончательны.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		code := restErr.Response.StatusCode
		if code != http.StatusTooManyRequests && code < 500 {
			return fmt.Errorf("%w: %w", models.ErrDeliveryTerminal, err)
		}
	}
	return fmt.Errorf("%w: %w", models.ErrDeliveryTransient, err)
}
