package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"wall_go/internal/config"
	"wall_go/internal/platform"
	"wall_go/pkg/classifier"
	"wall_go/pkg/countstore"
	"wall_go/pkg/discord"
	"wall_go/pkg/httpclient"
	"wall_go/pkg/render"
	"wall_go/pkg/storage"
	"wall_go/pkg/telegram"
	"wall_go/pkg/webhook"
)

// Имена площадок в конфигурации.
const (
	PlatformTelegram = "telegram"
	PlatformDiscord  = "discord"
	PlatformWebhook  = "webhook"
)

// Adapters собирает боевые адаптеры по конфигурации.
func Adapters(cfg *config.Store, db *storage.DB, log *zap.Logger) (Options, error) {
	c := cfg.Current()
	o := Options{
		Config:      cfg,
		DB:          db,
		Logger:      log,
		Publishers:  platform.NewRegistry[platform.Publisher](),
		Receivers:   make(map[string]platform.Receiver),
		StartJitter: 5 * time.Second,
	}

	counts, err := countstore.New(c.Redis.URL)
	if err != nil {
		return Options{}, fmt.Errorf("countstore: %w", err)
	}
	o.Counts = counts

	if c.Classifier.URL != "" {
		o.Classifier = classifier.New(c.Classifier.URL, c.Classifier.Token, httpclient.New(log, c.Classifier.Timeout, 2))
	} else {
		log.Warn("classifier is not configured, stages fall back to local rules")
	}
	if c.Renderer.URL != "" {
		o.Renderer = render.New(c.Renderer.URL, c.Renderer.Token, httpclient.New(log, c.Renderer.Timeout, 2))
	} else {
		log.Warn("renderer is not configured, submissions are marked for rerender")
	}

	creds := telegram.Credentials{APIID: c.Telegram.APIID, APIHash: c.Telegram.APIHash}
	o.Publishers.Register(PlatformTelegram, telegram.NewPublisher(creds, db, log))
	o.Publishers.Register(PlatformDiscord, discord.New(log))
	// повторы внутри попытки не нужны: попытки считает планировщик
	o.Publishers.Register(PlatformWebhook, webhook.New(httpclient.New(log, 0, 0)))

	for _, g := range c.Groups {
		switch g.Receiver.Platform {
		case "":
			log.Warn("group has no receiver", zap.String("group", g.Name))
		case PlatformTelegram:
			if g.Receiver.Account.Token == "" {
				return Options{}, fmt.Errorf("group %s: receiver account token is empty", g.Name)
			}
			r, err := telegram.NewReceiver(creds, g.Name, g.Receiver.Account, g.Receiver.ModeratorChat, db, log)
			if err != nil {
				return Options{}, fmt.Errorf("group %s: %w", g.Name, err)
			}
			o.Receivers[g.Name] = r
		default:
			return Options{}, fmt.Errorf("group %s: unsupported receiver platform %q", g.Name, g.Receiver.Platform)
		}
	}
	return o, nil
}
