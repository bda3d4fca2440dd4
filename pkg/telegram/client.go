package telegram

import (
	"context"
	"fmt"

	"github.com/gotd/td/session"
	td "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"go.uber.org/zap"
	"golang.org/x/net/proxy"

	"wall_go/models"
	"wall_go/pkg/storage"
)

// Credentials: ключи приложения Telegram, общие для всех аккаунтов.
type Credentials struct {
	APIID   int
	APIHash string
}

// NewClient создаёт клиент Telegram для аккаунта с хранилищем сессии в БД.
// Если у аккаунта задан прокси, соединения идут через SOCKS5.
func NewClient(creds Credentials, acc models.Account, db *storage.DB, log *zap.Logger, h td.UpdateHandler) (*td.Client, error) {
	var store session.Storage = &session.StorageMemory{}
	if db != nil && acc.Name != "" {
		store = &DBSessionStorage{DB: db, Account: acc.Name}
	}

	opts := td.Options{SessionStorage: store, Logger: log.Named("gotd")}
	if h != nil {
		opts.UpdateHandler = h
	}
	if p := acc.Proxy; p != nil {
		addr := fmt.Sprintf("%s:%d", p.IP, p.Port)
		var auth *proxy.Auth
		if p.Login != "" || p.Password != "" {
			auth = &proxy.Auth{User: p.Login, Password: p.Password}
		}
		d, err := proxy.SOCKS5("tcp", addr, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("proxy dialer: %w", err)
		}
		dc, ok := d.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("proxy dialer missing context")
		}
		opts.Resolver = dcs.Plain(dcs.PlainOptions{Dial: dc.DialContext})
		log.Debug("telegram via proxy", zap.String("account", acc.Name), zap.String("proxy", addr))
	}
	return td.NewClient(creds.APIID, creds.APIHash, opts), nil
}

// authorizeBot входит по токену бота, если сессия ещё не авторизована.
func authorizeBot(ctx context.Context, client *td.Client, token string) error {
	status, err := client.Auth().Status(ctx)
	if err != nil {
		return fmt.Errorf("auth status: %w", err)
	}
	if status.Authorized {
		return nil
	}
	if token == "" {
		return fmt.Errorf("bot token is empty")
	}
	if _, err := client.Auth().Bot(ctx, token); err != nil {
		return fmt.Errorf("bot auth: %w", err)
	}
	return nil
}
