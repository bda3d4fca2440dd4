package telegram

import (
	"context"
	"errors"

	"github.com/gotd/td/session"

	"wall_go/models"
	"wall_go/pkg/storage"
)

// DBSessionStorage хранит сессию gotd в таблице account_session.
type DBSessionStorage struct {
	DB      *storage.DB
	Account string
}

// LoadSession загружает текст сессии из БД.
func (s *DBSessionStorage) LoadSession(ctx context.Context) ([]byte, error) {
	if s == nil || s.DB == nil {
		return nil, session.ErrNotFound
	}
	stored, err := s.DB.LoadAccountSession(ctx, s.Account)
	if errors.Is(err, models.ErrNotFound) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(stored.DataJSON), nil
}

// StoreSession сохраняет текст сессии в БД.
func (s *DBSessionStorage) StoreSession(ctx context.Context, data []byte) error {
	if s == nil || s.DB == nil {
		return session.ErrNotFound
	}
	return s.DB.StoreAccountSession(ctx, s.Account, data)
}
