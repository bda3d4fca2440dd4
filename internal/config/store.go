package config

import (
	"fmt"
	"sync/atomic"
)

// Store хранит текущий снимок конфигурации. Снимок неизменяем:
// компоненты читают его без блокировок, замена происходит только через Reload.
type Store struct {
	path string
	cur  atomic.Pointer[Config]
}

// NewStore загружает конфигурацию из файла.
func NewStore(path string) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path}
	s.cur.Store(cfg)
	return s, nil
}

// StaticStore оборачивает готовый снимок; Reload для него недоступен.
func StaticStore(cfg *Config) *Store {
	s := &Store{}
	s.cur.Store(cfg)
	return s
}

func (s *Store) Current() *Config {
	return s.cur.Load()
}

// Group возвращает настройки группы из текущего снимка.
func (s *Store) Group(name string) (*GroupConfig, bool) {
	return s.Current().Group(name)
}

// Reload перечитывает файл. При ошибке остаётся прежний снимок.
func (s *Store) Reload() (*Config, error) {
	if s.path == "" {
		return nil, fmt.Errorf("config store has no source file")
	}
	cfg, err := Load(s.path)
	if err != nil {
		return nil, err
	}
	s.cur.Store(cfg)
	return cfg, nil
}
