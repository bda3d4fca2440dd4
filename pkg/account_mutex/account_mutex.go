package account_mutex

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Locks: мьютексы аккаунтов публикации. Один аккаунт не публикует два поста одновременно.
type Locks struct {
	log *zap.Logger

	globalMu     sync.Mutex
	accountLocks map[string]*sync.Mutex
}

func New(log *zap.Logger) *Locks {
	return &Locks{log: log.Named("mutex"), accountLocks: make(map[string]*sync.Mutex)}
}

// LockAccount пытается захватить мьютекс аккаунта.
// Если аккаунт уже используется, возвращается ошибка.
func (l *Locks) LockAccount(account string) error {
	l.globalMu.Lock()
	lock, ok := l.accountLocks[account]
	if !ok {
		lock = &sync.Mutex{}
		l.accountLocks[account] = lock
	}
	l.globalMu.Unlock()

	if !lock.TryLock() {
		l.log.Debug("account busy", zap.String("account", account))
		return fmt.Errorf("аккаунт %s уже используется", account)
	}
	l.log.Debug("account locked", zap.String("account", account))
	return nil
}

// UnlockAccount освобождает мьютекс аккаунта.
func (l *Locks) UnlockAccount(account string) {
	l.globalMu.Lock()
	lock := l.accountLocks[account]
	l.globalMu.Unlock()
	if lock != nil {
		lock.Unlock()
		l.log.Debug("account unlocked", zap.String("account", account))
	}
}
