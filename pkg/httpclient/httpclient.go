package httpclient

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

type leveledZap struct {
	inner *zap.SugaredLogger
}

// ошибки отдельных попыток логируем как WARN: после них будет повтор
func (l leveledZap) Error(msg string, keysAndValues ...interface{}) {
	l.inner.Warnw(msg, keysAndValues...)
}

func (l leveledZap) Warn(msg string, keysAndValues ...interface{}) {
	l.inner.Warnw(msg, keysAndValues...)
}

func (l leveledZap) Info(msg string, keysAndValues ...interface{}) {
	l.inner.Infow(msg, keysAndValues...)
}

func (l leveledZap) Debug(msg string, keysAndValues ...interface{}) {
	l.inner.Debugw(msg, keysAndValues...)
}

// New возвращает http.Client с повторами на сетевых ошибках, 5xx и 429 (учитывая Retry-After).
func New(log *zap.Logger, timeout time.Duration, retries int) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = retries
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(leveledZap{log.Named("http").Sugar()})
	client := retryClient.StandardClient()
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	client.Timeout = timeout
	return client
}
