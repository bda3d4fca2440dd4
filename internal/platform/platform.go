package platform

import (
	"context"
	"time"

	"wall_go/models"
)

// InboundMessage: сообщение пользователя, пришедшее через Receiver.
type InboundMessage struct {
	Group     string
	Sender    string
	Ref       string // ID сообщения в мессенджере
	Text      string
	Media     []string
	ArrivedAt time.Time
}

// Retraction: пользователь удалил ранее отправленное сообщение.
type Retraction struct {
	Group  string
	Sender string
	Ref    string
}

// CommandEvent: текст команды модератора, например "12 approve".
type CommandEvent struct {
	Group string
	Actor string
	Text  string
}

// Sink принимает события от Receiver. Ответ на команду отправляется обратно в чат модераторов.
type Sink interface {
	HandleMessage(ctx context.Context, msg InboundMessage)
	HandleRetraction(ctx context.Context, r Retraction)
	HandleCommand(ctx context.Context, cmd CommandEvent) string
}

// Receiver описывает транспорт бота: входящие события и исходящие сообщения.
type Receiver interface {
	Run(ctx context.Context, sink Sink) error
	SendPrivate(ctx context.Context, sender, text string) error
	SendGroup(ctx context.Context, chat, text string) error
}

// Publisher публикует пост на одной площадке от имени аккаунта.
// Ошибки оборачивают models.ErrDeliveryTransient или models.ErrDeliveryTerminal.
type Publisher interface {
	Publish(ctx context.Context, account models.Account, c Content) (string, error)
	Comment(ctx context.Context, account models.Account, externalID, text string) error
}

// Notifier доставляет сообщения модераторам группы.
type Notifier interface {
	NotifyModerators(ctx context.Context, group, text string) error
}

// Classification: ответ сервиса классификации.
type Classification struct {
	IsSafe     bool   `json:"is_safe"`
	Anonymous  *bool  `json:"anonymous"` // nil: сервис не распознал намерение
	IsComplete bool   `json:"is_complete"`
	Reason     string `json:"reason"`
}

// Classifier оценивает текст заявки.
type Classifier interface {
	Classify(ctx context.Context, text string, media []string) (*Classification, error)
}

// Renderer строит визуальную версию заявки и возвращает ссылку на неё.
type Renderer interface {
	Render(ctx context.Context, s *models.Submission) (string, error)
}

// Processor: одна стадия обработки заявки.
type Processor interface {
	Name() string
	Process(ctx context.Context, job *Job) error
}
