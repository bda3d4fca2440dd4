package models

import (
	"fmt"
	"strings"
	"time"
)

// RawMessage: одно исходное сообщение отправителя внутри окна агрегации.
type RawMessage struct {
	Ref       string    `json:"ref"` // ID сообщения на стороне мессенджера, нужен для отзыва
	Text      string    `json:"text"`
	Media     []string  `json:"media,omitempty"`
	ArrivedAt time.Time `json:"arrived_at"`
}

// Submission: объединённая заявка пользователя.
// ID резервируется при открытии окна агрегации, строка в БД появляется при его закрытии.
type Submission struct {
	ID            int64            `json:"id"`
	Sender        string           `json:"sender"`
	AccountGroup  string           `json:"account_group"`
	Messages      []RawMessage     `json:"messages"`
	Text          string           `json:"text"`
	Media         []string         `json:"media"`
	IsAnonymous   bool             `json:"is_anonymous"`
	IsSafe        bool             `json:"is_safe"`
	IsComplete    bool             `json:"is_complete"`
	NeedsRerender bool             `json:"needs_rerender"`
	ArtifactRef   string           `json:"artifact_ref"`
	Status        SubmissionStatus `json:"status"`
	PublishNumber *int64           `json:"publish_number"` // nil до одобрения
	Comment       string           `json:"comment"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Summary: краткое описание заявки для карточки модераторам.
func (s *Submission) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d от %s", s.ID, s.Sender)
	if s.IsAnonymous {
		b.WriteString(" (анонимно)")
	}
	if !s.IsSafe {
		b.WriteString(" [небезопасно]")
	}
	if s.NeedsRerender {
		b.WriteString(" [нужен rerender]")
	}
	b.WriteString("\n")
	b.WriteString(s.Text)
	for _, m := range s.Media {
		b.WriteString("\n")
		b.WriteString(m)
	}
	if s.ArtifactRef != "" {
		b.WriteString("\n")
		b.WriteString(s.ArtifactRef)
	}
	return b.String()
}
