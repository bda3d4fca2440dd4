package models

import "time"

// StoredPost: одобренная заявка в очереди на публикацию.
// Статусы доставки по платформам хранятся в PublishRecord.
type StoredPost struct {
	SubmissionID int64     `json:"submission_id"`
	AccountGroup string    `json:"account_group"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
	Dispatched   bool      `json:"dispatched"` // хотя бы одна рассылка уже забирала пост
}
