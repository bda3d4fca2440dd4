package models

import "time"

// MessageCacheEntry: буферизованное сообщение, ожидающее закрытия окна.
// WindowID совпадает с зарезервированным ID будущей заявки.
type MessageCacheEntry struct {
	ID           int64     `json:"id"`
	WindowID     int64     `json:"window_id"`
	Sender       string    `json:"sender"`
	AccountGroup string    `json:"account_group"`
	MessageRef   string    `json:"message_ref"`
	Text         string    `json:"text"`
	Media        []string  `json:"media"`
	ArrivedAt    time.Time `json:"arrived_at"`
}
