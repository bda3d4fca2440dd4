package models

import "time"

// GlobalGroup в поле AccountGroup означает блокировку во всех группах.
const GlobalGroup = ""

// BlacklistEntry: отправитель, которому запрещено присылать заявки.
type BlacklistEntry struct {
	ID           int64     `json:"id"`
	Sender       string    `json:"sender"`
	AccountGroup string    `json:"account_group"`
	Reason       string    `json:"reason"`
	Actor        string    `json:"actor"`
	CreatedAt    time.Time `json:"created_at"`
}
