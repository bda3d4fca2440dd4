package models

import "time"

// AccountSession хранит сериализованную сессию Telegram для аккаунта.
type AccountSession struct {
	Account  string    `json:"account"`   // имя аккаунта из конфигурации
	DateTime time.Time `json:"date_time"` // время сохранения сессии
	DataJSON string    `json:"data_json"` // содержимое сессии в формате JSON
}
