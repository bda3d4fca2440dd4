package models

// Account: учётная запись платформы, через которую публикуются посты.
// Token для Telegram и Discord это токен бота, для webhook секрет.
type Account struct {
	Name   string `json:"name" mapstructure:"name" validate:"required"`
	Token  string `json:"-" mapstructure:"token"`
	Target string `json:"target" mapstructure:"target"` // канал, чат или URL публикации
	Proxy  *Proxy `json:"proxy" mapstructure:"proxy"`
}
