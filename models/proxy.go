package models

// Proxy: SOCKS5-прокси, через который аккаунт подключается к Telegram.
type Proxy struct {
	IP       string `json:"ip" mapstructure:"ip" validate:"required"`
	Port     int    `json:"port" mapstructure:"port" validate:"required"`
	Login    string `json:"login" mapstructure:"login"`
	Password string `json:"-" mapstructure:"password"`
}
