package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"wall_go/models"
)

// Значения по умолчанию для групп, в которых параметр не задан.
const (
	DefaultAggregationWindow     = 3 * time.Minute
	DefaultMaxPostStack          = 5
	DefaultRetryInterval         = 10 * time.Minute
	DefaultMaxAttempts           = 3
	DefaultFailureAlertThreshold = 3
)

// DefaultStages: порядок стадий обработки, если он не переопределён.
var DefaultStages = []string{"safety", "anonymity", "completeness", "render"}

type Config struct {
	Database   DatabaseConfig `mapstructure:"database"`
	HTTP       HTTPConfig     `mapstructure:"http"`
	Log        LogConfig      `mapstructure:"log"`
	Redis      RedisConfig    `mapstructure:"redis"`
	Telegram   TelegramConfig `mapstructure:"telegram"`
	Classifier ServiceConfig  `mapstructure:"classifier"`
	Renderer   ServiceConfig  `mapstructure:"renderer"`
	Pipeline   PipelineConfig `mapstructure:"pipeline"`
	Groups     []GroupConfig  `mapstructure:"groups" validate:"required,min=1,unique=Name,dive"`

	byName map[string]*GroupConfig
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=postgres sqlite3"`
	DSN    string `mapstructure:"dsn" validate:"required"`
}

type HTTPConfig struct {
	Addr     string `mapstructure:"addr"`
	APIToken string `mapstructure:"api_token"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
	File   string `mapstructure:"file"`
}

// RedisConfig: при пустом URL счётчики сбоев живут в памяти процесса.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type TelegramConfig struct {
	APIID   int    `mapstructure:"api_id"`
	APIHash string `mapstructure:"api_hash"`
}

// ServiceConfig описывает внешний HTTP сервис (классификатор или рендер).
type ServiceConfig struct {
	URL     string        `mapstructure:"url" validate:"omitempty,url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type PipelineConfig struct {
	Stages                []string `mapstructure:"stages"`
	SensitiveWords        []string `mapstructure:"sensitive_words"`
	FailureAlertThreshold int      `mapstructure:"failure_alert_threshold" validate:"gte=0"`
}

// GroupConfig: настройки одной группы аккаунтов.
type GroupConfig struct {
	Name              string            `mapstructure:"name" validate:"required"`
	Receiver          ReceiverConfig    `mapstructure:"receiver"`
	Moderators        []string          `mapstructure:"moderators"`
	AggregationWindow time.Duration     `mapstructure:"aggregation_window"`
	MaxPostStack      int               `mapstructure:"max_post_stack" validate:"gte=0"`
	SendSchedule      []string          `mapstructure:"send_schedule" validate:"dive,hhmm"`
	RetryInterval     time.Duration     `mapstructure:"retry_interval"`
	QuickReplies      map[string]string `mapstructure:"quick_replies"`
	Platforms         []PlatformConfig  `mapstructure:"platforms" validate:"unique=Name,dive"`
}

type ReceiverConfig struct {
	Platform      string         `mapstructure:"platform"`
	Account       models.Account `mapstructure:"account" validate:"-"`
	ModeratorChat string         `mapstructure:"moderator_chat"`
}

// PlatformConfig: площадка публикации и её флаги оформления.
type PlatformConfig struct {
	Name        string           `mapstructure:"name" validate:"required"`
	Enabled     bool             `mapstructure:"enabled"`
	Accounts    []models.Account `mapstructure:"accounts" validate:"dive"`
	MaxAttempts int              `mapstructure:"max_attempts" validate:"gte=0"`
	WithNumber  bool             `mapstructure:"with_number"`
	AtSender    bool             `mapstructure:"at_sender"`
	WithComment bool             `mapstructure:"with_comment"`
	WithLinks   bool             `mapstructure:"with_links"`
	MinInterval time.Duration    `mapstructure:"min_interval"`
}

// Group ищет настройки группы по имени.
func (c *Config) Group(name string) (*GroupConfig, bool) {
	g, ok := c.byName[name]
	return g, ok
}

// IsModerator проверяет, входит ли отправитель в список модераторов группы.
func (g *GroupConfig) IsModerator(actor string) bool {
	for _, m := range g.Moderators {
		if m == actor {
			return true
		}
	}
	return false
}

// EnabledPlatforms возвращает включённые площадки в порядке конфигурации.
func (g *GroupConfig) EnabledPlatforms() []PlatformConfig {
	var out []PlatformConfig
	for _, p := range g.Platforms {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// Load читает .env, затем config-файл и переменные окружения с префиксом WALL_.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("WALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "file:wall.db?_busy_timeout=5000")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("classifier.timeout", "30s")
	v.SetDefault("renderer.timeout", "60s")
	v.SetDefault("pipeline.failure_alert_threshold", DefaultFailureAlertThreshold)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// finish подставляет значения по умолчанию, проверяет конфигурацию и строит индекс групп.
func (c *Config) finish() error {
	if len(c.Pipeline.Stages) == 0 {
		c.Pipeline.Stages = append([]string(nil), DefaultStages...)
	}
	for i := range c.Groups {
		g := &c.Groups[i]
		if g.AggregationWindow <= 0 {
			g.AggregationWindow = DefaultAggregationWindow
		}
		if g.MaxPostStack == 0 {
			g.MaxPostStack = DefaultMaxPostStack
		}
		if g.RetryInterval <= 0 {
			g.RetryInterval = DefaultRetryInterval
		}
		for j := range g.Platforms {
			if g.Platforms[j].MaxAttempts == 0 {
				g.Platforms[j].MaxAttempts = DefaultMaxAttempts
			}
		}
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	c.byName = make(map[string]*GroupConfig, len(c.Groups))
	for i := range c.Groups {
		c.byName[c.Groups[i].Name] = &c.Groups[i]
	}
	return nil
}

// New собирает конфигурацию из готовых значений (тесты, встраивание).
func New(cfg Config) (*Config, error) {
	if cfg.Database.Driver == "" {
		cfg.Database = DatabaseConfig{Driver: "sqlite3", DSN: ":memory:"}
	}
	if cfg.Log.Level == "" {
		cfg.Log = LogConfig{Level: "info", Format: "console"}
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("hhmm", validateHHMM)
	return v
}

// validateHHMM проверяет запись расписания вида "09:30".
func validateHHMM(fl validator.FieldLevel) bool {
	_, err := time.Parse("15:04", fl.Field().String())
	return err == nil
}
