package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	Telegram struct {
		Token       string
		AdminChatID int64 `mapstructure:"admin_chat_id"`
	} `mapstructure:"telegram"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Backend struct {
		URL     string        `mapstructure:"url"`
		Token   string        `mapstructure:"token"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"backend"`

	Payments struct {
		Provider     string        `mapstructure:"provider"` // sandbox | http | stripe
		BaseURL      string        `mapstructure:"base_url"`
		APIKey       string        `mapstructure:"api_key"`
		PriceID      string        `mapstructure:"price_id"`
		SuccessURL   string        `mapstructure:"success_url"`
		CancelURL    string        `mapstructure:"cancel_url"`
		Timeout      time.Duration `mapstructure:"timeout"`
		PollInterval time.Duration `mapstructure:"poll_interval"`
		SuccessDelay time.Duration `mapstructure:"success_delay"`
		MaxWait      time.Duration `mapstructure:"max_wait"`
	} `mapstructure:"payments"`

	Tracing struct {
		Enabled bool
		Stdout  bool
	} `mapstructure:"tracing"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("payments.provider", "sandbox")
	v.SetDefault("payments.base_url", "http://localhost:8080")
	v.SetDefault("payments.timeout", 10*time.Second)
	v.SetDefault("payments.poll_interval", 3*time.Second)
	v.SetDefault("payments.success_delay", 2500*time.Millisecond)
	v.SetDefault("payments.max_wait", 30*time.Minute)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.stdout", true)
}

// Load читает YAML-файл и переопределения из окружения (APP_*, например APP_TELEGRAM_TOKEN).
// Если рядом есть .env, он загружается в окружение до чтения.
func Load(path string) (Config, error) {
	var c Config
	if err := loadDotEnv(".env"); err != nil {
		return c, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	if err := c.validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) validate() error {
	var errs []error
	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("config: telegram.token is required"))
	}
	if c.Postgres.DSN == "" {
		errs = append(errs, errors.New("config: postgres.dsn is required"))
	}
	if c.Backend.URL == "" {
		errs = append(errs, errors.New("config: backend.url is required"))
	}
	switch c.Payments.Provider {
	case "sandbox":
	case "http":
		if c.Payments.BaseURL == "" {
			errs = append(errs, errors.New("config: payments.base_url is required for http provider"))
		}
	case "stripe":
		if c.Payments.APIKey == "" || c.Payments.PriceID == "" {
			errs = append(errs, errors.New("config: payments.api_key and payments.price_id are required for stripe"))
		}
	default:
		errs = append(errs, errors.New("config: unknown payments.provider "+c.Payments.Provider))
	}
	if c.Payments.PollInterval <= 0 {
		errs = append(errs, errors.New("config: payments.poll_interval must be > 0"))
	}
	return errors.Join(errs...)
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}
