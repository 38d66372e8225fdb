package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host               string
	Port               int
	CORSAllowedOrigins []string
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LockTimeout     time.Duration
	AutoMigrate     bool
}

type TxConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Jitter      time.Duration
}

type BalancesConfig struct {
	AllowDepositOnBehalf bool
	DepositCapRatio      decimal.Decimal
}

type ReportsConfig struct {
	DefaultClientLimit int
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Tx          TxConfig
	Balances    BalancesConfig
	Reports     ReportsConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 3001)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DB_LOCK_TIMEOUT", "5s")
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("TX_MAX_ATTEMPTS", 3)
	v.SetDefault("TX_RETRY_BASE_DELAY", "10ms")
	v.SetDefault("TX_RETRY_JITTER", "100ms")
	v.SetDefault("DEPOSIT_ALLOW_ON_BEHALF", false)
	v.SetDefault("DEPOSIT_CAP_RATIO", "0.25")
	v.SetDefault("REPORTS_DEFAULT_CLIENT_LIMIT", 2)

	_ = v.ReadInConfig()

	capRatio, err := decimal.NewFromString(strings.TrimSpace(v.GetString("DEPOSIT_CAP_RATIO")))
	if err != nil {
		return nil, fmt.Errorf("DEPOSIT_CAP_RATIO: %w", err)
	}

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host:               v.GetString("HTTP_HOST"),
			Port:               v.GetInt("HTTP_PORT"),
			CORSAllowedOrigins: parseList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			LockTimeout:     v.GetDuration("DB_LOCK_TIMEOUT"),
			AutoMigrate:     v.GetBool("DB_AUTO_MIGRATE"),
		},
		Tx: TxConfig{
			MaxAttempts: v.GetInt("TX_MAX_ATTEMPTS"),
			BaseDelay:   v.GetDuration("TX_RETRY_BASE_DELAY"),
			Jitter:      v.GetDuration("TX_RETRY_JITTER"),
		},
		Balances: BalancesConfig{
			AllowDepositOnBehalf: v.GetBool("DEPOSIT_ALLOW_ON_BEHALF"),
			DepositCapRatio:      capRatio,
		},
		Reports: ReportsConfig{
			DefaultClientLimit: v.GetInt("REPORTS_DEFAULT_CLIENT_LIMIT"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Tx.MaxAttempts < 1 {
		return fmt.Errorf("TX_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.Tx.BaseDelay < 0 || cfg.Tx.Jitter < 0 {
		return fmt.Errorf("TX_RETRY_BASE_DELAY and TX_RETRY_JITTER must not be negative")
	}
	if !cfg.Balances.DepositCapRatio.IsPositive() || cfg.Balances.DepositCapRatio.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("DEPOSIT_CAP_RATIO must be in (0, 1]")
	}
	if cfg.Reports.DefaultClientLimit < 1 {
		return fmt.Errorf("REPORTS_DEFAULT_CLIENT_LIMIT must be at least 1")
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
