package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"maintflow/internal/bootstrap/logging"
	"maintflow/internal/errs"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Authz     AuthzConfig     `mapstructure:"authz"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type AuthzConfig struct {
	PolicyFile string `mapstructure:"policy_file"`
}

type DirectoryConfig struct {
	File string `mapstructure:"file"`
}

type LifecycleConfig struct {
	LaborRateCents       int64 `mapstructure:"labor_rate_cents"`
	PreventDoubleBooking bool  `mapstructure:"prevent_double_booking"`
}

type NotifyConfig struct {
	Driver        string        `mapstructure:"driver"`
	NATSURL       string        `mapstructure:"nats_url"`
	SubjectPrefix string        `mapstructure:"subject_prefix"`
	BatchSize     int           `mapstructure:"batch_size"`
	Interval      time.Duration `mapstructure:"interval"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("notify_driver", cfg.Notify.Driver),
	)

	return cfg, nil
}

func (c Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Lifecycle.LaborRateCents < 0 {
		return errors.New("lifecycle.labor_rate_cents must not be negative")
	}
	switch strings.ToLower(c.Notify.Driver) {
	case "log", "nats":
	default:
		return fmt.Errorf("notify.driver must be log or nats, got %q", c.Notify.Driver)
	}
	if c.Notify.RatePerSecond < 0 {
		return errors.New("notify.rate_per_second must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "maintflow")
	v.SetDefault("app.env", "local")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".maintflow/maintflow.sqlite")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("authz.policy_file", "configs/policy.toml")
	v.SetDefault("directory.file", "configs/directory.yaml")
	v.SetDefault("lifecycle.labor_rate_cents", 6000)
	v.SetDefault("lifecycle.prevent_double_booking", true)
	v.SetDefault("notify.driver", "log")
	v.SetDefault("notify.nats_url", "nats://127.0.0.1:4222")
	v.SetDefault("notify.subject_prefix", "maintflow.workorders")
	v.SetDefault("notify.batch_size", 100)
	v.SetDefault("notify.interval", "5s")
	v.SetDefault("notify.rate_per_second", 50)
	v.SetDefault("metrics.addr", "")
}
