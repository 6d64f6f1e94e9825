package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string
	DBPath        string
	JWTSecret     string
	TokenTTL      time.Duration
	CORSOrigins   []string
	MigrationsDir string
	LogLevel      slog.Level
	RewardTimeout time.Duration
}

var defaultCORSOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. The file is CONFIG_FILE
// if set, otherwise ./timetrack.yaml when present.
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault("port", "8080")
	v.SetDefault("db_path", "./data/timetrack.db")
	v.SetDefault("jwt_secret", "change-this-secret")
	v.SetDefault("token_ttl_hours", 72)
	v.SetDefault("cors_origins", strings.Join(defaultCORSOrigins, ","))
	v.SetDefault("migrations_dir", "./migrations")
	v.SetDefault("log_level", "info")
	v.SetDefault("reward_timeout", "2s")
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("timetrack")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return Config{}, fmt.Errorf("log_level: %w", err)
	}

	ttlHours := v.GetInt("token_ttl_hours")
	if ttlHours <= 0 {
		return Config{}, fmt.Errorf("token_ttl_hours must be positive, got %d", ttlHours)
	}

	rewardTimeout := v.GetDuration("reward_timeout")
	if rewardTimeout <= 0 {
		return Config{}, fmt.Errorf("reward_timeout must be a positive duration, got %q", v.GetString("reward_timeout"))
	}

	return Config{
		Port:          v.GetString("port"),
		DBPath:        v.GetString("db_path"),
		JWTSecret:     v.GetString("jwt_secret"),
		TokenTTL:      time.Duration(ttlHours) * time.Hour,
		CORSOrigins:   stringList(v.Get("cors_origins"), defaultCORSOrigins),
		MigrationsDir: v.GetString("migrations_dir"),
		LogLevel:      level,
		RewardTimeout: rewardTimeout,
	}, nil
}

// stringList accepts a comma separated string (environment) or a YAML
// sequence.
func stringList(value interface{}, fallback []string) []string {
	var parts []string
	switch typed := value.(type) {
	case string:
		parts = strings.Split(typed, ",")
	case []interface{}:
		for _, item := range typed {
			parts = append(parts, fmt.Sprint(item))
		}
	case []string:
		parts = typed
	}

	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
