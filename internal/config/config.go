// Package config loads the server configuration from YAML with environment
// variable overrides. Durations are kept as strings in the file and parsed
// through the accessor helpers.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Storage struct {
		// memory | postgres
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	JWT struct {
		Issuer     string `yaml:"issuer"`
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
	} `yaml:"jwt"`

	Auth struct {
		// RequireScope convierte una negociación vacía en invalid_scope.
		RequireScope bool `yaml:"require_scope"`

		// ReuseRefreshTokens: true = el refresh token sobrevive a la
		// redención (no rota). Default false (single-use).
		ReuseRefreshTokens bool `yaml:"reuse_refresh_tokens"`

		// ScopeStrategy: intersect-when-present (default) | always-intersect.
		// Decide si los scopes del usuario acotan siempre o solo cuando
		// tiene authorities SCOPE_*.
		ScopeStrategy string `yaml:"scope_strategy"`

		IntrospectBasicUser string `yaml:"introspect_basic_user"`
		IntrospectBasicPass string `yaml:"introspect_basic_pass"`
	} `yaml:"auth"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Token   struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"token"`
	} `yaml:"rate"`
}

const (
	ScopeStrategyIntersectWhenPresent = "intersect-when-present"
	ScopeStrategyAlwaysIntersect      = "always-intersect"
)

// Load lee el YAML (path vacío = solo defaults), aplica defaults y
// overrides de entorno.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}
	c.applyDefaults()
	c.applyEnv()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":9000"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Postgres.MaxOpenConns == 0 {
		c.Storage.Postgres.MaxOpenConns = 5
	}
	if c.Storage.Postgres.MaxIdleConns == 0 {
		c.Storage.Postgres.MaxIdleConns = 2
	}
	if c.Storage.Postgres.ConnMaxLifetime == "" {
		c.Storage.Postgres.ConnMaxLifetime = "30m"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "littlejohn:"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "http://localhost:9000"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "15m"
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = "720h" // 30d
	}
	if c.Auth.ScopeStrategy == "" {
		c.Auth.ScopeStrategy = ScopeStrategyIntersectWhenPresent
	}
	if c.Rate.Token.Limit == 0 {
		c.Rate.Token.Limit = 60
	}
	if c.Rate.Token.Window == "" {
		c.Rate.Token.Window = "1m"
	}
}

func (c *Config) applyEnv() {
	setStr(&c.App.Env, "APP_ENV")
	setStr(&c.Log.Level, "LOG_LEVEL")
	setStr(&c.Server.Addr, "SERVER_ADDR")
	setStr(&c.Storage.Driver, "STORAGE_DRIVER")
	setStr(&c.Storage.DSN, "STORAGE_DSN")
	setStr(&c.Cache.Kind, "CACHE_KIND")
	setStr(&c.Cache.Redis.Addr, "REDIS_ADDR")
	setInt(&c.Cache.Redis.DB, "REDIS_DB")
	setStr(&c.JWT.Issuer, "JWT_ISSUER")
	setStr(&c.JWT.AccessTTL, "JWT_ACCESS_TTL")
	setStr(&c.JWT.RefreshTTL, "JWT_REFRESH_TTL")
	setBool(&c.Auth.RequireScope, "AUTH_REQUIRE_SCOPE")
	setBool(&c.Auth.ReuseRefreshTokens, "AUTH_REUSE_REFRESH_TOKENS")
	setStr(&c.Auth.ScopeStrategy, "AUTH_SCOPE_STRATEGY")
	setStr(&c.Auth.IntrospectBasicUser, "AUTH_INTROSPECT_BASIC_USER")
	setStr(&c.Auth.IntrospectBasicPass, "AUTH_INTROSPECT_BASIC_PASS")
	setBool(&c.Rate.Enabled, "RATE_ENABLED")
	setInt(&c.Rate.Token.Limit, "RATE_TOKEN_LIMIT")
	setStr(&c.Rate.Token.Window, "RATE_TOKEN_WINDOW")
}

func setStr(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// parseDur con fallback para strings inválidos.
func parseDur(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func (c *Config) AccessTTL() time.Duration  { return parseDur(c.JWT.AccessTTL, 15*time.Minute) }
func (c *Config) RefreshTTL() time.Duration { return parseDur(c.JWT.RefreshTTL, 720*time.Hour) }

func (c *Config) MemoryCacheTTL() time.Duration {
	return parseDur(c.Cache.Memory.DefaultTTL, 2*time.Minute)
}

func (c *Config) PostgresConnMaxLifetime() time.Duration {
	return parseDur(c.Storage.Postgres.ConnMaxLifetime, 30*time.Minute)
}

func (c *Config) RateTokenWindow() time.Duration {
	return parseDur(c.Rate.Token.Window, time.Minute)
}
