package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.App.Env != "dev" || c.Log.Level != "info" {
		t.Fatalf("app defaults: %+v", c.App)
	}
	if c.Server.Addr != ":9000" {
		t.Fatalf("addr default: %q", c.Server.Addr)
	}
	if c.Storage.Driver != "memory" {
		t.Fatalf("storage default: %q", c.Storage.Driver)
	}
	if c.JWT.Issuer != "http://localhost:9000" {
		t.Fatalf("issuer default: %q", c.JWT.Issuer)
	}
	if c.Auth.ScopeStrategy != ScopeStrategyIntersectWhenPresent {
		t.Fatalf("scope strategy default: %q", c.Auth.ScopeStrategy)
	}
	if c.AccessTTL() != 15*time.Minute {
		t.Fatalf("access ttl default: %v", c.AccessTTL())
	}
	if c.RefreshTTL() != 720*time.Hour {
		t.Fatalf("refresh ttl default: %v", c.RefreshTTL())
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
app:
  env: prod
server:
  addr: ":8088"
storage:
  driver: postgres
  dsn: postgres://localhost/littlejohn
jwt:
  issuer: https://auth.example.com
  access_ttl: 5m
auth:
  require_scope: true
  reuse_refresh_tokens: true
rate:
  enabled: true
  token:
    limit: 10
    window: 30s
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.App.Env != "prod" || c.Server.Addr != ":8088" {
		t.Fatalf("yaml values not applied: %+v", c)
	}
	if c.Storage.Driver != "postgres" || c.Storage.DSN == "" {
		t.Fatalf("storage: %+v", c.Storage)
	}
	if c.JWT.Issuer != "https://auth.example.com" {
		t.Fatalf("issuer: %q", c.JWT.Issuer)
	}
	if c.AccessTTL() != 5*time.Minute {
		t.Fatalf("access ttl: %v", c.AccessTTL())
	}
	if !c.Auth.RequireScope || !c.Auth.ReuseRefreshTokens {
		t.Fatalf("auth flags: %+v", c.Auth)
	}
	if !c.Rate.Enabled || c.Rate.Token.Limit != 10 || c.RateTokenWindow() != 30*time.Second {
		t.Fatalf("rate: %+v", c.Rate)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("JWT_ACCESS_TTL", "1m")
	t.Setenv("AUTH_SCOPE_STRATEGY", ScopeStrategyAlwaysIntersect)

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Addr != ":7070" {
		t.Fatalf("env override addr: %q", c.Server.Addr)
	}
	if c.AccessTTL() != time.Minute {
		t.Fatalf("env override ttl: %v", c.AccessTTL())
	}
	if c.Auth.ScopeStrategy != ScopeStrategyAlwaysIntersect {
		t.Fatalf("env override strategy: %q", c.Auth.ScopeStrategy)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Fatalf("missing file must error")
	}
}

func TestDurationAccessors_InvalidFallback(t *testing.T) {
	c, _ := Load("")
	c.JWT.AccessTTL = "garbage"
	if c.AccessTTL() != 15*time.Minute {
		t.Fatalf("invalid duration must fall back to default: %v", c.AccessTTL())
	}
}
