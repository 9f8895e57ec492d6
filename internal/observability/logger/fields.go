package logger

import "go.uber.org/zap"

// Campos estándar — HTTP

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func Bytes(v int) zap.Field        { return zap.Int("bytes", v) }
func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }

// Campos estándar — dominio OAuth2

func ClientID(v string) zap.Field  { return zap.String("client_id", v) }
func GrantType(v string) zap.Field { return zap.String("grant_type", v) }
func Subject(v string) zap.Field   { return zap.String("sub", v) }
func Scope(v string) zap.Field     { return zap.String("scope", v) }
func KID(v string) zap.Field       { return zap.String("kid", v) }

// Campos estándar — estructura

func Op(v string) zap.Field    { return zap.String("op", v) }
func Layer(v string) zap.Field { return zap.String("layer", v) }
func Err(err error) zap.Field  { return zap.Error(err) }

// Genéricos

func String(key, v string) zap.Field { return zap.String(key, v) }
func Int(key string, v int) zap.Field { return zap.Int(key, v) }
