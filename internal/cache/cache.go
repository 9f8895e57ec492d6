// Package cache define la interfaz de cache de bytes usada en el hot path
// del client registry. Implementaciones: memory (go-cache) y redis.
package cache

import "time"

type Cache interface {
	Get(k string) ([]byte, bool)
	Set(k string, v []byte, ttl time.Duration)
	Delete(k string)
}
