// Package kv is the local key/value store holding settings and the offline
// queue. Values are JSON documents.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for unknown keys.
var ErrNotFound = errors.New("kv: key not found")

// Store is a durable map of JSON documents.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close(ctx context.Context) error
}

// Config selects and tunes a driver.
type Config struct {
	Driver string
	Redis  *RedisConfig
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}
