// Package storage persists absolute deadlines so a countdown survives a page reload.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"
)

// KeyPrefix namespaces PIX deadlines by session token.
const KeyPrefix = "pix_timer_end:"

// ErrNotFound is returned when no live deadline exists for a key.
var ErrNotFound = errors.New("storage: deadline not found")

// DeadlineStore keeps absolute deadlines keyed by an opaque string.
type DeadlineStore interface {
	Load(ctx context.Context, key string) (time.Time, error)
	Save(ctx context.Context, key string, deadline time.Time, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// PixKey returns the store key for a session token.
func PixKey(token string) string {
	return KeyPrefix + strings.TrimSpace(token)
}
