package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCooldown = time.Minute

// setNXer is the slice of the client the throttle needs.
type setNXer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// ResetThrottle allows one password-reset request per email per cooldown.
// Key format: reset:<lowercased email>
type ResetThrottle struct {
	client   setNXer
	cooldown time.Duration
}

// NewResetThrottle wraps client. A non-positive cooldown falls back to one minute.
func NewResetThrottle(client setNXer, cooldown time.Duration) *ResetThrottle {
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &ResetThrottle{client: client, cooldown: cooldown}
}

// Allow claims the cooldown slot for email. It reports false while a previous
// claim is still live.
func (t *ResetThrottle) Allow(ctx context.Context, email string) (bool, error) {
	ok, err := t.client.SetNX(ctx, t.key(email), "1", t.cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("reset throttle: %w", err)
	}
	return ok, nil
}

func (t *ResetThrottle) key(email string) string {
	return "reset:" + strings.ToLower(email)
}
