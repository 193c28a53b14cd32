package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"ticketgate/internal/domain"
)

// Locker is a single-holder lease used to keep periodic jobs from running on
// several stations at once.
type Locker struct {
	cli *redis.Client
	ns  string
}

func NewLocker(c *Client) *Locker {
	return &Locker{cli: c.cli, ns: "lock:"}
}

// TryLock returns a release token when the lease was acquired, or "" when another holder has it.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.cli.SetNX(ctx, l.ns+key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("%w: lock %q: %v", domain.ErrStore, key, err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *Locker) Unlock(ctx context.Context, key, token string) error {
	if _, err := luaUnlock.Run(ctx, l.cli, []string{l.ns + key}, token).Result(); err != nil {
		return fmt.Errorf("%w: unlock %q: %v", domain.ErrStore, key, err)
	}
	return nil
}
