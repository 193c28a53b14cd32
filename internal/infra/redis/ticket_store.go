package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"

	"ticketgate/internal/domain"
	"ticketgate/internal/domain/model"
	"ticketgate/internal/domain/ports/repository"
)

var (
	_ repository.TicketStore  = (*TicketStore)(nil)
	_ repository.Transitioner = (*TicketStore)(nil)
	_ repository.Lister       = (*TicketStore)(nil)
)

// DefaultNamespace prefixes every ticket path stored in Redis.
const DefaultNamespace = "tickets:"

// TicketStore keeps each path as a plain string key holding the record JSON.
type TicketStore struct {
	cli *redis.Client
	ns  string
}

func NewTicketStore(c *Client, namespace string) *TicketStore {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &TicketStore{cli: c.cli, ns: namespace}
}

func (s *TicketStore) key(path string) string { return s.ns + path }

func (s *TicketStore) ReadIfExists(ctx context.Context, path string) (*repository.Snapshot, error) {
	v, err := s.cli.Get(ctx, s.key(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %q: %v", domain.ErrStore, path, err)
	}
	return &repository.Snapshot{Path: path, Value: v}, nil
}

func (s *TicketStore) Write(ctx context.Context, path string, value []byte) error {
	if err := s.cli.Set(ctx, s.key(path), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: set %q: %v", domain.ErrStore, path, err)
	}
	return nil
}

func (s *TicketStore) Delete(ctx context.Context, path string) error {
	if err := s.cli.Del(ctx, s.key(path)).Err(); err != nil {
		return fmt.Errorf("%w: del %q: %v", domain.ErrStore, path, err)
	}
	return nil
}

// luaTransition moves KEYS[1] to KEYS[2] and returns the moved value, or nil
// when KEYS[1] does not exist. Scripts run atomically on the server.
var luaTransition = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if not v then
	return false
end
redis.call("SET", KEYS[2], v)
redis.call("DEL", KEYS[1])
return v`)

func (s *TicketStore) Transition(ctx context.Context, from, to string) (*repository.Snapshot, error) {
	res, err := luaTransition.Run(ctx, s.cli, []string{s.key(from), s.key(to)}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: transition %q: %v", domain.ErrStore, from, err)
	}
	v, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("%w: transition %q: unexpected reply %T", domain.ErrStore, from, res)
	}
	return &repository.Snapshot{Path: from, Value: []byte(v)}, nil
}

func (s *TicketStore) List(ctx context.Context, partition model.Partition) ([]string, error) {
	prefix := s.key(string(partition) + "/")
	var keys []string
	it := s.cli.Scan(ctx, 0, escapeGlob(prefix)+"*", 200).Iterator()
	for it.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(it.Val(), prefix))
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan %s: %v", domain.ErrStore, partition, err)
	}
	return keys, nil
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}
