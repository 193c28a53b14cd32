package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"ticketgate/internal/domain"
	"ticketgate/internal/domain/model"
	"ticketgate/internal/domain/ports/repository"
)

var (
	_ repository.TicketStore  = (*TicketStore)(nil)
	_ repository.Transitioner = (*TicketStore)(nil)
	_ repository.Lister       = (*TicketStore)(nil)
)

// TicketStore keeps both partitions in process memory. It is meant for a
// single station and for tests.
type TicketStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewTicketStore() *TicketStore {
	return &TicketStore{data: make(map[string][]byte)}
}

func (s *TicketStore) ReadIfExists(ctx context.Context, path string) (*repository.Snapshot, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[path]
	if !ok {
		return nil, nil
	}
	return &repository.Snapshot{Path: path, Value: clone(v)}, nil
}

func (s *TicketStore) Write(ctx context.Context, path string, value []byte) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = clone(value)
	return nil
}

func (s *TicketStore) Delete(ctx context.Context, path string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, path)
	return nil
}

func (s *TicketStore) Transition(ctx context.Context, from, to string) (*repository.Snapshot, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[from]
	if !ok {
		return nil, nil
	}
	s.data[to] = v
	delete(s.data, from)
	return &repository.Snapshot{Path: from, Value: clone(v)}, nil
}

func (s *TicketStore) List(ctx context.Context, partition model.Partition) ([]string, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	prefix := string(partition) + "/"
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for p := range s.data {
		if k, ok := strings.CutPrefix(p, prefix); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored entries across both partitions.
func (s *TicketStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	return nil
}
