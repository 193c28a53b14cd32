package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ticketgate/internal/domain"
	"ticketgate/internal/domain/model"
	"ticketgate/internal/domain/ports/repository"
)

var (
	_ repository.TicketStore  = (*TicketStore)(nil)
	_ repository.Transitioner = (*TicketStore)(nil)
	_ repository.Lister       = (*TicketStore)(nil)
)

// TicketStore maps a path "Partition/key" onto a row of ticket_entries.
type TicketStore struct {
	pool *pgxpool.Pool
	tx   *TxManager
}

func NewTicketStore(pool *pgxpool.Pool) *TicketStore {
	return &TicketStore{pool: pool, tx: NewTxManager(pool)}
}

func (s *TicketStore) ReadIfExists(ctx context.Context, path string) (*repository.Snapshot, error) {
	part, key, err := model.SplitPath(path)
	if err != nil {
		return nil, err
	}
	const q = `SELECT value::text FROM ticket_entries WHERE partition = $1 AND key = $2;`
	var v string
	err = s.pool.QueryRow(ctx, q, string(part), key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %v", domain.ErrStore, path, err)
	}
	return &repository.Snapshot{Path: path, Value: []byte(v)}, nil
}

func (s *TicketStore) Write(ctx context.Context, path string, value []byte) error {
	part, key, err := model.SplitPath(path)
	if err != nil {
		return err
	}
	if err := upsert(ctx, s.pool, part, key, value); err != nil {
		return fmt.Errorf("%w: write %q: %v", domain.ErrStore, path, err)
	}
	return nil
}

func (s *TicketStore) Delete(ctx context.Context, path string) error {
	part, key, err := model.SplitPath(path)
	if err != nil {
		return err
	}
	const q = `DELETE FROM ticket_entries WHERE partition = $1 AND key = $2;`
	if _, err := s.pool.Exec(ctx, q, string(part), key); err != nil {
		return fmt.Errorf("%w: delete %q: %v", domain.ErrStore, path, err)
	}
	return nil
}

// Transition claims the source row with DELETE ... RETURNING so that only one
// concurrent transaction gets it, then writes the destination in the same transaction.
func (s *TicketStore) Transition(ctx context.Context, from, to string) (*repository.Snapshot, error) {
	fp, fk, err := model.SplitPath(from)
	if err != nil {
		return nil, err
	}
	tp, tk, err := model.SplitPath(to)
	if err != nil {
		return nil, err
	}

	var snap *repository.Snapshot
	err = s.tx.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx pgx.Tx) error {
		const claim = `DELETE FROM ticket_entries WHERE partition = $1 AND key = $2 RETURNING value::text;`
		var v string
		if err := tx.QueryRow(ctx, claim, string(fp), fk).Scan(&v); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		if err := upsert(ctx, tx, tp, tk, []byte(v)); err != nil {
			return err
		}
		snap = &repository.Snapshot{Path: from, Value: []byte(v)}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: transition %q: %v", domain.ErrStore, from, err)
	}
	return snap, nil
}

func (s *TicketStore) List(ctx context.Context, partition model.Partition) ([]string, error) {
	const q = `SELECT key FROM ticket_entries WHERE partition = $1 ORDER BY key;`
	rows, err := s.pool.Query(ctx, q, string(partition))
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", domain.ErrStore, partition, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("%w: list %s: %v", domain.ErrStore, partition, err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", domain.ErrStore, partition, err)
	}
	return keys, nil
}

func upsert(ctx context.Context, ex executor, part model.Partition, key string, value []byte) error {
	const q = `
INSERT INTO ticket_entries (partition, key, value, updated_at)
VALUES ($1, $2, $3::jsonb, now())
ON CONFLICT (partition, key) DO UPDATE SET
  value = EXCLUDED.value,
  updated_at = EXCLUDED.updated_at;
`
	_, err := ex.Exec(ctx, q, string(part), key, string(value))
	return err
}
