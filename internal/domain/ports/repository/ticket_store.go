package repository

import (
	"context"

	"ticketgate/internal/domain/model"
)

// Snapshot is the value stored at a path at the time it was read.
// Value is the opaque JSON document; it is copied verbatim between partitions.
type Snapshot struct {
	Path  string
	Value []byte
}

// TicketStore is the port over the remote keyed store holding the Unused and Used partitions.
// Each call is independently awaitable and independently failable; there is no
// transaction spanning paths. Implementations wrap backend failures with domain.ErrStore.
type TicketStore interface {
	// ReadIfExists returns nil, nil when nothing is stored at path.
	ReadIfExists(ctx context.Context, path string) (*Snapshot, error)
	Write(ctx context.Context, path string, value []byte) error
	Delete(ctx context.Context, path string) error
}

// Transitioner is implemented by stores that can move an entry between paths
// so that at most one concurrent caller observes it as present.
type Transitioner interface {
	// Transition moves the value at from to to. It returns nil, nil when
	// from is absent or the entry was already claimed by another caller.
	Transition(ctx context.Context, from, to string) (*Snapshot, error)
}

// Lister is implemented by stores that can enumerate the derived keys of a partition.
type Lister interface {
	List(ctx context.Context, partition model.Partition) ([]string, error)
}
