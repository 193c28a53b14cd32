package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"ticketgate/internal/domain"
	"ticketgate/internal/domain/model"
	"ticketgate/internal/domain/ports/repository"
	"ticketgate/internal/infra/metrics"
)

var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileUseCase repairs entries left in both partitions by an interrupted
// redemption. Used is written before Unused is deleted, so such a ticket
// counts as redeemed and only its Unused copy is removed.
type ReconcileUseCase interface {
	Reconcile(ctx context.Context) (int, error)
}

type reconcileUC struct {
	store repository.TicketStore
	log   *zerolog.Logger
}

func NewReconcileUseCase(store repository.TicketStore, logger *zerolog.Logger) *reconcileUC {
	l := logger.With().Str("component", "ReconcileUseCase").Logger()
	return &reconcileUC{store: store, log: &l}
}

func (u *reconcileUC) Reconcile(ctx context.Context) (int, error) {
	lister, ok := u.store.(repository.Lister)
	if !ok {
		return 0, fmt.Errorf("%w: listing", domain.ErrUnsupported)
	}
	used, err := lister.List(ctx, model.PartitionUsed)
	if err != nil {
		return 0, err
	}
	if len(used) == 0 {
		return 0, nil
	}
	redeemed := make(map[string]struct{}, len(used))
	for _, k := range used {
		redeemed[k] = struct{}{}
	}
	unused, err := lister.List(ctx, model.PartitionUnused)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, k := range unused {
		if _, ok := redeemed[k]; !ok {
			continue
		}
		if err := u.store.Delete(ctx, model.PartitionUnused.Path(k)); err != nil {
			u.log.Error().Err(err).Msg("delete stale unused entry failed")
			continue
		}
		n++
	}
	if n > 0 {
		metrics.AddReconciled(n)
		u.log.Info().Int("count", n).Msg("removed stale unused entries")
	}
	return n, nil
}
