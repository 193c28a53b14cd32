package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ticketgate/internal/usecase"
)

// Locker keeps a pass from running on several stations sharing one store.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

const lockKey = "ticketgate:reconcile"

// Reconciler periodically removes Unused entries whose ticket is already in
// Used. This covers a crash or failed delete between the Used write and the
// Unused delete of a redemption.
type Reconciler struct {
	uc       usecase.ReconcileUseCase
	locker   Locker
	interval time.Duration
	log      *zerolog.Logger
}

// NewReconciler returns a reconciler running every interval; locker may be nil.
func NewReconciler(uc usecase.ReconcileUseCase, locker Locker, interval time.Duration, logger *zerolog.Logger) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	l := logger.With().Str("component", "Reconciler").Logger()
	return &Reconciler{uc: uc, locker: locker, interval: interval, log: &l}
}

// Start blocks until ctx is done.
func (w *Reconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	w.log.Info().Dur("interval", w.interval).Msg("reconciler started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("reconciler stopped")
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *Reconciler) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, lockKey, w.interval)
		if err != nil {
			w.log.Warn().Err(err).Msg("lock failed")
			return
		}
		if token == "" {
			w.log.Debug().Msg("another station holds the reconcile lock")
			return
		}
		defer func() {
			if err := w.locker.Unlock(context.WithoutCancel(ctx), lockKey, token); err != nil {
				w.log.Warn().Err(err).Msg("unlock failed")
			}
		}()
	}

	n, err := w.uc.Reconcile(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("reconcile pass failed")
		return
	}
	if n > 0 {
		w.log.Info().Int("repaired", n).Msg("reconcile pass finished")
	}
}
