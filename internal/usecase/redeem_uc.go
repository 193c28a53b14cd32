package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ticketgate/internal/domain"
	"ticketgate/internal/domain/model"
	"ticketgate/internal/domain/ports/adapter"
	"ticketgate/internal/domain/ports/repository"
	"ticketgate/internal/infra/logging"
	"ticketgate/internal/infra/metrics"
)

// Compile-time check
var _ RedeemUseCase = (*redeemUC)(nil)

// RedeemUseCase turns a decoded code into a terminal outcome.
type RedeemUseCase interface {
	// Decode decrypts and parses the scanned string. Failures match domain.ErrPayloadInvalid.
	Decode(decoded string) (*model.TicketRecord, error)
	// Transition moves the ticket from Unused to Used and classifies the result.
	Transition(ctx context.Context, rec *model.TicketRecord) model.Outcome
	// Redeem runs Decode then Transition.
	Redeem(ctx context.Context, decoded string) model.Outcome
}

type RedeemOptions struct {
	// AtomicTransition uses repository.Transitioner when the store has it.
	AtomicTransition bool
	// OpTimeout bounds each store call; zero means no deadline.
	OpTimeout time.Duration
	Dev       bool
}

type redeemUC struct {
	store repository.TicketStore
	codec adapter.PayloadCodec
	opts  RedeemOptions
	log   *zerolog.Logger
}

func NewRedeemUseCase(store repository.TicketStore, codec adapter.PayloadCodec, opts RedeemOptions, logger *zerolog.Logger) *redeemUC {
	l := logger.With().Str("component", "RedeemUseCase").Logger()
	return &redeemUC{store: store, codec: codec, opts: opts, log: &l}
}

func (u *redeemUC) Decode(decoded string) (*model.TicketRecord, error) {
	rec, err := u.codec.Decode(decoded)
	if err != nil {
		u.log.Warn().Err(err).Int("len", len(decoded)).Msg("payload rejected")
		return nil, err
	}
	return rec, nil
}

func (u *redeemUC) Redeem(ctx context.Context, decoded string) model.Outcome {
	rec, err := u.Decode(decoded)
	if err != nil {
		return model.Failed(model.MsgScanError, err)
	}
	return u.Transition(ctx, rec)
}

func (u *redeemUC) Transition(ctx context.Context, rec *model.TicketRecord) model.Outcome {
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "RedeemUC.Transition")()

	dk := rec.DerivedKey()
	from := model.PartitionUnused.Path(dk)
	to := model.PartitionUsed.Path(dk)
	lg := log.With().
		Str("holder", logging.Redact(rec.Name, u.opts.Dev)).
		Str("key_suffix", logging.Redact(dk, u.opts.Dev)).
		Logger()

	if tr, ok := u.store.(repository.Transitioner); ok && u.opts.AtomicTransition {
		var snap *repository.Snapshot
		err := u.call(ctx, "transition", func(ctx context.Context) (err error) {
			snap, err = tr.Transition(ctx, from, to)
			return err
		})
		if err != nil {
			lg.Error().Err(err).Msg("transition failed")
			return model.Failed(model.MsgScanError, err)
		}
		if snap == nil {
			lg.Info().Msg("ticket not in unused partition")
			return model.Invalid(domain.ErrTicketNotFound)
		}
		lg.Info().Msg("ticket redeemed")
		return model.Approved(rec)
	}

	var snap *repository.Snapshot
	err := u.call(ctx, "read", func(ctx context.Context) (err error) {
		snap, err = u.store.ReadIfExists(ctx, from)
		return err
	})
	if err != nil {
		lg.Error().Err(err).Msg("read failed")
		return model.Failed(model.MsgScanError, err)
	}
	if snap == nil {
		lg.Info().Msg("ticket not in unused partition")
		return model.Invalid(domain.ErrTicketNotFound)
	}

	if err := u.call(ctx, "write", func(ctx context.Context) error {
		return u.store.Write(ctx, to, snap.Value)
	}); err != nil {
		lg.Error().Err(err).Msg("write to used failed")
		return model.Failed(model.MsgScanError, err)
	}
	if err := u.call(ctx, "delete", func(ctx context.Context) error {
		return u.store.Delete(ctx, from)
	}); err != nil {
		// Used is already written; the reconciler removes the Unused copy.
		lg.Error().Err(err).Msg("delete from unused failed; entry left in both partitions")
		return model.Failed(model.MsgScanError, err)
	}
	lg.Info().Msg("ticket redeemed")
	return model.Approved(rec)
}

// call runs one store operation under the optional deadline and records its latency.
func (u *redeemUC) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if u.opts.OpTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.opts.OpTimeout)
		defer cancel()
	}
	start := time.Now()
	err := fn(ctx)
	metrics.ObserveStoreOp(op, start, err)
	return err
}
