package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"ticketgate/internal/config"
	"ticketgate/internal/domain/ports/adapter"
	"ticketgate/internal/domain/ports/repository"
	pg "ticketgate/internal/infra/db/postgres"
	fb "ticketgate/internal/infra/firebase"
	"ticketgate/internal/infra/memory"
	red "ticketgate/internal/infra/redis"
	"ticketgate/internal/infra/sched"
	"ticketgate/internal/infra/security"
	"ticketgate/internal/usecase"
)

// Station composes the store, codec and use cases shared by the scanner
// daemon and the admin CLI. Fields are nil when the backend lacks the capability.
type Station struct {
	Store  repository.TicketStore
	Codec  adapter.PayloadCodec
	Locker sched.Locker

	RedeemUC    usecase.RedeemUseCase
	IssueUC     usecase.IssueUseCase
	StatusUC    usecase.StatusUseCase
	ReconcileUC usecase.ReconcileUseCase

	closers []func()
}

// NewStation opens the configured backend and builds the use cases over it.
func NewStation(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*Station, error) {
	st := &Station{}

	cipher, err := security.NewCipher(cfg.Security)
	if err != nil {
		return nil, fmt.Errorf("cipher: %w", err)
	}
	st.Codec = security.NewPayloadCodec(cipher)

	if err := st.openStore(ctx, cfg, logger); err != nil {
		st.Close()
		return nil, err
	}

	dev := cfg.Runtime.Dev
	st.RedeemUC = usecase.NewRedeemUseCase(st.Store, st.Codec, usecase.RedeemOptions{
		AtomicTransition: cfg.Store.UseAtomicTransition(),
		OpTimeout:        cfg.Store.OpTimeout,
		Dev:              dev,
	}, logger)
	st.IssueUC = usecase.NewIssueUseCase(st.Store, st.Codec, dev, logger)
	st.StatusUC = usecase.NewStatusUseCase(st.Store)
	if _, ok := st.Store.(repository.Lister); ok {
		st.ReconcileUC = usecase.NewReconcileUseCase(st.Store, logger)
	}
	return st, nil
}

func (st *Station) openStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	backend := strings.ToLower(cfg.Store.Backend)
	switch backend {
	case "", "memory":
		logger.Warn().Msg("using in-memory ticket store; entries are lost on exit")
		st.Store = memory.NewTicketStore()

	case "redis":
		c, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		st.closers = append(st.closers, func() { _ = c.Close() })
		st.Store = red.NewTicketStore(c, red.DefaultNamespace)
		st.Locker = red.NewLocker(c)

	case "postgres":
		pool, err := pg.NewPool(ctx, &cfg.Database)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		st.closers = append(st.closers, pool.Close)
		if err := pg.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
		st.Store = pg.NewTicketStore(pool)

	case "firebase":
		client, err := fb.NewClient(ctx, &cfg.Firebase)
		if err != nil {
			return fmt.Errorf("firebase: %w", err)
		}
		st.Store = fb.NewTicketStore(client)

	default:
		return errors.New("unsupported store backend: " + cfg.Store.Backend)
	}
	logger.Info().Str("backend", backend).Msg("ticket store ready")
	return nil
}

// Close releases backend connections in reverse order of opening.
func (st *Station) Close() {
	for i := len(st.closers) - 1; i >= 0; i-- {
		st.closers[i]()
	}
	st.closers = nil
}
