package usecase

import (
	"context"
	"fmt"
	"strings"

	"ticketgate/internal/domain"
	"ticketgate/internal/domain/model"
	"ticketgate/internal/domain/ports/repository"
)

var _ StatusUseCase = (*statusUC)(nil)

type StatusResult struct {
	DerivedKey string
	Status     model.TicketStatus
}

type StatusUseCase interface {
	// Status accepts the full ticket key or just its last six characters.
	Status(ctx context.Context, name, key string) (*StatusResult, error)
}

type statusUC struct {
	store repository.TicketStore
}

func NewStatusUseCase(store repository.TicketStore) *statusUC {
	return &statusUC{store: store}
}

func (u *statusUC) Status(ctx context.Context, name, key string) (*StatusResult, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("%w: name and key are required", domain.ErrInvalidArgument)
	}
	dk := model.DeriveKey(name, key)
	unused, err := u.store.ReadIfExists(ctx, model.PartitionUnused.Path(dk))
	if err != nil {
		return nil, err
	}
	used, err := u.store.ReadIfExists(ctx, model.PartitionUsed.Path(dk))
	if err != nil {
		return nil, err
	}
	return &StatusResult{DerivedKey: dk, Status: model.StatusOf(unused != nil, used != nil)}, nil
}
