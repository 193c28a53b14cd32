package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ticketgate/internal/domain"
	"ticketgate/internal/domain/model"
	"ticketgate/internal/domain/ports/adapter"
	"ticketgate/internal/domain/ports/repository"
	"ticketgate/internal/infra/logging"
	"ticketgate/internal/infra/metrics"
)

var _ IssueUseCase = (*issueUC)(nil)

type IssueRequest struct {
	Name   string
	Number string
	Email  string
	// Key is generated when empty.
	Key   string
	Extra map[string]json.RawMessage
}

// IssuedTicket is what a holder receives: the encrypted payload to print as a code.
type IssuedTicket struct {
	Record  *model.TicketRecord
	Path    string
	Payload string
}

type IssueUseCase interface {
	Issue(ctx context.Context, req IssueRequest) (*IssuedTicket, error)
}

type issueUC struct {
	store repository.TicketStore
	codec adapter.PayloadCodec
	dev   bool
	log   *zerolog.Logger
}

func NewIssueUseCase(store repository.TicketStore, codec adapter.PayloadCodec, dev bool, logger *zerolog.Logger) *issueUC {
	l := logger.With().Str("component", "IssueUseCase").Logger()
	return &issueUC{store: store, codec: codec, dev: dev, log: &l}
}

// maxKeyAttempts bounds retries when a generated key collides on its last six characters.
const maxKeyAttempts = 3

func (u *issueUC) Issue(ctx context.Context, req IssueRequest) (*IssuedTicket, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidArgument)
	}
	for _, reserved := range []string{"name", "number", "email", "key"} {
		if _, ok := req.Extra[reserved]; ok {
			return nil, fmt.Errorf("%w: extra field %q is reserved", domain.ErrInvalidArgument, reserved)
		}
	}

	attempts := 1
	if req.Key == "" {
		attempts = maxKeyAttempts
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		key := req.Key
		if key == "" {
			key = NewTicketKey()
		}
		rec := &model.TicketRecord{Name: req.Name, Number: req.Number, Email: req.Email, Key: key, Extra: req.Extra}
		t, err := u.issue(ctx, rec)
		if err == nil {
			return t, nil
		}
		lastErr = err
		if !errors.Is(err, domain.ErrAlreadyExists) {
			break
		}
		u.log.Debug().Int("attempt", i+1).Msg("derived key taken; regenerating")
	}
	return nil, lastErr
}

func (u *issueUC) issue(ctx context.Context, rec *model.TicketRecord) (*IssuedTicket, error) {
	dk := rec.DerivedKey()
	for _, p := range []model.Partition{model.PartitionUnused, model.PartitionUsed} {
		snap, err := u.store.ReadIfExists(ctx, p.Path(dk))
		if err != nil {
			return nil, err
		}
		if snap != nil {
			return nil, fmt.Errorf("%w: %s already holds %q", domain.ErrAlreadyExists, p, dk)
		}
	}

	payload, err := u.codec.Encode(rec)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	path := model.PartitionUnused.Path(dk)
	if err := u.store.Write(ctx, path, value); err != nil {
		return nil, err
	}

	metrics.IncIssued()
	u.log.Info().Str("holder", logging.Redact(rec.Name, u.dev)).Msg("ticket issued")
	return &IssuedTicket{Record: rec, Path: path, Payload: payload}, nil
}

// NewTicketKey returns a random upper-case hex token.
func NewTicketKey() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
