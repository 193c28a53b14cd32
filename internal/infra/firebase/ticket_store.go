package firebase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"

	"ticketgate/internal/config"
	"ticketgate/internal/domain"
	"ticketgate/internal/domain/model"
	"ticketgate/internal/domain/ports/repository"
)

var (
	_ repository.TicketStore  = (*TicketStore)(nil)
	_ repository.Transitioner = (*TicketStore)(nil)
	_ repository.Lister       = (*TicketStore)(nil)
)

// TicketStore keeps tickets in a Firebase Realtime Database under
// /Unused/{derivedKey} and /Used/{derivedKey}.
type TicketStore struct {
	client *db.Client
}

// NewClient opens the Realtime Database named in cfg. An empty credentials
// file falls back to application default credentials.
func NewClient(ctx context.Context, cfg *config.FirebaseConfig) (*db.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: cfg.DatabaseURL}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: firebase app: %v", domain.ErrStore, err)
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: firebase database: %v", domain.ErrStore, err)
	}
	return client, nil
}

func NewTicketStore(client *db.Client) *TicketStore {
	return &TicketStore{client: client}
}

func (s *TicketStore) ref(path string) (*db.Ref, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	return s.client.NewRef(path), nil
}

func (s *TicketStore) ReadIfExists(ctx context.Context, path string) (*repository.Snapshot, error) {
	ref, err := s.ref(path)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := ref.Get(ctx, &raw); err != nil {
		return nil, fmt.Errorf("%w: get %q: %v", domain.ErrStore, path, err)
	}
	if isNull(raw) {
		return nil, nil
	}
	return &repository.Snapshot{Path: path, Value: raw}, nil
}

func (s *TicketStore) Write(ctx context.Context, path string, value []byte) error {
	ref, err := s.ref(path)
	if err != nil {
		return err
	}
	if !json.Valid(value) {
		return fmt.Errorf("%w: value for %q is not JSON", domain.ErrInvalidArgument, path)
	}
	if err := ref.Set(ctx, json.RawMessage(value)); err != nil {
		return fmt.Errorf("%w: set %q: %v", domain.ErrStore, path, err)
	}
	return nil
}

func (s *TicketStore) Delete(ctx context.Context, path string) error {
	ref, err := s.ref(path)
	if err != nil {
		return err
	}
	if err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("%w: delete %q: %v", domain.ErrStore, path, err)
	}
	return nil
}

// Transition writes the destination only if it is still empty, using an
// ETag conditional write as a compare-and-set, and removes the source
// afterwards. A caller that finds the destination taken has lost the race.
func (s *TicketStore) Transition(ctx context.Context, from, to string) (*repository.Snapshot, error) {
	snap, err := s.ReadIfExists(ctx, from)
	if err != nil || snap == nil {
		return nil, err
	}
	dst, err := s.ref(to)
	if err != nil {
		return nil, err
	}

	var cur json.RawMessage
	etag, err := dst.GetWithETag(ctx, &cur)
	if err != nil {
		return nil, fmt.Errorf("%w: transition %q: %v", domain.ErrStore, from, err)
	}
	if !isNull(cur) {
		return nil, nil
	}
	ok, err := dst.SetIfUnchanged(ctx, etag, json.RawMessage(snap.Value))
	if err != nil {
		return nil, fmt.Errorf("%w: transition %q: %v", domain.ErrStore, from, err)
	}
	if !ok {
		return nil, nil
	}
	if err := s.Delete(ctx, from); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *TicketStore) List(ctx context.Context, partition model.Partition) ([]string, error) {
	var shallow map[string]json.RawMessage
	if err := s.client.NewRef(string(partition)).GetShallow(ctx, &shallow); err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", domain.ErrStore, partition, err)
	}
	keys := make([]string, 0, len(shallow))
	for k := range shallow {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func isNull(raw json.RawMessage) bool {
	t := strings.TrimSpace(string(raw))
	return t == "" || t == "null"
}

var errForbiddenKey = errors.New(`keys must not contain ".", "$", "#", "[" or "]"`)

// validatePath rejects paths the Realtime Database cannot address.
func validatePath(path string) error {
	if _, _, err := model.SplitPath(path); err != nil {
		return err
	}
	if strings.ContainsAny(path, ".$#[]") {
		return fmt.Errorf("%w: %q: %v", domain.ErrInvalidArgument, path, errForbiddenKey)
	}
	return nil
}
