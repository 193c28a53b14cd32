package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"ticketgate/internal/config"
	"ticketgate/internal/domain"
	"ticketgate/internal/domain/model"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(context.Background(), &config.RedisConfig{URL: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestTicketStore_ReadWriteDelete(t *testing.T) {
	ctx := context.Background()
	mr, c := newTestClient(t)
	s := NewTicketStore(c, "")
	path := model.PartitionUnused.Path("Alice's ticket ID 123456")

	snap, err := s.ReadIfExists(ctx, path)
	require.NoError(t, err)
	require.Nil(t, snap)

	require.NoError(t, s.Write(ctx, path, []byte(`{"name":"Alice","key":"ABCDEF123456"}`)))
	got, err := mr.Get(DefaultNamespace + path)
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"Alice","key":"ABCDEF123456"}`, got)

	snap, err = s.ReadIfExists(ctx, path)
	require.NoError(t, err)
	require.Equal(t, path, snap.Path)

	require.NoError(t, s.Delete(ctx, path))
	require.False(t, mr.Exists(DefaultNamespace+path))
}

func TestTicketStore_Transition(t *testing.T) {
	ctx := context.Background()
	mr, c := newTestClient(t)
	s := NewTicketStore(c, "t:")
	from := model.PartitionUnused.Path("k1")
	to := model.PartitionUsed.Path("k1")

	snap, err := s.Transition(ctx, from, to)
	require.NoError(t, err)
	require.Nil(t, snap)

	require.NoError(t, s.Write(ctx, from, []byte(`{"name":"A","key":"k1"}`)))
	snap, err = s.Transition(ctx, from, to)
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.JSONEq(t, `{"name":"A","key":"k1"}`, string(snap.Value))
	require.False(t, mr.Exists("t:"+from))
	require.True(t, mr.Exists("t:"+to))

	snap, err = s.Transition(ctx, from, to)
	require.NoError(t, err)
	require.Nil(t, snap, "second claim must lose")
}

func TestTicketStore_List(t *testing.T) {
	ctx := context.Background()
	_, c := newTestClient(t)
	s := NewTicketStore(c, "")
	for _, k := range []string{"a*", "b"} {
		require.NoError(t, s.Write(ctx, model.PartitionUnused.Path(k), []byte(`{}`)))
	}
	require.NoError(t, s.Write(ctx, model.PartitionUsed.Path("c"), []byte(`{}`)))

	keys, err := s.List(ctx, model.PartitionUnused)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a*", "b"}, keys)
}

func TestTicketStore_BackendFailure(t *testing.T) {
	ctx := context.Background()
	mr, c := newTestClient(t)
	s := NewTicketStore(c, "")
	mr.SetError("LOADING dataset")

	_, err := s.ReadIfExists(ctx, "Unused/x")
	require.ErrorIs(t, err, domain.ErrStore)
	require.ErrorIs(t, s.Write(ctx, "Used/x", []byte(`{}`)), domain.ErrStore)
	require.ErrorIs(t, s.Delete(ctx, "Unused/x"), domain.ErrStore)
	_, err = s.Transition(ctx, "Unused/x", "Used/x")
	require.ErrorIs(t, err, domain.ErrStore)
}

func TestNewClient_Unreachable(t *testing.T) {
	_, err := NewClient(context.Background(), &config.RedisConfig{URL: "127.0.0.1:1"})
	require.ErrorIs(t, err, domain.ErrStore)
}

func TestLocker(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	l := NewLocker(Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()})))

	tok, err := l.TryLock(ctx, "reconcile", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	other, err := l.TryLock(ctx, "reconcile", time.Minute)
	require.NoError(t, err)
	require.Empty(t, other)

	require.NoError(t, l.Unlock(ctx, "reconcile", "wrong-token"))
	require.True(t, mr.Exists("lock:reconcile"))

	require.NoError(t, l.Unlock(ctx, "reconcile", tok))
	require.False(t, mr.Exists("lock:reconcile"))
}
