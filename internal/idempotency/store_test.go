package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, time.Hour), mr
}

func TestNewStoreNilClient(t *testing.T) {
	assert.Nil(t, NewStore(nil, time.Hour))
}

func TestReserveSaveReplay(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	key := Key("user-1", "abc")
	assert.Equal(t, "idem:user-1:abc", key)

	stored, err := store.Reserve(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, stored)

	_, err = store.Reserve(ctx, key)
	require.ErrorIs(t, err, ErrInProgress)

	require.NoError(t, store.Save(ctx, key, Response{Status: 201, ContentType: "application/json", Body: []byte(`{"ok":true}`)}))
	assert.Equal(t, time.Hour, mr.TTL(key))

	stored, err = store.Reserve(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 201, stored.Status)
	assert.JSONEq(t, `{"ok":true}`, string(stored.Body))
}

func TestReleaseAllowsRetry(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	key := Key("user-1", "retry")

	_, err := store.Reserve(ctx, key)
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, key))

	stored, err := store.Reserve(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestPendingReservationExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	key := Key("user-1", "stuck")

	_, err := store.Reserve(ctx, key)
	require.NoError(t, err)
	mr.FastForward(pendingTTL + time.Second)

	stored, err := store.Reserve(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestNilStoreIsDisabled(t *testing.T) {
	var store *Store
	stored, err := store.Reserve(context.Background(), "k")
	require.NoError(t, err)
	assert.Nil(t, stored)
	require.NoError(t, store.Save(context.Background(), "k", Response{}))
	require.NoError(t, store.Release(context.Background(), "k"))
}
