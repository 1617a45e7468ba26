package booking

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	conv := NewConversation("5511999990000")
	conv.Current = StateTimeSelection
	conv.SelectedService = "cardiologia"
	conv.LoopCount = 2

	require.NoError(t, store.Save(ctx, conv))

	loaded, err := store.Load(ctx, "5511999990000")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, StateTimeSelection, loaded.Current)
	assert.Equal(t, "cardiologia", loaded.SelectedService)
	assert.Equal(t, 2, loaded.LoopCount)
}

func TestRedisStoreMissingConversation(t *testing.T) {
	store, _ := newRedisStore(t)

	loaded, err := store.Load(context.Background(), "5511000000000")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisStoreKeyTTL(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, NewConversation("5511999990000")))

	mr.FastForward(StateTTL + time.Minute)

	loaded, err := store.Load(ctx, "5511999990000")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisStoreLazyExpiry(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	conv := NewConversation("5511999990000")
	require.NoError(t, store.Save(ctx, conv))

	// Even with the key still present, a stale last_activity reads as gone.
	store.WithClock(func() time.Time { return conv.LastActivity.Add(StateTTL + time.Minute) })

	loaded, err := store.Load(ctx, "5511999990000")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisStoreDelete(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, NewConversation("5511999990000")))
	require.NoError(t, store.Delete(ctx, "5511999990000"))

	loaded, err := store.Load(ctx, "5511999990000")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisStoreValidation(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	_, err := store.Load(ctx, "")
	assert.Error(t, err)
	assert.Error(t, store.Save(ctx, nil))
	assert.Error(t, store.Save(ctx, &Conversation{}))
	assert.Error(t, store.Delete(ctx, ""))
}

func TestMemoryStoreRoundTripAndExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	conv := NewConversation("5511999990000")
	conv.Current = StateContactInfo
	require.NoError(t, store.Save(ctx, conv))

	loaded, err := store.Load(ctx, "5511999990000")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, StateContactInfo, loaded.Current)

	// Mutating the loaded copy must not leak back into the store.
	loaded.Current = StateCompleted
	again, err := store.Load(ctx, "5511999990000")
	require.NoError(t, err)
	assert.Equal(t, StateContactInfo, again.Current)

	store.WithClock(func() time.Time { return conv.LastActivity.Add(StateTTL + time.Minute) })
	expired, err := store.Load(ctx, "5511999990000")
	require.NoError(t, err)
	assert.Nil(t, expired)
}
