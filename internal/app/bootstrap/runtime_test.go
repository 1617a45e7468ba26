package bootstrap

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/booking"
	appconfig "github.com/lucasdmc/atendeai-lify-admin-sub007/internal/config"
)

func TestBuildRedisClientDisabledWithoutAddr(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, nil, false))
	assert.Nil(t, BuildRedisClient(context.Background(), nil, nil, false))
}

func TestBuildRedisClientVerifyPings(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := &appconfig.Config{RedisAddr: mr.Addr()}
	client := BuildRedisClient(context.Background(), cfg, nil, true)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	cfg = &appconfig.Config{RedisAddr: "127.0.0.1:1"}
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, nil, true))
}

func TestBuildStateStoreFallsBackToMemory(t *testing.T) {
	store := BuildStateStore(nil, nil)
	_, ok := store.(*booking.MemoryStore)
	assert.True(t, ok)
}

func TestBuildMessengerDisabledWithoutGateway(t *testing.T) {
	m, err := BuildMessenger(&appconfig.Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestBuildRuntimeRequiresDatabase(t *testing.T) {
	_, err := BuildRuntime(context.Background(), &appconfig.Config{}, RuntimeDeps{StateStore: booking.NewMemoryStore()}, nil)
	require.Error(t, err)
}

func TestBuildRuntimeAssemblesPipeline(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &appconfig.Config{
		ClinicName:         "Clínica Vida",
		ConfirmMaxAttempts: 3,
	}
	rt, err := BuildRuntime(context.Background(), cfg, RuntimeDeps{
		DB:         db,
		StateStore: booking.NewMemoryStore(),
	}, nil)
	require.NoError(t, err)

	assert.NotNil(t, rt.Engine)
	assert.NotNil(t, rt.Approvals)
	assert.NotNil(t, rt.Availability)
	assert.NotNil(t, rt.Rules)
	assert.NotNil(t, rt.Transcript)
	assert.NotNil(t, rt.Notifier)
}
