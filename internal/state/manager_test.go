package state

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lifesign/internal/batcher"
	"lifesign/internal/evaluator"
	"lifesign/internal/geothrottle"
	"lifesign/internal/sleepwin"
)

func setupTestManager(t *testing.T) (*miniredis.Miniredis, *Manager) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return mr, NewManager("lifesign:device:", redisClient, zap.NewNop())
}

func TestBatchState_RoundTrip(t *testing.T) {
	_, mgr := setupTestManager(t)
	ctx := context.Background()

	st, err := mgr.GetBatchState(ctx, "dev-1")
	require.NoError(t, err)
	assert.Nil(t, st.LastForwardedAt)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	st.RecordForward(now)
	require.NoError(t, mgr.SaveBatchState(ctx, "dev-1", st))

	loaded, err := mgr.GetBatchState(ctx, "dev-1")
	require.NoError(t, err)
	require.NotNil(t, loaded.LastForwardedAt)
	assert.True(t, loaded.LastForwardedAt.Equal(now))
}

func TestThrottleState_RoundTrip(t *testing.T) {
	_, mgr := setupTestManager(t)
	ctx := context.Background()

	st, err := mgr.GetThrottleState(ctx, "dev-1")
	require.NoError(t, err)
	assert.Nil(t, st)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	stored := geothrottle.State{Latitude: 37.5663, Longitude: 126.9779, StoredAt: now}
	require.NoError(t, mgr.SaveThrottleState(ctx, "dev-1", stored))

	loaded, err := mgr.GetThrottleState(ctx, "dev-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 37.5663, loaded.Latitude)
	assert.True(t, loaded.StoredAt.Equal(now))
}

func TestAlertState_PerKind(t *testing.T) {
	_, mgr := setupTestManager(t)
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	var survival evaluator.State
	survival.MarkTriggered(now)
	require.NoError(t, mgr.SaveAlertState(ctx, "dev-1", evaluator.KindSurvival, survival))

	loaded, err := mgr.GetAlertState(ctx, "dev-1", evaluator.KindSurvival)
	require.NoError(t, err)
	assert.True(t, loaded.Active)

	// The food kind is independent and still zero-valued.
	food, err := mgr.GetAlertState(ctx, "dev-1", evaluator.KindFood)
	require.NoError(t, err)
	assert.False(t, food.Active)
}

func TestLastMealAt_RoundTrip(t *testing.T) {
	_, mgr := setupTestManager(t)
	ctx := context.Background()

	got, err := mgr.GetLastMealAt(ctx, "dev-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	now := time.Date(2024, 1, 1, 8, 30, 0, 0, time.UTC)
	require.NoError(t, mgr.SaveLastMealAt(ctx, "dev-1", now))

	got, err = mgr.GetLastMealAt(ctx, "dev-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(now))
}

func TestSleepWindow_RoundTrip(t *testing.T) {
	_, mgr := setupTestManager(t)
	ctx := context.Background()

	_, ok, err := mgr.GetSleepWindow(ctx, "dev-1")
	require.NoError(t, err)
	assert.False(t, ok)

	w, err := sleepwin.NewWindow("22:00", "06:30", sleepwin.AllWeekdays())
	require.NoError(t, err)
	require.NoError(t, mgr.SaveSleepWindow(ctx, "dev-1", w))

	loaded, ok, err := mgr.GetSleepWindow(ctx, "dev-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, w, loaded)
}

func TestStateSurvivesReconnect(t *testing.T) {
	mr, mgr := setupTestManager(t)
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var st batcher.State
	st.RecordForward(now)
	require.NoError(t, mgr.SaveBatchState(ctx, "dev-1", st))

	// A new manager over the same store sees the persisted state.
	fresh := NewManager("lifesign:device:", redis.NewClient(&redis.Options{Addr: mr.Addr()}), zap.NewNop())
	loaded, err := fresh.GetBatchState(ctx, "dev-1")
	require.NoError(t, err)
	require.NotNil(t, loaded.LastForwardedAt)
}

func TestRegisterAndListDevices(t *testing.T) {
	_, mgr := setupTestManager(t)
	ctx := context.Background()

	ids, err := mgr.ListDevices(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, mgr.RegisterDevice(ctx, "dev-1"))
	require.NoError(t, mgr.RegisterDevice(ctx, "dev-2"))
	require.NoError(t, mgr.RegisterDevice(ctx, "dev-1"))

	ids, err = mgr.ListDevices(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"dev-1", "dev-2"}, ids)
}
