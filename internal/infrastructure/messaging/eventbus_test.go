package messaging

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmshub/lms-analytics/internal/domain/shared"
)

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:     false,
		EnableMetrics: true,
	})
}

func TestPublishReachesTypedSubscriber(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var got shared.Event
	err := bus.Subscribe(shared.EventUnitCompleted, func(e shared.Event) error {
		got = e
		return nil
	})
	require.NoError(t, err)

	key := shared.ProgressKey{UserID: "user-1", CourseID: 42}
	require.NoError(t, bus.Publish(shared.NewUnitCompletedEvent(key, "unit-1")))

	require.NotNil(t, got)
	assert.Equal(t, shared.EventUnitCompleted, got.EventType())
}

func TestPublishSkipsOtherTypes(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	calls := 0
	require.NoError(t, bus.Subscribe(shared.EventSnapshotUpdated, func(e shared.Event) error {
		calls++
		return nil
	}))

	key := shared.ProgressKey{UserID: "user-1", CourseID: 42}
	require.NoError(t, bus.Publish(shared.NewUnitCompletedEvent(key, "unit-1")))
	assert.Equal(t, 0, calls)
}

func TestSubscribeAllSeesEverything(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	calls := 0
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		calls++
		return nil
	}))

	key := shared.ProgressKey{UserID: "user-1", CourseID: 42}
	require.NoError(t, bus.Publish(shared.NewUnitCompletedEvent(key, "unit-1")))
	require.NoError(t, bus.Publish(shared.NewSnapshotRebuiltEvent(42, "manual")))
	assert.Equal(t, 2, calls)
}

func TestHandlerErrorDoesNotFailPublish(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		return errors.New("boom")
	}))

	err := bus.Publish(shared.NewSnapshotRebuiltEvent(42, "manual"))
	assert.NoError(t, err)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalFailed)
}

func TestAsyncDeliveryCompletesBeforeClose(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 4,
	})

	var mu sync.Mutex
	delivered := 0
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		delivered++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(shared.NewSnapshotRebuiltEvent(42, "manual")))
	}

	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 20, delivered)
}

func TestClosedBusRejectsOperations(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(shared.NewSnapshotRebuiltEvent(42, "manual")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventUnitCompleted, func(shared.Event) error { return nil }), ErrEventBusClosed)
	assert.NoError(t, bus.Close(), "close is idempotent")
}
