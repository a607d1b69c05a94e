package graceful

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telegrab/telegrab/pkg/logger"
)

func init() {
	logger.SetMinLoggingLevel(logger.ERROR.Level())
}

func Test_Shutdown_GuardsRefusedOnceShuttingDown(t *testing.T) {
	coordinator := NewShutdownCoordinator()

	guard := coordinator.StartTask()
	require.NotNil(t, guard)
	assert.Equal(t, 1, coordinator.InFlight())

	coordinator.BeginShutdown()
	assert.True(t, coordinator.IsShuttingDown())
	assert.Nil(t, coordinator.StartTask(), "no new guards after shutdown begins")

	// The outstanding guard is unaffected by shutdown until released.
	assert.Equal(t, 1, coordinator.InFlight())
	guard.Release()
	assert.Zero(t, coordinator.InFlight())
}

func Test_Shutdown_ReleaseIsIdempotent(t *testing.T) {
	coordinator := NewShutdownCoordinator()

	guard := coordinator.StartTask()
	require.NotNil(t, guard)

	guard.Release()
	guard.Release()
	assert.Zero(t, coordinator.InFlight())
}

func Test_Shutdown_BeginShutdownIsIdempotent(t *testing.T) {
	coordinator := NewShutdownCoordinator()

	coordinator.BeginShutdown()
	assert.NotPanics(t, coordinator.BeginShutdown)
}

func Test_Shutdown_SubscribersAreBroadcastTo(t *testing.T) {
	coordinator := NewShutdownCoordinator()

	first := coordinator.SubscribeShutdown()
	second := coordinator.SubscribeShutdown()

	select {
	case <-first:
		t.Fatal("subscriber notified before shutdown began")
	default:
	}

	coordinator.BeginShutdown()

	for _, channel := range []<-chan struct{}{first, second} {
		select {
		case <-channel:
		case <-time.After(time.Second):
			t.Fatal("subscriber was not notified of shutdown")
		}
	}

	// Late subscribers see an already-closed channel.
	select {
	case <-coordinator.SubscribeShutdown():
	case <-time.After(time.Second):
		t.Fatal("late subscriber was not notified immediately")
	}
}

func Test_Shutdown_WaitForQuiescence(t *testing.T) {
	coordinator := NewShutdownCoordinator()
	assert.True(t, coordinator.WaitForQuiescence(time.Second), "no guards means immediate quiescence")

	guard := coordinator.StartTask()
	require.NotNil(t, guard)
	assert.False(t, coordinator.WaitForQuiescence(50*time.Millisecond))

	go func() {
		time.Sleep(100 * time.Millisecond)
		guard.Release()
	}()
	assert.True(t, coordinator.WaitForQuiescence(5*time.Second))
}
