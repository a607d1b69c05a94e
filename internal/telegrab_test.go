package internal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telegrab/telegrab/pkg/logger"
)

func init() {
	logger.SetMinLoggingLevel(logger.FATAL.Level())
}

func Test_DrainAndStop_StopsServicesOnlyAfterQuiescence(t *testing.T) {
	telegrab := New(TelegrabConfig{})
	guard := telegrab.shutdown.StartTask()
	require.NotNil(t, guard)

	serviceCtx, serviceCancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		telegrab.drainAndStop(serviceCancel)
	}()

	// With a task still in flight the drain window must stay open: the
	// coordinator refuses new work but the services keep running.
	time.Sleep(time.Millisecond * 200)
	assert.True(t, telegrab.shutdown.IsShuttingDown())
	select {
	case <-serviceCtx.Done():
		t.Fatal("services were stopped while a task was still in flight")
	default:
	}

	guard.Release()
	select {
	case <-done:
	case <-time.After(time.Second * 3):
		t.Fatal("drain did not complete after the last task released")
	}

	select {
	case <-serviceCtx.Done():
	default:
		t.Fatal("services were not stopped after quiescence")
	}
}

func Test_DrainAndStop_IdleEngineStopsPromptly(t *testing.T) {
	telegrab := New(TelegrabConfig{})
	serviceCtx, serviceCancel := context.WithCancel(context.Background())

	start := time.Now()
	telegrab.drainAndStop(serviceCancel)

	assert.Less(t, time.Since(start), time.Second*5)
	select {
	case <-serviceCtx.Done():
	default:
		t.Fatal("services were not stopped")
	}
}
