// Package graceful coordinates clean shutdown across the task engine.
// Services subscribe to a shutdown broadcast, ingress paths refuse new
// work once shutdown has begun, and the orchestrator waits for every
// in-flight task guard to be released before tearing anything down.
package graceful

import (
	"sync"
	"time"

	"github.com/telegrab/telegrab/pkg/logger"
)

var log = logger.Get("Shutdown")

const quiescencePollInterval = time.Millisecond * 500

type ShutdownCoordinator struct {
	mutex        sync.Mutex
	shuttingDown bool
	broadcast    chan struct{}
	inFlight     int
}

func NewShutdownCoordinator() *ShutdownCoordinator {
	return &ShutdownCoordinator{broadcast: make(chan struct{})}
}

// BeginShutdown flips the coordinator into shutdown mode and releases
// every subscriber. Safe to call more than once; only the first call
// has any effect.
func (coordinator *ShutdownCoordinator) BeginShutdown() {
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()

	if coordinator.shuttingDown {
		return
	}

	coordinator.shuttingDown = true
	close(coordinator.broadcast)
	log.Emit(logger.STOP, "Shutdown initiated\n")
}

// SubscribeShutdown returns a channel which is closed once shutdown
// begins. Subscribers obtained after shutdown see an already-closed
// channel, so a late subscriber is notified immediately.
func (coordinator *ShutdownCoordinator) SubscribeShutdown() <-chan struct{} {
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()

	return coordinator.broadcast
}

func (coordinator *ShutdownCoordinator) IsShuttingDown() bool {
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()

	return coordinator.shuttingDown
}

// StartTask registers a new unit of in-flight work and returns a guard
// which must be released when the work finishes. Returns nil once
// shutdown has begun; callers must treat nil as refusal to start.
func (coordinator *ShutdownCoordinator) StartTask() *TaskGuard {
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()

	if coordinator.shuttingDown {
		return nil
	}

	coordinator.inFlight++
	return &TaskGuard{coordinator: coordinator}
}

// InFlight reports how many task guards are currently outstanding.
func (coordinator *ShutdownCoordinator) InFlight() int {
	coordinator.mutex.Lock()
	defer coordinator.mutex.Unlock()

	return coordinator.inFlight
}

// WaitForQuiescence polls until every outstanding guard has been
// released, returning false if the timeout elapses first.
func (coordinator *ShutdownCoordinator) WaitForQuiescence(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		remaining := coordinator.InFlight()
		if remaining == 0 {
			return true
		}

		if time.Now().After(deadline) {
			log.Warnf("Gave up waiting for quiescence with %d task(s) still in flight\n", remaining)
			return false
		}

		log.Debugf("Waiting for %d in-flight task(s)...\n", remaining)
		time.Sleep(quiescencePollInterval)
	}
}

// TaskGuard represents one unit of in-flight work. Release is
// idempotent, so deferring it alongside an explicit call is harmless.
type TaskGuard struct {
	coordinator *ShutdownCoordinator
	once        sync.Once
}

func (guard *TaskGuard) Release() {
	guard.once.Do(func() {
		guard.coordinator.mutex.Lock()
		defer guard.coordinator.mutex.Unlock()

		guard.coordinator.inFlight--
	})
}
