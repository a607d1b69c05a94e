package worker

import (
	"time"

	"github.com/telegrab/telegrab/internal/graceful"
	"github.com/telegrab/telegrab/internal/queue"
	"github.com/telegrab/telegrab/pkg/logger"
)

var cleanerLog = logger.Get("Cleaner")

// AutoCleaner periodically trims the queue's completed-task history so
// it cannot grow without bound.
type AutoCleaner struct {
	queue      *queue.QueueState
	shutdown   *graceful.ShutdownCoordinator
	interval   time.Duration
	keepRecent int
}

func NewAutoCleaner(state *queue.QueueState, shutdown *graceful.ShutdownCoordinator, interval time.Duration, keepRecent int) *AutoCleaner {
	return &AutoCleaner{queue: state, shutdown: shutdown, interval: interval, keepRecent: keepRecent}
}

// Run ticks until shutdown is signalled.
func (cleaner *AutoCleaner) Run() {
	cleanerLog.Emit(logger.NEW, "Auto cleaner started (every %s, keeping %d completed)\n", cleaner.interval, cleaner.keepRecent)

	ticker := time.NewTicker(cleaner.interval)
	defer ticker.Stop()

	shutdownSignal := cleaner.shutdown.SubscribeShutdown()
	for {
		select {
		case <-shutdownSignal:
			cleanerLog.Emit(logger.STOP, "Auto cleaner stopping\n")
			return
		case <-ticker.C:
			if removed := cleaner.queue.Cleanup(cleaner.keepRecent); removed > 0 {
				cleanerLog.Emit(logger.REMOVE, "Cleaned up %d completed task(s)\n", removed)
			}
		}
	}
}
