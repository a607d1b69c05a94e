package worker

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rjeczalik/notify"
	"github.com/telegrab/telegrab/internal/graceful"
	"github.com/telegrab/telegrab/internal/queue"
	"github.com/telegrab/telegrab/pkg/logger"
)

var watcherLog = logger.Get("FsWatcher")

// FsWatcher keeps the cbz table honest against external mutation of
// the archive directory: archives appearing or vanishing on disk are
// translated into FsCbzAdded/FsCbzRemoved tasks. An initial ScanDir
// task reconciles whatever happened while the process was down.
type FsWatcher struct {
	queue    *queue.QueueState
	shutdown *graceful.ShutdownCoordinator
	cbzDir   string
}

func NewFsWatcher(state *queue.QueueState, shutdown *graceful.ShutdownCoordinator, cbzDir string) *FsWatcher {
	return &FsWatcher{queue: state, shutdown: shutdown, cbzDir: cbzDir}
}

// Run watches cbzDir recursively until shutdown is signalled.
func (watcher *FsWatcher) Run() error {
	watcher.queue.Enqueue(queue.NewScanDirTask())

	events := make(chan notify.EventInfo, 16)
	if err := notify.Watch(filepath.Join(watcher.cbzDir, "..."), events, notify.Create, notify.Remove, notify.Rename); err != nil {
		return fmt.Errorf("failed to watch %s: %w", watcher.cbzDir, err)
	}
	defer notify.Stop(events)

	watcherLog.Emit(logger.NEW, "Watching %s for archive changes\n", watcher.cbzDir)

	shutdownSignal := watcher.shutdown.SubscribeShutdown()
	for {
		select {
		case <-shutdownSignal:
			watcherLog.Emit(logger.STOP, "Fs watcher stopping\n")
			return nil
		case event := <-events:
			watcher.handleEvent(event)
		}
	}
}

func (watcher *FsWatcher) handleEvent(event notify.EventInfo) {
	if !strings.EqualFold(filepath.Ext(event.Path()), ".cbz") {
		return
	}

	basename := filepath.Base(event.Path())
	switch event.Event() {
	case notify.Create:
		watcherLog.Debugf("Archive appeared: %s\n", basename)
		watcher.queue.Enqueue(queue.NewFsCbzAddedTask(basename))
	case notify.Remove, notify.Rename:
		watcherLog.Debugf("Archive vanished: %s\n", basename)
		watcher.queue.Enqueue(queue.NewFsCbzRemovedTask(basename))
	}
}
