package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/telegrab/telegrab/pkg/logger"
)

var log = logger.Get("Queue")

// QueueState is the authoritative in-memory store for the task engine.
// It holds the FIFO of pending tasks, the history of every task it has
// been handed (until cleanup trims completed entries), and a projection
// of the tasks currently held by workers.
//
// Every operation is safe for concurrent use; a single RWMutex guards
// all three collections so each mutation appears atomic to observers.
// Mutations publish their corresponding event on the bus best-effort,
// meaning a slow subscriber can never block or fail a mutation.
type QueueState struct {
	mutex   sync.RWMutex
	pending []Task
	history map[string]Task
	active  map[string]*ActiveTaskInfo

	events *EventBus
	signal chan struct{}
}

func NewQueueState(events *EventBus) *QueueState {
	return &QueueState{
		history: make(map[string]Task),
		active:  make(map[string]*ActiveTaskInfo),
		events:  events,
		signal:  make(chan struct{}, 1),
	}
}

// Events exposes the bus mutations are published on, for subscribers
// such as the websocket gateway.
func (state *QueueState) Events() *EventBus {
	return state.events
}

// Enqueue appends the task to the pending FIFO, records it in the
// history, and wakes one worker waiting in WaitForTask.
func (state *QueueState) Enqueue(task Task) {
	state.mutex.Lock()
	state.pending = append(state.pending, task)
	state.history[task.ID] = task
	state.mutex.Unlock()

	state.notifyOne()
	state.events.Publish(taskAdded(task))
}

// Dequeue pops the oldest pending task, leaving its history entry
// untouched. The second return is false when the queue is empty.
func (state *QueueState) Dequeue() (Task, bool) {
	state.mutex.Lock()
	defer state.mutex.Unlock()

	if len(state.pending) == 0 {
		return Task{}, false
	}

	task := state.pending[0]
	state.pending = state.pending[1:]
	return task, true
}

// UpdateTask overwrites the history entry for the task (insert or
// replace) and publishes a TaskUpdated event.
func (state *QueueState) UpdateTask(task Task) {
	state.mutex.Lock()
	state.history[task.ID] = task
	state.mutex.Unlock()

	state.events.Publish(taskUpdated(task))
}

// GetTask looks a task up in the history by ID.
func (state *QueueState) GetTask(taskID string) (Task, bool) {
	state.mutex.RLock()
	defer state.mutex.RUnlock()

	task, ok := state.history[taskID]
	return task, ok
}

// RegisterActive records the task as executing on the given worker.
// Returns false (and logs) if the task is somehow already active; the
// caller must treat that as a failure rather than execute it twice.
func (state *QueueState) RegisterActive(task Task, workerID int) bool {
	state.mutex.Lock()
	defer state.mutex.Unlock()

	if _, exists := state.active[task.ID]; exists {
		log.Errorf("Refusing to register task %s as active: already registered\n", task.ID)
		return false
	}

	startedAt := time.Now()
	if task.StartedAt != nil {
		startedAt = *task.StartedAt
	}

	state.active[task.ID] = &ActiveTaskInfo{
		TaskID:      task.ID,
		Kind:        task.Kind,
		Description: task.Description(),
		WorkerID:    workerID,
		StartedAt:   startedAt,
	}
	log.Debugf("Task %s active on worker %d\n", task.ID, workerID)

	return true
}

// UnregisterActive removes the task from the active set, returning
// whether it was present.
func (state *QueueState) UnregisterActive(taskID string) bool {
	state.mutex.Lock()
	defer state.mutex.Unlock()

	if _, ok := state.active[taskID]; !ok {
		return false
	}

	delete(state.active, taskID)
	return true
}

// UpdateProgress records advisory progress (0..1) against an active
// task and publishes a TaskProgress event. Progress for a task which
// is no longer active is silently discarded.
func (state *QueueState) UpdateProgress(taskID string, progress float64) bool {
	state.mutex.Lock()
	info, ok := state.active[taskID]
	if ok {
		info.Progress = &progress
		info.DurationSecs = time.Since(info.StartedAt).Seconds()
	}
	state.mutex.Unlock()

	if !ok {
		return false
	}

	state.events.Publish(taskProgress(taskID, progress))
	return true
}

// Clear drains the pending FIFO and returns the dropped tasks. Active
// and historical tasks are untouched. A QueueCleared event is only
// published when something was actually dropped.
func (state *QueueState) Clear() []Task {
	state.mutex.Lock()
	cleared := state.pending
	state.pending = nil
	state.mutex.Unlock()

	if len(cleared) > 0 {
		state.events.Publish(queueCleared())
	}

	return cleared
}

// Cleanup trims the completed-task history down to the keepRecent most
// recently created entries, returning how many were evicted. Pending,
// processing and failed tasks are never evicted.
func (state *QueueState) Cleanup(keepRecent int) int {
	state.mutex.Lock()
	defer state.mutex.Unlock()

	completed := make([]Task, 0)
	for _, task := range state.history {
		if task.Status == Completed {
			completed = append(completed, task)
		}
	}

	if len(completed) <= keepRecent {
		return 0
	}

	sort.Slice(completed, func(i, j int) bool {
		return completed[i].CreatedAt.After(completed[j].CreatedAt)
	})

	removed := 0
	for _, task := range completed[keepRecent:] {
		delete(state.history, task.ID)
		removed++
	}

	return removed
}

// WaitForTask blocks until the queue is (or becomes) non-empty, or the
// timeout elapses. A non-positive timeout waits indefinitely.
func (state *QueueState) WaitForTask(timeout time.Duration) bool {
	state.mutex.RLock()
	hasPending := len(state.pending) > 0
	state.mutex.RUnlock()

	if hasPending {
		return true
	}

	if timeout <= 0 {
		<-state.signal
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-state.signal:
		return true
	case <-timer.C:
		return false
	}
}

// Size reports the number of pending tasks.
func (state *QueueState) Size() int {
	state.mutex.RLock()
	defer state.mutex.RUnlock()

	return len(state.pending)
}

// GetTasks snapshots every task in the history.
func (state *QueueState) GetTasks() []Task {
	state.mutex.RLock()
	defer state.mutex.RUnlock()

	tasks := make([]Task, 0, len(state.history))
	for _, task := range state.history {
		tasks = append(tasks, task)
	}

	return tasks
}

// GetActive snapshots the active task projections with durations
// recomputed against the current clock.
func (state *QueueState) GetActive() []ActiveTaskInfo {
	state.mutex.RLock()
	defer state.mutex.RUnlock()

	now := time.Now()
	infos := make([]ActiveTaskInfo, 0, len(state.active))
	for _, info := range state.active {
		snapshot := *info
		snapshot.DurationSecs = now.Sub(info.StartedAt).Seconds()
		infos = append(infos, snapshot)
	}

	return infos
}

// ActiveCount reports how many tasks are currently executing.
func (state *QueueState) ActiveCount() int {
	state.mutex.RLock()
	defer state.mutex.RUnlock()

	return len(state.active)
}

// FindDocInQueue scans the history for a live (pending or processing)
// doc-targeting task for the given doc ID. Callers dedupe enqueues by
// returning the existing task instead of creating another.
func (state *QueueState) FindDocInQueue(docID int32) (Task, bool) {
	state.mutex.RLock()
	defer state.mutex.RUnlock()

	for _, task := range state.history {
		if !task.isLive() {
			continue
		}

		switch task.Kind {
		case HtmlParse, DocDownload, CbzArchive:
			if task.DocID == docID {
				return task, true
			}
		}
	}

	return Task{}, false
}

// FindPicInQueue is the PicDownload counterpart of FindDocInQueue.
func (state *QueueState) FindPicInQueue(docID int32) (Task, bool) {
	state.mutex.RLock()
	defer state.mutex.RUnlock()

	for _, task := range state.history {
		if task.isLive() && task.Kind == PicDownload && task.DocID == docID {
			return task, true
		}
	}

	return Task{}, false
}

// HasLiveTask reports whether any task of the given kind is currently
// pending or processing. Backs the ingress probes which refuse to
// stack a second parse-all or scan on top of a running one.
func (state *QueueState) HasLiveTask(kind TaskKind) bool {
	state.mutex.RLock()
	defer state.mutex.RUnlock()

	for _, task := range state.history {
		if task.Kind == kind && task.isLive() {
			return true
		}
	}

	return false
}

func (task *Task) isLive() bool {
	return task.Status == Pending || task.Status == Processing
}

// notifyOne wakes a single waiter blocked in WaitForTask. The signal
// channel holds one slot so a notification issued while nobody is
// waiting is retained for the next waiter rather than lost.
func (state *QueueState) notifyOne() {
	select {
	case state.signal <- struct{}{}:
	default:
	}
}
