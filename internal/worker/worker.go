// Package worker hosts the data-plane of the task engine: the worker
// loop that pulls tasks off the queue and drives them to a terminal
// status, the pool that runs N such loops, and the background services
// (cleaner, fs watcher) that feed or trim the queue.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/telegrab/telegrab/internal/graceful"
	"github.com/telegrab/telegrab/internal/queue"
	"github.com/telegrab/telegrab/pkg/logger"
)

var log = logger.Get("Worker")

const (
	// How long a worker blocks waiting for work before re-checking
	// the shutdown state.
	taskWaitTimeout = time.Second * 5

	// How long a stopping worker waits for its own active tasks to
	// clear before giving up.
	drainTimeout      = time.Second * 30
	drainPollInterval = time.Millisecond * 500
)

// TaskWorker drives queued tasks to completion, one at a time. Workers
// never interrupt a handler in flight; shutdown is only observed
// between tasks.
type TaskWorker struct {
	id       int
	queue    *queue.QueueState
	shutdown *graceful.ShutdownCoordinator
	handlers *TaskHandlers
}

func NewTaskWorker(id int, state *queue.QueueState, shutdown *graceful.ShutdownCoordinator, handlers *TaskHandlers) *TaskWorker {
	return &TaskWorker{id: id, queue: state, shutdown: shutdown, handlers: handlers}
}

// Run is the worker main loop; it returns once shutdown has begun and
// the worker's active tasks have drained (or the drain timed out).
func (worker *TaskWorker) Run(ctx context.Context) {
	log.Emit(logger.NEW, "Worker %d started\n", worker.id)
	shutdownSignal := worker.shutdown.SubscribeShutdown()

	for {
		select {
		case <-shutdownSignal:
			log.Emit(logger.STOP, "Worker %d stopping: shutdown signalled\n", worker.id)
			worker.waitForCurrentTasks()
			return
		case <-ctx.Done():
			log.Emit(logger.STOP, "Worker %d stopping: context cancelled\n", worker.id)
			return
		default:
		}

		if worker.queue.WaitForTask(taskWaitTimeout) {
			worker.ProcessOne(ctx)
		}
	}
}

// ProcessOne attempts to execute a single task, returning false when
// there is nothing to do (empty queue, or shutdown refused the guard).
func (worker *TaskWorker) ProcessOne(ctx context.Context) bool {
	guard := worker.shutdown.StartTask()
	if guard == nil {
		return false
	}
	defer guard.Release()

	task, ok := worker.queue.Dequeue()
	if !ok {
		return false
	}

	task.MarkProcessing()
	worker.queue.UpdateTask(task)

	if !worker.queue.RegisterActive(task, worker.id) {
		worker.finalize(task, "", fmt.Errorf("task %s is already active", task.ID))
		return true
	}

	log.Infof("Worker %d processing %s task %s\n", worker.id, task.Kind, task.ID)
	result, err := worker.execute(ctx, &task)

	worker.queue.UnregisterActive(task.ID)
	worker.finalize(task, result, err)
	return true
}

// execute dispatches to the task's handler, converting a handler panic
// into an ordinary error so it can never take the worker loop down.
func (worker *TaskWorker) execute(ctx context.Context, task *queue.Task) (result string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			log.Errorf("Handler for %s task %s panicked: %v\n", task.Kind, task.ID, recovered)
			err = fmt.Errorf("handler panicked: %v", recovered)
		}
	}()

	return worker.handlers.Handle(ctx, task, func(progress float64) {
		worker.queue.UpdateProgress(task.ID, progress)
	})
}

// finalize writes the task's terminal status back and announces that
// the task is no longer live.
func (worker *TaskWorker) finalize(task queue.Task, result string, err error) {
	if err != nil {
		log.Errorf("Worker %d: %s task %s failed: %s\n", worker.id, task.Kind, task.ID, err.Error())
		task.MarkFailed(err.Error())
	} else {
		log.Emit(logger.SUCCESS, "Worker %d: %s task %s completed\n", worker.id, task.Kind, task.ID)
		task.MarkCompleted(result)
	}

	worker.queue.UpdateTask(task)
	worker.queue.Events().Publish(queue.TaskRemoved(task.ID))
}

// waitForCurrentTasks polls until no active task belongs to this
// worker, giving up after the drain timeout.
func (worker *TaskWorker) waitForCurrentTasks() {
	deadline := time.Now().Add(drainTimeout)
	for {
		remaining := 0
		for _, info := range worker.queue.GetActive() {
			if info.WorkerID == worker.id {
				remaining++
			}
		}

		if remaining == 0 {
			return
		}

		if time.Now().After(deadline) {
			log.Warnf("Worker %d gave up draining with %d task(s) still active\n", worker.id, remaining)
			return
		}

		time.Sleep(drainPollInterval)
	}
}
