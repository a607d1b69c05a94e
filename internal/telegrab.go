package internal

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/telegrab/telegrab/internal/api"
	"github.com/telegrab/telegrab/internal/database"
	"github.com/telegrab/telegrab/internal/fetcher"
	"github.com/telegrab/telegrab/internal/gallery"
	"github.com/telegrab/telegrab/internal/graceful"
	"github.com/telegrab/telegrab/internal/queue"
	"github.com/telegrab/telegrab/internal/worker"
	"github.com/telegrab/telegrab/pkg/logger"
)

var log = logger.Get("Core")

// How long shutdown waits for in-flight tasks before tearing the rest
// of the process down anyway.
const shutdownDrainTimeout = time.Second * 30

type (
	RunnableService interface {
		Run(context.Context) error
	}

	runnableFunc func(context.Context) error
)

func (f runnableFunc) Run(ctx context.Context) error { return f(ctx) }

// Telegrab is the top-level object for the server; it owns the task
// engine, the persistence layer, and the HTTP ingress, and wires their
// lifecycles together.
type Telegrab struct {
	config   TelegrabConfig
	queue    *queue.QueueState
	shutdown *graceful.ShutdownCoordinator
}

func New(config TelegrabConfig) *Telegrab {
	return &Telegrab{
		config:   config,
		queue:    queue.NewQueueState(queue.NewEventBus()),
		shutdown: graceful.NewShutdownCoordinator(),
	}
}

// Run brings up the database connection, the worker pool and the
// supporting services, then blocks until the provided context is
// cancelled and the engine has drained.
func (telegrab *Telegrab) Run(parent context.Context) error {
	config := telegrab.config
	for _, dir := range []string{config.PicDirPath, config.CbzDirPath} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}

	log.Emit(logger.NEW, "Connecting to database...\n")
	db := database.New()
	if err := db.Connect(config.Database); err != nil {
		return err
	}

	repo := gallery.NewRepository(db)
	handlers := worker.NewTaskHandlers(repo, fetcher.New(config.HTTPClient), config.PicDirPath, config.CbzDirPath)

	pool := worker.NewPool(config.Engine.WorkerCount, func(workerID int) *worker.TaskWorker {
		return worker.NewTaskWorker(workerID, telegrab.queue, telegrab.shutdown, handlers)
	})
	cleaner := worker.NewAutoCleaner(
		telegrab.queue,
		telegrab.shutdown,
		time.Duration(config.Engine.AutoCleanupIntervalSecs)*time.Second,
		config.Engine.MaxCompletedTasks,
	)
	watcher := worker.NewFsWatcher(telegrab.queue, telegrab.shutdown, config.CbzDirPath)
	gateway := api.NewRestGateway(
		&config.Rest,
		telegrab.queue,
		telegrab.shutdown,
		repo,
		config.Engine.WorkerCount,
		config.Engine.MaxCompletedTasks,
	)

	// The trigger context only decides *when* shutdown begins (signal
	// or service crash). The services themselves run on a separate
	// context so the HTTP listener keeps answering (with 503s) and
	// in-flight handlers are not interrupted while the drain window is
	// open; it is cancelled only once the queue has quiesced.
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	serviceCtx, serviceCancel := context.WithCancel(context.Background())
	defer serviceCancel()
	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel()
	}

	wg := &sync.WaitGroup{}
	pool.Start(serviceCtx)
	telegrab.spawnAsyncService(serviceCtx, wg, runnableFunc(func(context.Context) error {
		cleaner.Run()
		return nil
	}), "auto-cleaner", crashHandler)
	telegrab.spawnAsyncService(serviceCtx, wg, runnableFunc(func(context.Context) error {
		return watcher.Run()
	}), "fs-watcher", crashHandler)
	telegrab.spawnAsyncService(serviceCtx, wg, gateway, "rest-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "Telegrab services spawned (%d worker(s))!\n", pool.Size())

	// Shutdown sequencing: flip the coordinator first so ingress and
	// workers refuse new work, give in-flight tasks a bounded window
	// to drain, then cancel the listeners.
	<-ctx.Done()
	telegrab.drainAndStop(serviceCancel)

	pool.Wait()
	wg.Wait()
	log.Emit(logger.STOP, "Telegrab stopped\n")
	return nil
}

// drainAndStop refuses new work, waits out the drain window, and only
// then tears the long-lived services (HTTP listener included) down.
func (telegrab *Telegrab) drainAndStop(stopServices context.CancelFunc) {
	telegrab.shutdown.BeginShutdown()
	if !telegrab.shutdown.WaitForQuiescence(shutdownDrainTimeout) {
		log.Warnf("Proceeding with shutdown despite in-flight tasks\n")
	}

	stopServices()
}

// spawnAsyncService will run the provided service as its own
// goroutine, ensuring the service waitgroup is updated correctly.
func (telegrab *Telegrab) spawnAsyncService(ctx context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(wg *sync.WaitGroup, label string, crash func(string, error)) {
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		defer wg.Done()
		if err := service.Run(ctx); err != nil {
			crash(label, err)
		}
	}(wg, serviceLabel, crashHandler)
}
