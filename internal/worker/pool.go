package worker

import (
	"context"
	"sync"
)

// Pool runs a fixed set of workers over one shared queue. Closing is
// driven entirely by the shutdown coordinator the workers subscribe
// to; Wait simply blocks until every worker loop has returned.
type Pool struct {
	workers []*TaskWorker
	wg      sync.WaitGroup
	started bool
}

func NewPool(count int, builder func(workerID int) *TaskWorker) *Pool {
	pool := &Pool{workers: make([]*TaskWorker, 0, count)}
	for id := 0; id < count; id++ {
		pool.workers = append(pool.workers, builder(id))
	}

	return pool
}

// Start launches one goroutine per worker. It does not block.
func (pool *Pool) Start(ctx context.Context) {
	if pool.started {
		return
	}

	pool.started = true
	for _, taskWorker := range pool.workers {
		pool.wg.Add(1)
		go func(w *TaskWorker) {
			defer pool.wg.Done()
			w.Run(ctx)
		}(taskWorker)
	}
}

// Wait blocks until all worker loops have exited.
func (pool *Pool) Wait() {
	pool.wg.Wait()
}

func (pool *Pool) Size() int {
	return len(pool.workers)
}
