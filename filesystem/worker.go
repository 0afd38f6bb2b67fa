package filesystem

import (
	"context"
	"sync"

	"github.com/brettbedarf/filenode/internal/metrics"
	"github.com/brettbedarf/filenode/internal/util"
	"github.com/rs/zerolog"
)

// job is one queued command. cancel finishes the command without running it.
type job struct {
	ctx    context.Context
	run    func(ctx context.Context)
	cancel func(err error)
}

// worker executes the asynchronous commands of one mount strictly in
// submission order on a single goroutine
type worker struct {
	name   string
	queue  chan job
	quit   chan struct{}
	wg     sync.WaitGroup
	logger zerolog.Logger

	mu     sync.RWMutex // guards closed against concurrent submit
	closed bool
}

func newWorker(name string, size int) *worker {
	if size < 1 {
		size = 1
	}
	w := &worker{
		name:   name,
		queue:  make(chan job, size),
		quit:   make(chan struct{}),
		logger: util.GetLogger("Worker").With().Str("worker", name).Logger(),
	}
	w.wg.Add(1)
	go w.loop()
	w.logger.Debug().Int("queue", size).Msg("Worker started")
	return w
}

// submit queues j, blocking while the queue is full
func (w *worker) submit(j job) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}
	select {
	case w.queue <- j:
		metrics.AddQueued(w.name, 1)
		return nil
	case <-j.ctx.Done():
		return j.ctx.Err()
	}
}

func (w *worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.quit:
			return
		case j := <-w.queue:
			select {
			case <-w.quit:
				j.cancel(ErrClosed)
			default:
				j.run(j.ctx)
			}
			metrics.AddQueued(w.name, -1)
		}
	}
}

// stop waits for the running command and cancels everything still queued
func (w *worker) stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.quit)
	w.mu.Unlock()

	w.wg.Wait()
	n := 0
	for {
		select {
		case j := <-w.queue:
			j.cancel(ErrClosed)
			metrics.AddQueued(w.name, -1)
			n++
		default:
			w.logger.Debug().Int("cancelled", n).Msg("Worker stopped")
			return
		}
	}
}
