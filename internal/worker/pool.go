package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrStopped = errors.New("worker pool stopped")

// Func is one unit of background work. ctx is cancelled when the pool stops.
type Func func(ctx context.Context) error

// Job is the handle returned by Submit.
type Job struct {
	ID   string
	Name string
	fn   Func
	done chan struct{}
	err  error
}

// Done is closed once the job has finished, failed or been dropped.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes or ctx is done. It only stops waiting;
// the job itself keeps running.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Job) finish(err error) {
	j.err = err
	close(j.done)
}

// Pool runs submitted jobs on a fixed set of goroutines. Stop cancels the
// work in flight and fails whatever is still queued.
type Pool struct {
	logger *zap.Logger
	count  int
	queue  chan *Job
	wg     sync.WaitGroup
	stop   chan struct{}
	once   sync.Once
	cancel context.CancelFunc

	mu      sync.RWMutex
	stopped bool
}

func NewPool(logger *zap.Logger, count, queueSize int) *Pool {
	if count <= 0 {
		count = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		logger: logger,
		count:  count,
		queue:  make(chan *Job, queueSize),
		stop:   make(chan struct{}),
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("workers", p.count))

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) Stop() {
	p.once.Do(func() {
		p.logger.Info("Stopping worker pool...")
		p.mu.Lock()
		p.stopped = true
		close(p.stop)
		p.mu.Unlock()
		if p.cancel != nil {
			p.cancel()
		}
		p.wg.Wait()

		for {
			select {
			case j := <-p.queue:
				j.finish(ErrStopped)
			default:
				p.logger.Info("Worker pool stopped")
				return
			}
		}
	})
}

// Submit queues fn. It blocks while the queue is full, so it must not be
// called before Start; after Stop the returned job is already failed with
// ErrStopped.
func (p *Pool) Submit(name string, fn Func) *Job {
	j := &Job{
		ID:   uuid.NewString(),
		Name: name,
		fn:   fn,
		done: make(chan struct{}),
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		j.finish(ErrStopped)
		return j
	}
	p.queue <- j
	return j
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case j := <-p.queue:
			p.run(ctx, id, j)
		}
	}
}

func (p *Pool) run(ctx context.Context, workerID int, j *Job) {
	start := time.Now()
	err := j.fn(ctx)
	took := time.Since(start)

	if err != nil {
		p.logger.Error("job failed",
			zap.Int("worker", workerID),
			zap.String("job_id", j.ID),
			zap.String("job", j.Name),
			zap.Duration("took", took),
			zap.Error(err),
		)
	} else {
		p.logger.Debug("job completed",
			zap.Int("worker", workerID),
			zap.String("job_id", j.ID),
			zap.String("job", j.Name),
			zap.Duration("took", took),
		)
	}
	j.finish(err)
}
