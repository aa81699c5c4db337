// Package cleanup runs post-commit work that must not hold up the caller:
// every step of a job is attempted, failed steps are retried with backoff,
// and whatever still fails is reported through an alert log line.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bily-amin/habitica/internal/logging"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by Submit once Stop has been called.
var ErrClosed = errors.New("cleanup dispatcher closed")

// Step is one idempotent unit of a job. Steps of the same job run
// concurrently and may be retried.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Job groups the steps triggered by a single event.
type Job struct {
	Name string
	// Attrs are key-value pairs added to every log line of the job.
	Attrs []any
	Steps []Step
}

type Config struct {
	Workers   int
	QueueSize int
	// Attempts is the total number of tries per step, including the first.
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func (c Config) normalized() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize < 0 {
		c.QueueSize = 0
	}
	if c.Attempts <= 0 {
		c.Attempts = 1
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	return c
}

// Dispatcher is a bounded worker pool fed by a buffered queue.
type Dispatcher struct {
	cfg    Config
	log    logging.Logger
	queue  chan Job
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(cfg Config, log logging.Logger) *Dispatcher {
	cfg = cfg.normalized()
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		cfg:    cfg,
		log:    log.With("module", "cleanup"),
		queue:  make(chan Job, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the workers.
func (d *Dispatcher) Start() {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for job := range d.queue {
				d.process(job)
			}
		}()
	}
}

// Submit enqueues the job. When the queue is full the job runs on its own
// goroutine instead of being dropped.
func (d *Dispatcher) Submit(job Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- job:
	default:
		d.log.Warn(d.ctx, "cleanup queue full, running detached", append([]any{"job", job.Name}, job.Attrs...)...)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.process(job)
		}()
	}
	return nil
}

// Stop refuses new jobs and waits for queued and running ones. If ctx ends
// first, in-flight steps are cancelled and ctx.Err() is returned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) process(job Job) {
	log := d.log.With(append([]any{"job", job.Name}, job.Attrs...)...)

	if err := d.Run(d.ctx, job); err != nil {
		log.Error(d.ctx, "cleanup failed after retries", "alert", true, "error", err)
		return
	}
	log.Debug(d.ctx, "cleanup completed", "steps", len(job.Steps))
}

// Run executes every step of the job concurrently and waits for all of them.
// A failing step never stops the others; the failures are combined.
func (d *Dispatcher) Run(ctx context.Context, job Job) error {
	var (
		mu     sync.Mutex
		result error
		g      errgroup.Group
	)

	for _, step := range job.Steps {
		g.Go(func() error {
			if err := d.runStep(ctx, step); err != nil {
				mu.Lock()
				result = multierr.Append(result, fmt.Errorf("%s: %w", step.Name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return result
}

func (d *Dispatcher) runStep(ctx context.Context, step Step) error {
	b := retry.NewExponential(d.cfg.BaseDelay)
	b = retry.WithCappedDuration(d.cfg.MaxDelay, b)
	b = retry.WithMaxRetries(uint64(d.cfg.Attempts-1), b)

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := step.Run(ctx); err != nil {
			if attempt < d.cfg.Attempts {
				d.log.Warn(ctx, "cleanup step failed, retrying", "step", step.Name, "attempt", attempt, "error", err)
			}
			return retry.RetryableError(err)
		}
		return nil
	})
}
