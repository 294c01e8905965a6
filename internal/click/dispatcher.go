package click

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 1024
	DefaultOpTimeout = 3 * time.Second
)

// Dispatcher is the fire-and-forget boundary between the redirect path and
// the accumulator. Enqueue hands the code to a bounded queue and returns
// immediately; a pool of workers applies the increments. A full queue drops
// the event rather than block a redirect — the accepted loss mode of click
// accounting. Increment failures are logged, never surfaced to callers.
type Dispatcher struct {
	acc       Accumulator
	logger    *slog.Logger
	queue     chan string
	opTimeout time.Duration

	wg      sync.WaitGroup
	mu      sync.RWMutex // guards queue close against concurrent Enqueue
	closed  bool
	dropped atomic.Int64
	failed  atomic.Int64
}

// DispatcherConfig holds configuration for the dispatcher.
type DispatcherConfig struct {
	Workers   int
	QueueSize int
	// OpTimeout bounds each increment attempt.
	OpTimeout time.Duration
}

// NewDispatcher creates a dispatcher and starts its workers.
func NewDispatcher(acc Accumulator, logger *slog.Logger, config *DispatcherConfig) *Dispatcher {
	if config == nil {
		config = &DispatcherConfig{}
	}

	workers := config.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	opTimeout := config.OpTimeout
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		acc:       acc,
		logger:    logger,
		queue:     make(chan string, queueSize),
		opTimeout: opTimeout,
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}

	return d
}

// Enqueue schedules an increment for code without blocking. It reports
// whether the event was accepted; false means the queue was full (or the
// dispatcher closed) and the click was dropped.
func (d *Dispatcher) Enqueue(code string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}

	select {
	case d.queue <- code:
		return true
	default:
		n := d.dropped.Add(1)
		d.logger.Warn("click queue full, dropping event",
			"code", code,
			"dropped_total", n,
		)
		return false
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for code := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.opTimeout)
		err := d.acc.Increment(ctx, code)
		cancel()

		if err != nil {
			n := d.failed.Add(1)
			d.logger.Error("click increment failed",
				"code", code,
				"error", err.Error(),
				"failed_total", n,
			)
		}
	}
}

// Dropped returns how many events were dropped due to queue overflow.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Failed returns how many increment attempts errored.
func (d *Dispatcher) Failed() int64 { return d.failed.Load() }

// Close stops accepting events and blocks until queued increments have been
// attempted.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}
