package scan

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"nse-screener/internal/errors"
	"nse-screener/internal/logging"
	"nse-screener/internal/screening"
)

// Capability analyses one work unit. screening.Analyzer is the production
// implementation.
type Capability interface {
	Analyze(ctx context.Context, unit screening.WorkUnit, shared screening.Shared) (*screening.Verdict, error)
}

// Result is the single message a worker emits per work unit. Verdict is nil
// when the stock did not match, was skipped, or failed (Err set).
type Result struct {
	Symbol   string
	Offset   int
	WorkerID int
	Verdict  *screening.Verdict
	Err      error
}

// PoolSize returns the number of workers for a run: the smaller of the
// unit count and the available CPUs, split across sibling scans sharing the
// machine, less one CPU reserved for cache I/O when caching on a machine
// with more than two CPUs. It never returns fewer than two.
func PoolSize(units, cpus, siblings int, cacheEnabled bool) int {
	if siblings < 1 {
		siblings = 1
	}
	n := min(units, cpus) / siblings
	if cacheEnabled && cpus > 2 {
		n--
	}
	return max(n, 2)
}

// Pool is a fixed set of workers pulling work units from a buffered task
// queue and pushing one Result per unit onto a buffered result queue.
// Closing the task queue is the stop sentinel every worker observes.
type Pool struct {
	size       int
	capability Capability
	shared     screening.Shared
	metrics    *Metrics
	logger     zerolog.Logger

	tasks     chan screening.WorkUnit
	results   chan Result
	closeOnce sync.Once

	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	stopped atomic.Bool
	done    chan struct{}
}

// NewPool creates a pool of size workers whose queues hold capacity units.
func NewPool(size, capacity int, capability Capability, shared screening.Shared, metrics *Metrics, logger zerolog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{
		size:       size,
		capability: capability,
		shared:     shared,
		metrics:    metrics,
		logger:     logging.WithOperation(logger, "pool"),
		tasks:      make(chan screening.WorkUnit, capacity),
		results:    make(chan Result, capacity),
		done:       make(chan struct{}),
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Start launches the workers. Cancelling ctx makes every worker drop its
// pending work and exit.
func (p *Pool) Start(ctx context.Context) {
	if p.running.Swap(true) {
		return
	}
	p.ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(i + 1)
	}

	go func() {
		p.wg.Wait()
		close(p.results)
		close(p.done)
	}()
}

// Submit enqueues one unit. It fails once the pool is stopping.
func (p *Pool) Submit(unit screening.WorkUnit) error {
	if !p.running.Load() || p.stopped.Load() {
		return errors.ErrPoolStopped
	}
	select {
	case p.tasks <- unit:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Close sends the stop sentinel: workers exit once the queue is empty.
func (p *Pool) Close() {
	p.closeOnce.Do(func() { close(p.tasks) })
}

// Results is the result queue. It is closed after every worker has exited.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Stop cancels the workers and waits up to timeout for them to exit. It is
// safe to call more than once and on a pool whose workers already exited.
func (p *Pool) Stop(timeout time.Duration) error {
	if !p.running.Load() || !p.stopped.CompareAndSwap(false, true) {
		return nil
	}
	p.cancel()
	p.Close()

	if timeout <= 0 {
		<-p.done
		return nil
	}
	select {
	case <-p.done:
		return nil
	case <-time.After(timeout):
		return errors.Wrapf(errors.ErrTimeout, "workers still running after %s", timeout)
	}
}

// Discard drops results nobody will read and returns how many there were.
// Call it after Stop.
func (p *Pool) Discard() int {
	n := 0
	for {
		select {
		case _, ok := <-p.results:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	logger := logging.WithWorker(p.logger, id)

	for {
		if p.ctx.Err() != nil {
			return
		}
		select {
		case <-p.ctx.Done():
			return
		case unit, ok := <-p.tasks:
			if !ok {
				return
			}
			res := p.run(id, unit, logger)
			select {
			case p.results <- res:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// run analyses one unit. A panic or unexpected error is logged and turned
// into an error Result so the unit is still accounted for and the worker
// keeps going.
func (p *Pool) run(id int, unit screening.WorkUnit, logger zerolog.Logger) (res Result) {
	res = Result{Symbol: unit.Symbol, Offset: unit.Offset, WorkerID: id}
	start := time.Now()
	p.metrics.unitStarted()

	defer func() {
		if r := recover(); r != nil {
			res.Verdict = nil
			res.Err = errors.NewWorkerError(id, unit.Symbol, unit.Offset, fmt.Errorf("panic: %v", r))
			unitLogger := logging.WithUnit(logger, unit.Symbol, unit.Offset)
			unitLogger.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Analysis panicked")
		}
		p.metrics.unitFinished(res, time.Since(start).Seconds())
	}()

	v, err := p.capability.Analyze(p.ctx, unit, p.shared)
	if err != nil {
		res.Err = errors.NewWorkerError(id, unit.Symbol, unit.Offset, err)
		unitLogger := logging.WithUnit(logger, unit.Symbol, unit.Offset)
		unitLogger.Warn().
			Err(err).
			Msg("Analysis failed")
		return res
	}
	res.Verdict = v
	return res
}
