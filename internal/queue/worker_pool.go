package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// PoolConfig holds configuration for the worker pool
type PoolConfig struct {
	// WorkerCount determines how many concurrent executors process jobs
	WorkerCount int

	// RatePerSecond caps dequeue attempts across all executors combined
	RatePerSecond float64

	// JobTimeout bounds a single handler execution
	JobTimeout time.Duration

	// PollInterval is how long an executor sleeps when the queue is empty
	// or a dequeue fails
	PollInterval time.Duration

	// Retry maps failed attempts to backoff delays
	Retry RetryPolicy

	// StaleClaimAge defines how long a job can stay Active before the
	// monitor considers its claim dead and returns it to Pending
	StaleClaimAge time.Duration

	// StaleCheckInterval defines how often to check for stale claims
	StaleCheckInterval time.Duration

	// SweepInterval defines how often retention runs
	SweepInterval time.Duration

	// CompletedTTL, CompletedCap and FailedTTL are the retention knobs
	// passed through to JobStore.Sweep
	CompletedTTL time.Duration
	CompletedCap int
	FailedTTL    time.Duration
}

// DefaultPoolConfig returns a PoolConfig with reasonable defaults
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		WorkerCount:        5,
		RatePerSecond:      100,
		JobTimeout:         60 * time.Second,
		PollInterval:       250 * time.Millisecond,
		Retry:              DefaultRetryPolicy(),
		StaleClaimAge:      10 * time.Minute,
		StaleCheckInterval: time.Minute,
		SweepInterval:      10 * time.Minute,
		CompletedTTL:       time.Hour,
		CompletedCap:       1000,
		FailedTTL:          24 * time.Hour,
	}
}

// Pool runs a fixed set of executor goroutines that dequeue jobs, decode
// their payloads, dispatch them to registered handlers, and translate the
// outcome into exactly one of Ack, Nack or Fail. The pool is the only
// component that moves jobs out of the Active state, so handlers stay
// free of queue bookkeeping.
type Pool struct {
	store    JobStore
	registry *Registry
	hooks    Hooks
	limiter  *rate.Limiter
	config   PoolConfig
	logger   *slog.Logger

	// loopCtx stops the executor and housekeeping loops. jobsCtx is the
	// parent of every per-job context; it stays alive through a graceful
	// stop so in-flight handlers can finish, and is cancelled only when
	// the stop deadline expires. Both are rebuilt on every Start so a
	// stopped pool can be started again.
	loopCtx    context.Context
	loopCancel context.CancelFunc
	jobsCtx    context.Context
	jobsCancel context.CancelFunc

	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewPool creates a worker pool. The registry must already contain a
// handler for every kind the store may hold; jobs with no handler are
// failed terminally rather than retried.
func NewPool(store JobStore, registry *Registry, hooks Hooks, config PoolConfig, log *slog.Logger) *Pool {
	if store == nil {
		panic("queue: NewPool requires a job store")
	}
	if registry == nil {
		panic("queue: NewPool requires a handler registry")
	}
	if hooks == nil {
		hooks = NopHooks{}
	}
	if log == nil {
		log = slog.Default()
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultPoolConfig().WorkerCount
	}
	if config.RatePerSecond <= 0 {
		config.RatePerSecond = DefaultPoolConfig().RatePerSecond
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultPoolConfig().JobTimeout
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPoolConfig().PollInterval
	}
	if config.Retry.BaseDelay <= 0 {
		config.Retry = DefaultRetryPolicy()
	}

	return &Pool{
		store:    store,
		registry: registry,
		hooks:    hooks,
		// Burst equals the executor count so an idle pool can put every
		// executor to work at once without exceeding the sustained rate.
		limiter: rate.NewLimiter(rate.Limit(config.RatePerSecond), config.WorkerCount),
		config:  config,
		logger:  log.With(slog.String("component", "worker_pool")),
	}
}

// Start launches the executor goroutines plus the stale-claim monitor and
// the retention sweeper. It returns immediately. A pool stopped with Stop
// may be started again; the loop and job contexts are rebuilt on every
// start.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.loopCtx, p.loopCancel = context.WithCancel(context.Background())
	p.jobsCtx, p.jobsCancel = context.WithCancel(context.Background())

	p.logger.Info("worker pool starting",
		slog.Int("worker_count", p.config.WorkerCount),
		slog.Float64("rate_per_second", p.config.RatePerSecond),
		slog.Duration("job_timeout", p.config.JobTimeout))

	// The contexts are handed to the goroutines rather than re-read from
	// the pool, so loops from a previous run never observe a restart's
	// fresh contexts.
	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.executor(p.loopCtx, p.jobsCtx, i)
	}

	if p.config.StaleCheckInterval > 0 {
		p.wg.Add(1)
		go p.staleClaimMonitor(p.loopCtx)
	}

	if p.config.SweepInterval > 0 {
		p.wg.Add(1)
		go p.sweeper(p.loopCtx)
	}

	return nil
}

// Stop gracefully shuts the pool down: no new jobs are dequeued, and
// in-flight handlers run to completion. If ctx expires first, the
// per-job contexts are cancelled and Stop waits for the handlers to
// observe that.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	loopCancel, jobsCancel := p.loopCancel, p.jobsCancel
	p.mu.Unlock()

	p.logger.Info("worker pool stopping")
	loopCancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped")
		return nil
	case <-ctx.Done():
		p.logger.Warn("worker pool stop deadline reached, cancelling in-flight jobs")
		jobsCancel()
		<-done
		return ctx.Err()
	}
}

// executor is the loop run by each worker goroutine: rate-limit, dequeue,
// process, repeat.
func (p *Pool) executor(loopCtx, jobsCtx context.Context, id int) {
	defer p.wg.Done()

	workerID := fmt.Sprintf("worker-%d", id)
	log := p.logger.With(slog.String("worker_id", workerID))
	log.Debug("executor started")

	for {
		// The shared limiter sits in front of every dequeue, so the pool
		// as a whole never issues more than RatePerSecond claims.
		if err := p.limiter.Wait(loopCtx); err != nil {
			log.Debug("executor stopped")
			return
		}

		job, err := p.store.Dequeue(loopCtx, workerID)
		if err != nil {
			if errors.Is(err, ErrNoJobs) {
				p.sleep(loopCtx)
				continue
			}
			if loopCtx.Err() != nil {
				log.Debug("executor stopped")
				return
			}
			log.Error("dequeue failed", slog.String("error", err.Error()))
			p.sleep(loopCtx)
			continue
		}

		p.process(jobsCtx, job, log)
	}
}

// process runs one claimed job end to end. Every path out of this
// function settles the job exactly once: Ack on success, Fail on
// terminal errors, Nack otherwise.
func (p *Pool) process(jobsCtx context.Context, job *Job, log *slog.Logger) {
	log = log.With(
		slog.String("job_id", job.ID.String()),
		slog.String("job_kind", string(job.Kind)),
		slog.Int("attempt", job.Attempt))

	payload, err := DecodePayload(job.Kind, job.Payload)
	if err != nil {
		p.fail(job, err, log)
		return
	}
	if err := payload.Validate(); err != nil {
		p.fail(job, NewValidationError(err.Error()), log)
		return
	}

	handler, ok := p.registry.Get(job.Kind)
	if !ok {
		p.fail(job, &UnknownKindError{Kind: job.Kind}, log)
		return
	}

	// Jobs claimed before a graceful stop keep running; only the per-job
	// timeout (or a forced stop) cancels them.
	ctx, cancel := context.WithTimeout(jobsCtx, p.config.JobTimeout)
	defer cancel()

	log.Info("processing job")
	start := time.Now()
	result, err := handler.Handle(ctx, payload)
	elapsed := time.Since(start)

	if err != nil {
		p.settleFailure(job, err, log)
		return
	}

	if ackErr := p.store.Ack(context.Background(), job.ID); ackErr != nil {
		// The claim may have been requeued as stale; another executor
		// will rerun the job (at-least-once).
		log.Error("failed to ack job", slog.String("error", ackErr.Error()))
		return
	}

	p.hooks.OnJobCompleted(job.ID)
	log.Info("job completed",
		slog.Int("processed", result.Processed),
		slog.Duration("elapsed", elapsed))
}

// settleFailure classifies a handler error. Validation and unknown-kind
// errors never resolve on retry, so they go straight to Fail; everything
// else is Nacked with the policy delay and the store decides Pending vs
// Failed from the attempt budget.
func (p *Pool) settleFailure(job *Job, handlerErr error, log *slog.Logger) {
	if IsTerminalFailure(handlerErr) {
		p.fail(job, handlerErr, log)
		return
	}

	delay := p.config.Retry.Delay(job.Attempt)
	if nackErr := p.store.Nack(context.Background(), job.ID, handlerErr, delay); nackErr != nil {
		log.Error("failed to nack job", slog.String("error", nackErr.Error()))
		return
	}

	if job.Attempt+1 >= job.MaxAttempts {
		log.Error("job failed permanently, retries exhausted",
			slog.String("error", handlerErr.Error()),
			slog.Int("attempts", job.Attempt+1))
		p.hooks.OnJobFailedFinal(job.ID, handlerErr)
		return
	}

	log.Warn("job failed, scheduled for retry",
		slog.String("error", handlerErr.Error()),
		slog.Duration("retry_delay", delay))
}

// fail marks a job terminally failed without consuming retries.
func (p *Pool) fail(job *Job, jobErr error, log *slog.Logger) {
	if failErr := p.store.Fail(context.Background(), job.ID, jobErr); failErr != nil {
		log.Error("failed to mark job failed", slog.String("error", failErr.Error()))
		return
	}
	log.Error("job failed permanently", slog.String("error", jobErr.Error()))
	p.hooks.OnJobFailedFinal(job.ID, jobErr)
}

// staleClaimMonitor periodically returns jobs whose claim outlived
// StaleClaimAge to Pending. This is the crash-recovery path: an executor
// that dies mid-job leaves the job Active, and the monitor (on any
// instance) eventually hands it to a live executor.
func (p *Pool) staleClaimMonitor(loopCtx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.StaleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-loopCtx.Done():
			return

		case <-ticker.C:
			requeued, err := p.store.RequeueStale(context.Background(), p.config.StaleClaimAge)
			if err != nil {
				p.logger.Error("failed to requeue stale jobs", slog.String("error", err.Error()))
				continue
			}
			if requeued > 0 {
				p.logger.Info("requeued stale jobs", slog.Int("count", requeued))
			}
		}
	}
}

// sweeper periodically applies the retention policy to terminal jobs.
func (p *Pool) sweeper(loopCtx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-loopCtx.Done():
			return

		case <-ticker.C:
			removed, err := p.store.Sweep(context.Background(),
				p.config.CompletedTTL, p.config.CompletedCap, p.config.FailedTTL)
			if err != nil {
				p.logger.Error("retention sweep failed", slog.String("error", err.Error()))
				continue
			}
			if removed > 0 {
				p.logger.Info("swept terminal jobs", slog.Int("count", removed))
			}
		}
	}
}

func (p *Pool) sleep(loopCtx context.Context) {
	select {
	case <-time.After(p.config.PollInterval):
	case <-loopCtx.Done():
	}
}
