package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskdeck/taskdeck-api/internal/store"
)

// Scanner defaults, used when the corresponding constructor argument is
// non-positive.
const (
	DefaultScanInterval     = 5 * time.Minute
	DefaultOverdueBatchSize = 100
)

// OverdueEnqueuer is the slice of the queue gateway the scanner needs.
type OverdueEnqueuer interface {
	// EnqueueOverdueBatch enqueues one notification job covering the
	// given task ids.
	EnqueueOverdueBatch(ctx context.Context, taskIDs []uuid.UUID) (uuid.UUID, error)
}

// OverdueScanner periodically looks for tasks past their due date and
// queues one OverdueNotification job per batch found. It scans once at
// startup and then on every tick, so a restart does not wait out a full
// interval before overdue tasks are noticed.
type OverdueScanner struct {
	tasks     store.TaskStore
	enqueuer  OverdueEnqueuer
	interval  time.Duration
	batchSize int
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewOverdueScanner creates a scanner over the given task store and
// gateway. Non-positive interval or batch size falls back to the package
// defaults. If logger is nil, a default logger will be used.
func NewOverdueScanner(
	tasks store.TaskStore,
	enqueuer OverdueEnqueuer,
	interval time.Duration,
	batchSize int,
	log *slog.Logger,
) *OverdueScanner {
	if tasks == nil {
		panic("service: NewOverdueScanner requires a task store")
	}
	if enqueuer == nil {
		panic("service: NewOverdueScanner requires an enqueuer")
	}
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultOverdueBatchSize
	}
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &OverdueScanner{
		tasks:     tasks,
		enqueuer:  enqueuer,
		interval:  interval,
		batchSize: batchSize,
		logger:    log.With(slog.String("component", "overdue_scanner")),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the scan loop. It returns immediately.
func (s *OverdueScanner) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true

	s.logger.Info("overdue scanner starting",
		slog.Duration("interval", s.interval),
		slog.Int("batch_size", s.batchSize))

	s.wg.Add(1)
	go s.loop()

	return nil
}

// Stop shuts the scanner down and waits for an in-flight scan to finish.
// If ctx expires first, Stop returns its error without waiting further.
func (s *OverdueScanner) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("overdue scanner stopping")
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("overdue scanner stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *OverdueScanner) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.scan()

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-ticker.C:
			s.scan()
		}
	}
}

// scan runs one pass: list overdue tasks as of now, enqueue one job for
// the batch. Errors are logged and the pass is abandoned; the next tick
// retries from scratch.
func (s *OverdueScanner) scan() {
	tasks, err := s.tasks.ListOverdue(s.ctx, time.Now().UTC(), s.batchSize)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.logger.Error("overdue scan failed", slog.String("error", err.Error()))
		return
	}
	if len(tasks) == 0 {
		return
	}

	ids := make([]uuid.UUID, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
	}

	jobID, err := s.enqueuer.EnqueueOverdueBatch(s.ctx, ids)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.logger.Error("failed to enqueue overdue batch",
			slog.String("error", err.Error()),
			slog.Int("task_count", len(ids)))
		return
	}

	s.logger.Info("overdue batch enqueued",
		slog.Int("task_count", len(ids)),
		slog.String("job_id", jobID.String()))
}
