// Package worker runs background tasks queued by the reconciliation engine,
// currently remote event deletion with retry.
package worker

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"clinic_server/core/port/out"

	"github.com/go-pkgz/pool"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	maxAttempts    = 5
	baseBackoff    = 2 * time.Second
	maxBackoff     = 2 * time.Minute
	workerChanSize = 64
)

// Config holds worker pool configuration.
type Config struct {
	MaxWorkers int
}

// DefaultConfig returns default worker configuration.
func DefaultConfig() *Config {
	return &Config{MaxWorkers: 4}
}

// CleanupWorker implements out.TaskQueue on a go-pkgz worker pool. Tasks are
// fire-and-forget from the caller's view; failed deletes retry with backoff
// and are dropped with a log line after maxAttempts.
type CleanupWorker struct {
	provider out.CalendarProviderPort
	tokens   out.TokenProvider
	config   *Config
	log      zerolog.Logger

	group  *pool.WorkerGroup[*out.Task]
	ctx    context.Context
	cancel context.CancelFunc

	started bool
	mu      sync.Mutex
}

// taskWorker implements pool.Worker for cleanup tasks.
type taskWorker struct {
	w *CleanupWorker
}

// Do implements pool.Worker.
func (tw *taskWorker) Do(ctx context.Context, task *out.Task) error {
	return tw.w.process(ctx, task)
}

// NewCleanupWorker creates a new CleanupWorker.
func NewCleanupWorker(provider out.CalendarProviderPort, tokens out.TokenProvider, config *Config, log zerolog.Logger) *CleanupWorker {
	if config == nil {
		config = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &CleanupWorker{
		provider: provider,
		tokens:   tokens,
		config:   config,
		log:      log.With().Str("component", "cleanup_worker").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the pool.
func (w *CleanupWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return
	}

	w.group = pool.New[*out.Task](w.config.MaxWorkers, &taskWorker{w: w}).
		WithWorkerChanSize(workerChanSize).
		WithContinueOnError()

	if err := w.group.Go(w.ctx); err != nil {
		w.log.Error().Err(err).Msg("failed to start worker pool")
		return
	}

	w.started = true
	w.log.Info().Int("workers", w.config.MaxWorkers).Msg("cleanup worker started")
}

// Stop drains the queue and shuts the pool down.
func (w *CleanupWorker) Stop(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}
	w.started = false

	if err := w.group.Close(ctx); err != nil {
		w.log.Warn().Err(err).Msg("worker pool closed with error")
	}
	w.cancel()
	w.log.Info().Msg("cleanup worker stopped")
}

// Enqueue implements out.TaskQueue. false means the pool is not running.
func (w *CleanupWorker) Enqueue(task *out.Task) bool {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()

	if !started {
		return false
	}

	select {
	case <-w.ctx.Done():
		return false
	default:
	}

	w.group.Submit(task)
	return true
}

func (w *CleanupWorker) process(ctx context.Context, task *out.Task) error {
	switch task.Type {
	case out.TaskRemoteEventDelete:
		return w.deleteRemoteEvent(ctx, task)
	default:
		w.log.Warn().Str("type", task.Type).Msg("unknown task type dropped")
		return nil
	}
}

func (w *CleanupWorker) deleteRemoteEvent(ctx context.Context, task *out.Task) error {
	log := w.log.With().
		Str("event_id", task.EventID).
		Str("calendar_id", task.CalendarID).
		Int("attempt", task.Attempt).
		Logger()

	userID, err := uuid.Parse(task.UserID)
	if err != nil {
		log.Error().Err(err).Msg("task carries invalid user id, dropping")
		return nil
	}

	token, err := w.tokens.ResolveToken(ctx, userID, "")
	if err != nil || token == nil {
		// No usable credential; the orphan event stays on the calendar
		// until the user reconnects.
		log.Warn().Err(err).Msg("no credential for remote delete, dropping")
		return nil
	}

	err = w.provider.DeleteEvent(ctx, token, task.CalendarID, task.EventID)
	if err == nil || isNotFound(err) {
		log.Debug().Msg("remote event deleted")
		return nil
	}

	if task.Attempt+1 >= maxAttempts {
		log.Error().Err(err).Msg("remote delete failed permanently")
		return err
	}

	w.retryLater(task, err)
	return nil
}

// retryLater re-submits the task after a jittered backoff. The timer runs
// outside the worker goroutine so the pool is never blocked.
func (w *CleanupWorker) retryLater(task *out.Task, cause error) {
	next := &out.Task{
		Type:       task.Type,
		UserID:     task.UserID,
		CalendarID: task.CalendarID,
		EventID:    task.EventID,
		Attempt:    task.Attempt + 1,
	}

	backoff := baseBackoff << uint(task.Attempt)
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	backoff += time.Duration(rand.Int63n(int64(backoff) / 2))

	w.log.Warn().Err(cause).
		Str("event_id", task.EventID).
		Dur("backoff", backoff).
		Int("next_attempt", next.Attempt).
		Msg("remote delete failed, retrying")

	time.AfterFunc(backoff, func() {
		if !w.Enqueue(next) {
			w.log.Warn().Str("event_id", task.EventID).Msg("retry dropped, worker stopped")
		}
	})
}

func isNotFound(err error) bool {
	var pe *out.ProviderError
	return errors.As(err, &pe) && pe.Code == out.ProviderErrNotFound
}
