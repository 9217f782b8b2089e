// Package persistence runs storage writes off the ingestion goroutine.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var ErrQueueClosed = errors.New("persistence queue is closed")

const defaultTaskTimeout = 10 * time.Second

// Task is a single storage write.
type Task func(ctx context.Context) error

// PendingTask describes a task that has been submitted but not finished.
type PendingTask struct {
	ID      uuid.UUID
	Name    string
	Started time.Time
}

type Stats struct {
	Submitted uint64
	Succeeded uint64
	Failed    uint64
	Rejected  uint64
}

// Queue runs every submitted task on its own goroutine with a bounded
// context. Failures are logged and counted, never retried.
type Queue struct {
	timeout time.Duration
	logger  *logrus.Entry

	base   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	inFlight map[uuid.UUID]PendingTask
	wg       sync.WaitGroup

	submitted atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64
}

func NewQueue(timeout time.Duration, logger *logrus.Logger) *Queue {
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}
	base, cancel := context.WithCancel(context.Background())
	return &Queue{
		timeout:  timeout,
		logger:   logger.WithField("component", "persistence_queue"),
		base:     base,
		cancel:   cancel,
		inFlight: make(map[uuid.UUID]PendingTask),
	}
}

// Submit schedules fn and returns false when the queue no longer accepts work.
func (q *Queue) Submit(name string, fn Task) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.rejected.Add(1)
		q.logger.WithField("task", name).Warn("task rejected, queue closed")
		return false
	}
	task := PendingTask{ID: uuid.New(), Name: name, Started: time.Now()}
	q.inFlight[task.ID] = task
	q.wg.Add(1)
	q.mu.Unlock()

	q.submitted.Add(1)
	go q.run(task, fn)
	return true
}

func (q *Queue) run(task PendingTask, fn Task) {
	defer q.wg.Done()
	defer func() {
		q.mu.Lock()
		delete(q.inFlight, task.ID)
		q.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(q.base, q.timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		q.failed.Add(1)
		q.logger.WithError(err).WithFields(logrus.Fields{
			"task":    task.Name,
			"task_id": task.ID.String(),
		}).Warn("persistence task failed")
		return
	}
	q.succeeded.Add(1)
	q.logger.WithFields(logrus.Fields{
		"task":    task.Name,
		"took_ms": time.Since(task.Started).Milliseconds(),
	}).Debug("persistence task done")
}

// InFlight lists unfinished tasks, oldest first.
func (q *Queue) InFlight() []PendingTask {
	q.mu.Lock()
	out := make([]PendingTask, 0, len(q.inFlight))
	for _, task := range q.inFlight {
		out = append(out, task)
	}
	q.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}

func (q *Queue) Stats() Stats {
	return Stats{
		Submitted: q.submitted.Load(),
		Succeeded: q.succeeded.Load(),
		Failed:    q.failed.Load(),
		Rejected:  q.rejected.Load(),
	}
}

// Drain stops accepting tasks and waits for the in-flight ones. When ctx
// expires first the remaining tasks are cancelled and reported in the error.
func (q *Queue) Drain(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		stats := q.Stats()
		q.logger.WithFields(logrus.Fields{
			"submitted": stats.Submitted,
			"succeeded": stats.Succeeded,
			"failed":    stats.Failed,
		}).Info("persistence queue drained")
		return nil
	case <-ctx.Done():
		pending := q.InFlight()
		q.cancel()
		names := make([]string, 0, len(pending))
		for _, task := range pending {
			names = append(names, task.Name)
		}
		q.logger.WithField("pending", names).Warn("persistence queue drain timed out")
		return fmt.Errorf("drain persistence queue: %d tasks pending [%s]: %w",
			len(pending), strings.Join(names, ", "), ctx.Err())
	}
}
