package queue

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RunRequest describes one queued suite run.
type RunRequest struct {
	Suite    string
	Category string
	Trigger  string // schedule, manual
}

// Queuer defines the interface for queue operations.
type Queuer interface {
	Start(ctx context.Context)
	Stop(ctx context.Context)
}

// RunQueue is a concrete queue type for suite run requests.
type RunQueue struct {
	*Queue[*RunRequest]
}

// NewRunQueue creates a new run queue.
func NewRunQueue(log *logrus.Logger, worker func(context.Context, *RunRequest) (bool, error), metrics *Metrics) *RunQueue {
	return &RunQueue{
		Queue: NewQueue[*RunRequest](log, worker, metrics),
	}
}

// Queue is a generic queue for processing items.
type Queue[T any] struct {
	log        *logrus.Logger
	queue      chan T
	processing sync.Map
	worker     func(context.Context, T) (bool, error)
	metrics    *Metrics
}

// NewQueue creates a new queue.
func NewQueue[T any](log *logrus.Logger, worker func(context.Context, T) (bool, error), metrics *Metrics) *Queue[T] {
	return &Queue[T]{
		log:     log,
		queue:   make(chan T, 100),
		worker:  worker,
		metrics: metrics,
	}
}

// SetWorker sets the worker function for processing items.
func (q *Queue[T]) SetWorker(worker func(context.Context, T) (bool, error)) {
	q.worker = worker
}

func (q *Queue[T]) Start(ctx context.Context) {
	go q.processQueue(ctx)
}

// Stop stops the queue processor.
func (q *Queue[T]) Stop(ctx context.Context) {
	// The queue processor will stop when the context is cancelled.
	q.metrics.queueLength.Set(0)
}

// Enqueue adds a run request unless the same suite and category is
// already queued or in flight.
func (q *Queue[T]) Enqueue(item T) {
	if _, exists := q.processing.LoadOrStore(q.getItemKey(item), true); exists {
		q.metrics.skipsDueToLock.WithLabelValues(q.getItemSuite(item), q.getItemTrigger(item)).Inc()
		q.log.WithFields(logrus.Fields{
			"suite":   q.getItemSuite(item),
			"trigger": q.getItemTrigger(item),
		}).Debug("Run already in progress, skipping")

		return
	}

	q.metrics.queuedTotal.WithLabelValues(q.getItemSuite(item), q.getItemTrigger(item)).Inc()
	q.metrics.queueLength.Inc()
	q.queue <- item
}

// processQueue processes the queue of items.
func (q *Queue[T]) processQueue(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-q.queue:
			start := time.Now()
			key := q.getItemKey(item)

			q.metrics.queueLength.Dec()

			success, err := q.worker(ctx, item)
			duration := time.Since(start).Seconds()

			q.metrics.processingTime.WithLabelValues(q.getItemSuite(item), q.getItemTrigger(item)).Observe(duration)

			if err != nil {
				q.metrics.failuresTotal.WithLabelValues(q.getItemSuite(item), q.getItemTrigger(item), "worker_error").Inc()
				q.log.WithError(err).Error("Failed to process run")
			}

			status := "success"
			if !success {
				status = "failed"
			}

			q.metrics.processedTotal.WithLabelValues(q.getItemSuite(item), q.getItemTrigger(item), status).Inc()

			q.processing.Delete(key)

			time.Sleep(1 * time.Second)
		}
	}
}

// getItemKey returns a unique key for the item. Trigger is left out,
// a manual run and a scheduled run of the same suite are the same
// workload.
func (q *Queue[T]) getItemKey(item T) string {
	return q.getItemSuite(item) + "-" + q.getItemCategory(item)
}

// getItemSuite returns the suite name for the item.
func (q *Queue[T]) getItemSuite(item T) string {
	if req, ok := any(item).(*RunRequest); ok {
		return req.Suite
	}

	return "unknown"
}

// getItemCategory returns the category filter for the item.
func (q *Queue[T]) getItemCategory(item T) string {
	if req, ok := any(item).(*RunRequest); ok {
		return req.Category
	}

	return "unknown"
}

// getItemTrigger returns what triggered the item.
func (q *Queue[T]) getItemTrigger(item T) string {
	if req, ok := any(item).(*RunRequest); ok {
		return req.Trigger
	}

	return "unknown"
}
