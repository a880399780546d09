// Package retrain runs model re-fits out-of-band from the request path
// that scheduled them.
package retrain

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Request names one (region, crop) scope queued for re-fit. Requests
// are ephemeral: not persisted, consumed exactly once, and lost on
// crash — the next qualifying price report re-raises them.
type Request struct {
	Region string
	Crop   string
}

// Trainer re-fits the forecasting model for one scope from all actual
// observations and atomically replaces the persisted artifact.
// Implementations must tolerate duplicate and back-to-back requests.
type Trainer interface {
	Retrain(ctx context.Context, region, crop string) error
}

// Scheduler is a bounded in-process queue of retraining requests.
type Scheduler struct {
	ch chan Request
}

// NewScheduler creates a scheduler with the given queue capacity.
func NewScheduler(queueSize int) *Scheduler {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Scheduler{ch: make(chan Request, queueSize)}
}

// TryEnqueue offers a request without blocking. Returns false when the
// queue is full; callers treat that as a dropped fire-and-forget.
func (s *Scheduler) TryEnqueue(region, crop string) bool {
	select {
	case s.ch <- Request{Region: region, Crop: crop}:
		return true
	default:
		return false
	}
}

// Requests exposes the queue to the worker.
func (s *Scheduler) Requests() <-chan Request {
	return s.ch
}

// Worker drains the scheduler with a pool of goroutines, rate-limited
// so a burst of drift events does not re-fit in a tight loop. Trainer
// failures are logged and never propagated; the worker keeps running
// until its context is canceled.
type Worker struct {
	sched   *Scheduler
	trainer Trainer
	workers int
	limiter *rate.Limiter
}

// NewWorker creates a retraining worker pool. minInterval is the
// minimum spacing between re-fit starts across the pool.
func NewWorker(sched *Scheduler, trainer Trainer, workers int, minInterval time.Duration) *Worker {
	if workers <= 0 {
		workers = 1
	}
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Worker{
		sched:   sched,
		trainer: trainer,
		workers: workers,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Run blocks until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case req := <-w.sched.Requests():
					w.handle(gctx, req)
				}
			}
		})
	}
	return g.Wait()
}

func (w *Worker) handle(ctx context.Context, req Request) {
	if err := w.limiter.Wait(ctx); err != nil {
		return // shutting down
	}

	log := zap.L().With(zap.String("region", req.Region), zap.String("crop", req.Crop))
	log.Info("retraining started")
	start := time.Now()

	if err := w.trainer.Retrain(ctx, req.Region, req.Crop); err != nil {
		// Operational visibility only: retraining failures never reach
		// the caller that reported the triggering price.
		log.Error("retraining failed", zap.Error(err))
		return
	}
	log.Info("retraining complete", zap.Duration("took", time.Since(start)))
}
