package backtest

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/ducminhle1904/crypto-swing-bot/internal/strategy"
)

// EvaluateFunc scores one parameter candidate
type EvaluateFunc func(ctx context.Context, params strategy.Params) (*BacktestResults, error)

// WorkerPool evaluates parameter candidates in parallel. Evaluations share
// nothing mutable: each builds its own PositionManager and tracker.
type WorkerPool struct {
	workerCount int
	evaluate    EvaluateFunc
	jobQueue    chan EvaluationJob
	resultQueue chan EvaluationResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

// EvaluationJob is a single candidate. Index orders results independently
// of completion order.
type EvaluationJob struct {
	Index  int
	Params strategy.Params
}

// EvaluationResult is the outcome of an EvaluationJob
type EvaluationResult struct {
	Index    int
	Params   strategy.Params
	Results  *BacktestResults
	Duration time.Duration
	Error    error
}

// NewWorkerPool creates a pool. A non-positive workerCount uses NumCPU.
func NewWorkerPool(ctx context.Context, workerCount, jobBufferSize int, evaluate EvaluateFunc) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		workerCount: workerCount,
		evaluate:    evaluate,
		jobQueue:    make(chan EvaluationJob, jobBufferSize),
		resultQueue: make(chan EvaluationResult, jobBufferSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the workers
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

// Stop closes the queue, waits for the workers and closes the results
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
}

// SubmitJob queues a job, failing when the pool context is done
func (wp *WorkerPool) SubmitJob(job EvaluationJob) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// GetResults returns the result channel for collecting completed jobs
func (wp *WorkerPool) GetResults() <-chan EvaluationResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for {
		select {
		case job, ok := <-wp.jobQueue:
			if !ok {
				return
			}

			result := wp.processJob(job)

			select {
			case wp.resultQueue <- result:
			case <-wp.ctx.Done():
				return
			}

		case <-wp.ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) processJob(job EvaluationJob) EvaluationResult {
	startTime := time.Now()
	results, err := wp.evaluate(wp.ctx, job.Params)
	return EvaluationResult{
		Index:    job.Index,
		Params:   job.Params,
		Results:  results,
		Duration: time.Since(startTime),
		Error:    err,
	}
}

// EvaluateAll runs every candidate on a fresh pool and returns the results
// ordered like candidates
func EvaluateAll(ctx context.Context, workers int, candidates []strategy.Params, evaluate EvaluateFunc) ([]EvaluationResult, error) {
	pool := NewWorkerPool(ctx, workers, len(candidates), evaluate)
	pool.Start()

	for i, params := range candidates {
		if err := pool.SubmitJob(EvaluationJob{Index: i, Params: params}); err != nil {
			pool.Stop()
			return nil, err
		}
	}

	ordered := make([]EvaluationResult, len(candidates))
	received := 0
	for received < len(candidates) {
		select {
		case result := <-pool.GetResults():
			ordered[result.Index] = result
			received++
		case <-ctx.Done():
			pool.cancel()
			pool.Stop()
			return nil, ctx.Err()
		}
	}
	pool.Stop()
	return ordered, nil
}

// ProgressTracker tracks how many evaluations completed
type ProgressTracker struct {
	total     int
	completed int
	startTime time.Time
	mutex     sync.RWMutex
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{
		total:     total,
		startTime: time.Now(),
	}
}

// Increment increments the completion count
func (pt *ProgressTracker) Increment() {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()
	pt.completed++
}

// GetProgress returns completed, total, percent and elapsed time
func (pt *ProgressTracker) GetProgress() (int, int, float64, time.Duration) {
	pt.mutex.RLock()
	defer pt.mutex.RUnlock()

	progress := 0.0
	if pt.total > 0 {
		progress = float64(pt.completed) / float64(pt.total) * 100
	}
	return pt.completed, pt.total, progress, time.Since(pt.startTime)
}
