package workerpool

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Config configures the worker pool.
type Config struct {
	MaxConcurrent int // Maximum concurrent work items (default: 4)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 4,
	}
}

// WorkerPool runs CPU-bound work with bounded parallelism. A semaphore
// limits outstanding items; a slot is released as soon as an item finishes
// so the next one starts immediately.
type WorkerPool struct {
	config Config
	logger *zap.Logger
}

// New creates a worker pool.
func New(config Config, logger *zap.Logger) *WorkerPool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	return &WorkerPool{
		config: config,
		logger: logger.Named("worker-pool"),
	}
}

// MaxConcurrent returns the configured parallelism.
func (p *WorkerPool) MaxConcurrent() int {
	return p.config.MaxConcurrent
}

// WorkItem represents a unit of work to be processed.
type WorkItem[T any] struct {
	ID      string                               // For logging/tracking
	Execute func(ctx context.Context) (T, error) // The work to be executed
}

// WorkResult represents the result of a work item.
type WorkResult[T any] struct {
	ID     string
	Index  int // position of the item in the submitted slice
	Result T
	Err    error
}

// Process executes all work items with bounded parallelism and returns the
// results in submission order, regardless of completion order. Every item
// gets a result: items that never acquired a slot before ctx was cancelled
// carry ctx.Err(). A failing item does not stop the others.
func Process[T any](
	ctx context.Context,
	pool *WorkerPool,
	items []WorkItem[T],
	onProgress func(completed, total int),
) []WorkResult[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]WorkResult[T], len(items))
	resultsChan := make(chan WorkResult[T], len(items))
	sem := make(chan struct{}, pool.config.MaxConcurrent)

	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(index int, item WorkItem[T]) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				resultsChan <- WorkResult[T]{ID: item.ID, Index: index, Err: ctx.Err()}
				return
			}

			if err := ctx.Err(); err != nil {
				resultsChan <- WorkResult[T]{ID: item.ID, Index: index, Err: err}
				return
			}

			result, err := item.Execute(ctx)
			if err != nil {
				pool.logger.Debug("Work item failed",
					zap.String("id", item.ID),
					zap.Error(err))
			}
			resultsChan <- WorkResult[T]{
				ID:     item.ID,
				Index:  index,
				Result: result,
				Err:    err,
			}
		}(i, item)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	completed := 0
	for result := range resultsChan {
		results[result.Index] = result
		completed++
		if onProgress != nil {
			onProgress(completed, len(items))
		}
	}

	return results
}
