package modelstore

import (
	"context"
	"fmt"
	goruntime "runtime"
	"sync"
)

// scriptItem holds everything a script worker needs.
type scriptItem struct {
	path   string
	source string
}

// RunScripts runs several scripts against the shared store in two phases:
//
//	Phase A (serial):   load every script so a missing file fails the run
//	                    before anything executes.
//	Phase B (parallel): execute via a worker pool, each worker with its own
//	                    Runtime.
//
// Scripts see each other's writes as they happen; scripts that need an
// atomic view should hold a critical section or build a batch. Every
// script runs even when another fails; the first error is returned.
func (e *Engine) RunScripts(ctx context.Context, paths []string) error {
	// ---- Phase A: Serial load ----
	items := make([]scriptItem, 0, len(paths))
	for _, path := range paths {
		src, err := e.runtime.LoadScript(path)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		items = append(items, scriptItem{path: path, source: src})
	}
	if len(items) == 0 {
		return nil
	}

	// ---- Phase B: Parallel execution ----
	numWorkers := e.workers
	if numWorkers <= 0 {
		numWorkers = goruntime.NumCPU()
	}
	numWorkers = max(1, min(numWorkers, len(items)))

	workCh := make(chan scriptItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	type result struct {
		item scriptItem
		err  error
	}
	resultCh := make(chan result, len(items))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rt := e.newRuntime()
			for item := range workCh {
				if err := ctx.Err(); err != nil {
					resultCh <- result{item: item, err: err}
					continue
				}
				globals := map[string]any{"script_path": item.path}
				err := rt.RunSource(ctx, item.source, globals)
				resultCh <- result{item: item, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var errs []error
	for res := range resultCh {
		if res.err != nil {
			e.logger.Warn("script failed", "script", res.item.path, "error", res.err)
			errs = append(errs, fmt.Errorf("run %s: %w", res.item.path, res.err))
			continue
		}
		e.logger.Debug("script done", "script", res.item.path)
	}

	if len(errs) > 0 {
		return fmt.Errorf("parallel run had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}
