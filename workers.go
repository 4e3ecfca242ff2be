package ginseng

import "sync"

// runWorkers fans n tasks out over a bounded pool: a counting semaphore
// admits at most limit workers at a time, each task runs exactly once, and
// the call returns when every worker has finished. No ordering is
// guaranteed between tasks.
func runWorkers(n, limit int, task func(i int)) {
	if limit < 1 {
		limit = 1
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			task(i)
		}(i)
	}

	wg.Wait()
}
