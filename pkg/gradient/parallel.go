package gradient

import (
	"runtime"
	"sync"
)

// forEachSlice runs fn once for every z in [0, depth), dividing the slices
// into contiguous blocks, one block per worker.
func forEachSlice(depth, workers int, fn func(z int)) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > depth {
		workers = depth
	}

	var wg sync.WaitGroup
	slicesPerCore := (depth + workers - 1) / workers

	for c := 0; c < workers; c++ {
		startSlice := c * slicesPerCore
		endSlice := min((c+1)*slicesPerCore, depth)
		if startSlice >= depth {
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			for z := startSlice; z < endSlice; z++ {
				fn(z)
			}
		}()
	}
	wg.Wait()
}
