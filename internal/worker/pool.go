package worker

import "runtime"

type result[T any] struct {
	index int
	value T
}

// Map runs fn for every index in [0, n) on a pool of workers and returns the
// results in index order. workers <= 0 uses one worker per CPU.
func Map[T any](n, workers int, fn func(i int) T) []T {
	if n <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}

	jobs := make(chan int, workers)
	results := make(chan result[T], n)

	for w := 0; w < workers; w++ {
		go func() {
			for i := range jobs {
				results <- result[T]{index: i, value: fn(i)}
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	all := make([]T, n)
	for i := 0; i < n; i++ {
		r := <-results
		all[r.index] = r.value
	}
	return all
}
