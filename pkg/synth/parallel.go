package synth

import (
	"context"
	"sync"
)

// GenerateParallel draws n records using workers goroutines. Worker w owns a
// contiguous slice of the output and a stream seeded with seed+w, so the
// result depends only on (rules, n, workers, seed).
func GenerateParallel(ctx context.Context, rules []ActivityRule, n, workers int, seed int64) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}
	if err := checkTable(rules); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	out := make([]Record, n)
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	errCh := make(chan error, workers)

	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, n)
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			gen := NewGenerator(WithSeed(seed + int64(w)))
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					errCh <- err
					return
				}
				rec, err := gen.generate(rules)
				if err != nil {
					errCh <- err
					return
				}
				out[i] = rec
			}
		}(w, lo, hi)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
