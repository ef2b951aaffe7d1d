package bot

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// RunBatch answers each question concurrently, bounded by MaxConcurrent.
//
// Results come back in input order regardless of completion order, and
// each question fails independently: one failed question surfaces in its
// own BatchResult while the rest of the batch completes normally. Only a
// broken semaphore acquire (context cancellation) fails a question before
// its pipeline starts, and that too lands in the per-question result.
func (b *Bot) RunBatch(ctx context.Context, questions []string) []BatchResult {
	results := make([]BatchResult, len(questions))
	sem := semaphore.NewWeighted(int64(b.config.MaxConcurrent))
	var wg sync.WaitGroup

	for i, question := range questions {
		results[i].Question = question

		if err := sem.Acquire(ctx, 1); err != nil {
			results[i].Err = err
			continue
		}

		wg.Add(1)
		go func(i int, question string) {
			defer wg.Done()
			defer sem.Release(1)

			response, err := b.Run(ctx, question)
			results[i].Response = response
			results[i].Err = err
			if err != nil {
				b.logger.Warn(ctx, "batch question failed",
					zap.Int("index", i),
					zap.Error(err),
				)
			}
		}(i, question)
	}

	wg.Wait()
	return results
}
