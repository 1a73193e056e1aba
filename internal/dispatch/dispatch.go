// Package dispatch fans one payload out to many recipients in fixed-size
// concurrent batches with an inter-batch pause.
//
// The pause is a coarse token-bucket approximation: it protects the channel
// provider's rate limit by spacing bursts rather than smoothing continuously
// (per-call smoothing lives in the channel client). The dispatcher is generic
// over the recipient type so bulk webhook replies can reuse it.
package dispatch

import (
	"context"
	"sync"
	"time"
)

// Result is one recipient's outcome. Err == nil means the send settled
// successfully; a non-nil Err never influenced sibling or later sends.
type Result[R any] struct {
	Recipient R
	Err       error
}

// Sleeper waits for d or until ctx is done. Injected so tests can count
// pauses instead of waiting them out.
type Sleeper func(ctx context.Context, d time.Duration) error

// Options control batching. Zero values fall back to sane defaults
// (batch 60, delay 1s) matching the channel provider's burst tolerance.
type Options struct {
	BatchSize int
	Delay     time.Duration
	Sleep     Sleeper
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 60
	}
	if o.Delay < 0 {
		o.Delay = 0
	}
	if o.Sleep == nil {
		o.Sleep = SleepContext
	}
	return o
}

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Dispatch sends to every recipient exactly once, batchSize at a time.
//
// Within a batch all sends run concurrently and are awaited before the next
// batch starts; completion order inside a batch is unspecified. Between
// batches (never after the last) the dispatcher pauses for opts.Delay. A
// failing send is recorded in its Result and nothing else; there are no
// retries here; retry policy belongs to the caller.
//
// Results are returned in recipient order. If ctx is canceled during an
// inter-batch pause, the remaining recipients are marked with ctx's error
// without being attempted.
func Dispatch[R any](ctx context.Context, recipients []R, opts Options, send func(context.Context, R) error) []Result[R] {
	opts = opts.withDefaults()

	results := make([]Result[R], len(recipients))
	for i, r := range recipients {
		results[i].Recipient = r
	}

	for start := 0; start < len(recipients); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(recipients) {
			end = len(recipients)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i].Err = send(ctx, recipients[i])
			}(i)
		}
		wg.Wait()

		if end < len(recipients) {
			if err := opts.Sleep(ctx, opts.Delay); err != nil {
				for i := end; i < len(recipients); i++ {
					results[i].Err = err
				}
				return results
			}
		}
	}
	return results
}

// Batches reports how many batches Dispatch will use for n recipients.
func Batches(n, batchSize int) int {
	if batchSize <= 0 {
		batchSize = 60
	}
	if n <= 0 {
		return 0
	}
	return (n + batchSize - 1) / batchSize
}
