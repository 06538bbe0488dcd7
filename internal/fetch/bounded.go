package fetch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/driftgate/driftgate/internal/models"
	"golang.org/x/sync/semaphore"
)

// Bounded wraps a ContentFetcher with a concurrency semaphore and a
// per-fetch deadline. The semaphore is the sole backpressure knob of the
// pipeline. Cancellation and deadline expiry are reported as absent content
// (nil, nil) after a warning, matching the pipeline's failure semantics:
// missing content is a domain signal, not an error.
type Bounded struct {
	inner   models.ContentFetcher
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *slog.Logger
}

// NewBounded creates a bounded fetcher with the given fan-out and per-fetch
// timeout. A fanout below 1 is treated as 1.
func NewBounded(inner models.ContentFetcher, fanout int, timeout time.Duration, logger *slog.Logger) *Bounded {
	if fanout < 1 {
		fanout = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bounded{
		inner:   inner,
		sem:     semaphore.NewWeighted(int64(fanout)),
		timeout: timeout,
		logger:  logger.With("component", "fetch"),
	}
}

// Fetch acquires a semaphore slot, then delegates with a deadline.
func (b *Bounded) Fetch(ctx context.Context, path, ref string) ([]byte, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		b.logger.Warn("fetch canceled while waiting for slot", "path", path, "ref", ref)
		return nil, nil
	}
	defer b.sem.Release(1)

	fetchCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	content, err := b.inner.Fetch(fetchCtx, path, ref)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			b.logger.Warn("fetch canceled or timed out, treating content as absent",
				"path", path, "ref", ref, "error", err)
			return nil, nil
		}
		return nil, err
	}
	return content, nil
}
