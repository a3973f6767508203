package source

import (
	"context"
	"errors"
	"time"

	errs "eoscraper/pkg/errors"
	"eoscraper/pkg/logger"
	"eoscraper/pkg/models"
	"eoscraper/pkg/ratelimit"
)

// Guarded wraps a RecordSource so that every call is bounded by a per-call
// timeout and detail views are paced by a limiter. Expired waits come back
// as *Timeout whatever form the inner source reported them in, while
// cancellation of the caller's context comes back as the context error.
type Guarded struct {
	inner   RecordSource
	timeout time.Duration
	limiter ratelimit.Limiter
	logger  logger.Logger
}

// Guard wraps src. A nil limiter disables pacing.
func Guard(src RecordSource, timeout time.Duration, limiter ratelimit.Limiter, log logger.Logger) *Guarded {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Guarded{
		inner:   src,
		timeout: timeout,
		limiter: limiter,
		logger:  log.WithField("component", "source"),
	}
}

// Inner returns the wrapped source
func (g *Guarded) Inner() RecordSource {
	return g.inner
}

func (g *Guarded) call(ctx context.Context, op string, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	err := fn(callCtx)
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	var t *Timeout
	switch {
	case errors.Is(err, context.Canceled):
		// The caller is still live, so the source's own context ended
		// (browser or tab gone). That is a failure, not a user stop.
		err = errs.Wrap(errs.ErrorTypeTransient, op, err)
	case errors.As(err, &t):
	case errors.Is(err, context.DeadlineExceeded), callCtx.Err() == context.DeadlineExceeded:
		err = &Timeout{Op: op, After: g.timeout, Err: err}
	}

	g.logger.WithError(err).DebugWithFields("Source call failed", map[string]interface{}{
		"op":       op,
		"duration": time.Since(start),
	})
	return err
}

func (g *Guarded) NavigateToListing(ctx context.Context, role string) error {
	return g.call(ctx, "navigate to listing", func(ctx context.Context) error {
		return g.inner.NavigateToListing(ctx, role)
	})
}

func (g *Guarded) DismissOnboardingPrompts(ctx context.Context) error {
	return g.call(ctx, "dismiss onboarding prompts", g.inner.DismissOnboardingPrompts)
}

func (g *Guarded) SetPageSize(ctx context.Context, n int) error {
	return g.call(ctx, "set page size", func(ctx context.Context) error {
		return g.inner.SetPageSize(ctx, n)
	})
}

func (g *Guarded) JumpToLastPage(ctx context.Context) error {
	return g.call(ctx, "jump to last page", g.inner.JumpToLastPage)
}

func (g *Guarded) RefreshCurrentPage(ctx context.Context) error {
	return g.call(ctx, "refresh current page", g.inner.RefreshCurrentPage)
}

func (g *Guarded) ReadRowCount(ctx context.Context) (int, error) {
	var n int
	err := g.call(ctx, "read row count", func(ctx context.Context) (err error) {
		n, err = g.inner.ReadRowCount(ctx)
		return err
	})
	return n, err
}

func (g *Guarded) ReadRowIdentifier(ctx context.Context, i int) (models.RecordID, error) {
	var id models.RecordID
	err := g.call(ctx, "read row identifier", func(ctx context.Context) (err error) {
		id, err = g.inner.ReadRowIdentifier(ctx, i)
		return err
	})
	return id, err
}

// OpenRowDetail waits on the limiter before opening the detail view. The
// limiter wait is not part of the per-call timeout.
func (g *Guarded) OpenRowDetail(ctx context.Context, i int) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	return g.call(ctx, "open row detail", func(ctx context.Context) error {
		return g.inner.OpenRowDetail(ctx, i)
	})
}

func (g *Guarded) ReturnToListing(ctx context.Context) error {
	return g.call(ctx, "return to listing", g.inner.ReturnToListing)
}

func (g *Guarded) IsDetailViewLoaded(ctx context.Context) (bool, error) {
	var loaded bool
	err := g.call(ctx, "check detail view", func(ctx context.Context) (err error) {
		loaded, err = g.inner.IsDetailViewLoaded(ctx)
		return err
	})
	return loaded, err
}

func (g *Guarded) ExtractDetailFields(ctx context.Context) (models.Record, error) {
	var rec models.Record
	err := g.call(ctx, "extract detail fields", func(ctx context.Context) (err error) {
		rec, err = g.inner.ExtractDetailFields(ctx)
		return err
	})
	return rec, err
}

func (g *Guarded) IsAdvanceControlDisabled(ctx context.Context) (bool, error) {
	var disabled bool
	err := g.call(ctx, "check advance control", func(ctx context.Context) (err error) {
		disabled, err = g.inner.IsAdvanceControlDisabled(ctx)
		return err
	})
	return disabled, err
}

func (g *Guarded) AdvanceToNextPage(ctx context.Context) error {
	return g.call(ctx, "advance to next page", g.inner.AdvanceToNextPage)
}

// Close is never bounded; releasing the session must always run to the end
func (g *Guarded) Close() error {
	return g.inner.Close()
}

// MemoryUsage forwards to the inner source when it can report memory
func (g *Guarded) MemoryUsage(ctx context.Context) (int64, error) {
	r, ok := g.inner.(interface {
		MemoryUsage(context.Context) (int64, error)
	})
	if !ok {
		return 0, nil
	}
	var n int64
	err := g.call(ctx, "memory usage", func(ctx context.Context) (err error) {
		n, err = r.MemoryUsage(ctx)
		return err
	})
	return n, err
}
