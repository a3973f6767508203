package source_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "eoscraper/pkg/errors"
	"eoscraper/pkg/logger"
	"eoscraper/pkg/ratelimit"
	"eoscraper/pkg/source"
	"eoscraper/pkg/source/sourcetest"
)

// stalling blocks in RefreshCurrentPage until its context ends
type stalling struct {
	*sourcetest.Fake
	report error
}

func (s *stalling) RefreshCurrentPage(ctx context.Context) error {
	<-ctx.Done()
	if s.report != nil {
		return s.report
	}
	return ctx.Err()
}

func TestGuardNormalisesTimeouts(t *testing.T) {
	tests := []struct {
		name   string
		report error
	}{
		{"deadline exceeded", nil},
		{"adapter specific error", errors.New("element not ready")},
		{"adapter timeout", &source.Timeout{Op: "wait table", After: time.Millisecond}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &stalling{Fake: sourcetest.New(sourcetest.IDs("A")), report: tt.report}
			g := source.Guard(inner, 20*time.Millisecond, nil, logger.NewNopLogger())

			err := g.RefreshCurrentPage(context.Background())
			require.Error(t, err)

			var timeout *source.Timeout
			assert.True(t, errors.As(err, &timeout), "got %T: %v", err, err)
			assert.Equal(t, errs.ErrorTypeTransient, errs.Classify(err))
		})
	}
}

func TestGuardReportsCancellation(t *testing.T) {
	inner := &stalling{Fake: sourcetest.New(sourcetest.IDs("A"))}
	g := source.Guard(inner, time.Minute, nil, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := g.RefreshCurrentPage(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, errs.ErrorTypeCancelled, errs.Classify(err))
}

func TestGuardSourceContextEnded(t *testing.T) {
	fake := sourcetest.New(sourcetest.IDs("A"))
	fake.Fail = func(op string, page int) error {
		if op == "refresh" {
			return fmt.Errorf("chromedp: %w", context.Canceled)
		}
		return nil
	}
	g := source.Guard(fake, time.Second, nil, logger.NewNopLogger())

	// The caller's context is live: the browser went away underneath us
	err := g.RefreshCurrentPage(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, errs.ErrorTypeTransient, errs.Classify(err))
}

func TestGuardPassesThrough(t *testing.T) {
	ctx := context.Background()
	fake := sourcetest.New(sourcetest.IDs("A", "B"))
	g := source.Guard(fake, time.Second, ratelimit.PerMinute(0), logger.NewNopLogger())

	require.NoError(t, g.NavigateToListing(ctx, "importer"))
	assert.Equal(t, "importer", fake.Role)

	n, err := g.ReadRowCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	id, err := g.ReadRowIdentifier(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "B", string(id))

	require.NoError(t, g.OpenRowDetail(ctx, 1))
	rec, err := g.ExtractDetailFields(ctx)
	require.NoError(t, err)
	assert.Equal(t, fake.RecordFor("B"), rec)

	// Non-timeout failures are returned unchanged
	boom := errs.Extraction("extract", "no fields")
	fake.Fail = func(op string, page int) error {
		if op == "extract" {
			return boom
		}
		return nil
	}
	_, err = g.ExtractDetailFields(ctx)
	assert.Same(t, boom, err)

	require.NoError(t, g.Close())
	assert.Equal(t, 1, fake.Closed)
	assert.Same(t, fake, g.Inner())
}

func TestAwaitDetail(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadsAfterPolling", func(t *testing.T) {
		fake := sourcetest.New(sourcetest.IDs("A"))
		fake.LoadPolls = 3
		require.NoError(t, fake.OpenRowDetail(ctx, 0))

		require.NoError(t, source.AwaitDetail(ctx, fake, time.Second, time.Millisecond))
	})

	t.Run("TimesOut", func(t *testing.T) {
		fake := sourcetest.New(sourcetest.IDs("A"))
		err := source.AwaitDetail(ctx, fake, 20*time.Millisecond, 5*time.Millisecond)

		var timeout *source.Timeout
		require.True(t, errors.As(err, &timeout))
		assert.Equal(t, errs.ErrorTypeTransient, errs.Classify(err))
	})
}
