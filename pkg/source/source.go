// Package source defines the contract between the crawl engine and the
// site-specific adapter that drives the remote catalog.
//
// The engine never touches selectors, URLs or markup. It only calls the
// operations below, each bounded by the context it is given.
package source

import (
	"context"
	"fmt"
	"time"

	"eoscraper/pkg/models"
)

// RecordSource drives one paginated listing of records and their detail
// views. Row indices are 0-based positions on the current page and are
// re-resolved on every call.
type RecordSource interface {
	// NavigateToListing opens the listing for a role
	NavigateToListing(ctx context.Context, role string) error
	// DismissOnboardingPrompts closes cookie banners and similar prompts.
	// Calling it when nothing is shown is not an error.
	DismissOnboardingPrompts(ctx context.Context) error
	// SetPageSize selects how many rows each page shows
	SetPageSize(ctx context.Context, n int) error
	// JumpToLastPage moves the listing to its final page
	JumpToLastPage(ctx context.Context) error
	// RefreshCurrentPage waits until the current page is rendered
	RefreshCurrentPage(ctx context.Context) error
	// ReadRowCount returns the number of row elements on the page
	ReadRowCount(ctx context.Context) (int, error)
	// ReadRowIdentifier returns the record id shown in row i
	ReadRowIdentifier(ctx context.Context, i int) (models.RecordID, error)
	// OpenRowDetail opens the detail view of row i
	OpenRowDetail(ctx context.Context, i int) error
	// ReturnToListing leaves the detail view for the listing page it came from
	ReturnToListing(ctx context.Context) error
	// IsDetailViewLoaded reports whether the detail view is ready to read
	IsDetailViewLoaded(ctx context.Context) (bool, error)
	// ExtractDetailFields reads the open detail view
	ExtractDetailFields(ctx context.Context) (models.Record, error)
	// IsAdvanceControlDisabled reports whether this is the last page
	IsAdvanceControlDisabled(ctx context.Context) (bool, error)
	// AdvanceToNextPage moves to the next page
	AdvanceToNextPage(ctx context.Context) error
	// Close releases the underlying session
	Close() error
}

// Timeout reports an operation that did not complete within its wait
type Timeout struct {
	Op    string
	After time.Duration
	Err   error
}

func (t *Timeout) Error() string {
	if t.Err != nil {
		return fmt.Sprintf("%s timed out after %s: %v", t.Op, t.After, t.Err)
	}
	return fmt.Sprintf("%s timed out after %s", t.Op, t.After)
}

func (t *Timeout) Unwrap() error { return t.Err }

// Timeout marks the error as transient
func (t *Timeout) Timeout() bool { return true }

// AwaitDetail polls IsDetailViewLoaded every interval until it reports true.
// It gives up with a *Timeout after wait.
func AwaitDetail(ctx context.Context, src RecordSource, wait, interval time.Duration) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	deadline := time.Now().Add(wait)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		loaded, err := src.IsDetailViewLoaded(ctx)
		if err != nil {
			return err
		}
		if loaded {
			return nil
		}
		if !time.Now().Before(deadline) {
			return &Timeout{Op: "await detail view", After: wait}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
