// Package sourcetest provides an in-memory RecordSource for tests.
package sourcetest

import (
	"context"
	"fmt"
	"sync"

	"eoscraper/pkg/models"
	"eoscraper/pkg/source"
)

// SentinelID is what the trailing non-record row of every page reads as
const SentinelID models.RecordID = "sentinel"

// Fake serves a fixed catalog. Each page renders its ids followed by one
// sentinel row, mirroring listings whose final row is not a record.
type Fake struct {
	mu sync.Mutex

	// Pages holds the record ids of each page, in order
	Pages [][]models.RecordID
	// Details overrides the payload returned for an id
	Details map[models.RecordID]models.Record
	// Fail, when set, is consulted before every operation. A non-nil
	// return is reported as that operation's error.
	Fail func(op string, page int) error
	// LoadPolls is how many IsDetailViewLoaded calls report false before
	// the detail view is ready
	LoadPolls int

	page       int
	detail     models.RecordID
	polls      int
	Role       string
	PageSize   int
	Dismissed  int
	Visited    []int
	Opened     []models.RecordID
	Closed     int
	Operations []string
}

var _ source.RecordSource = (*Fake)(nil)

// New creates a fake over pages
func New(pages ...[]models.RecordID) *Fake {
	return &Fake{Pages: pages}
}

// IDs is a convenience for building pages
func IDs(ids ...string) []models.RecordID {
	out := make([]models.RecordID, len(ids))
	for i, id := range ids {
		out[i] = models.RecordID(id)
	}
	return out
}

// RecordFor returns the payload the fake extracts for id
func (f *Fake) RecordFor(id models.RecordID) models.Record {
	if rec, ok := f.Details[id]; ok {
		return rec.Clone()
	}
	return models.Record{
		{Name: "Actor ID/SRN", Value: string(id)},
		{Name: "Actor URL", Value: "https://example.test/#/screen/eo/" + string(id)},
	}
}

func (f *Fake) enter(op string) error {
	f.Operations = append(f.Operations, op)
	if f.Fail != nil {
		return f.Fail(op, f.page+1)
	}
	return nil
}

func (f *Fake) NavigateToListing(ctx context.Context, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("navigate"); err != nil {
		return err
	}
	f.Role = role
	f.page = 0
	return nil
}

func (f *Fake) DismissOnboardingPrompts(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("dismiss"); err != nil {
		return err
	}
	f.Dismissed++
	return nil
}

func (f *Fake) SetPageSize(ctx context.Context, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("page size"); err != nil {
		return err
	}
	f.PageSize = n
	return nil
}

func (f *Fake) JumpToLastPage(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("last page"); err != nil {
		return err
	}
	if len(f.Pages) > 0 {
		f.page = len(f.Pages) - 1
	}
	return nil
}

func (f *Fake) RefreshCurrentPage(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("refresh"); err != nil {
		return err
	}
	f.Visited = append(f.Visited, f.page+1)
	return nil
}

func (f *Fake) ReadRowCount(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("row count"); err != nil {
		return 0, err
	}
	if len(f.Pages) == 0 {
		return 0, nil
	}
	return len(f.Pages[f.page]) + 1, nil
}

func (f *Fake) ReadRowIdentifier(ctx context.Context, i int) (models.RecordID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("row id"); err != nil {
		return "", err
	}
	rows := f.Pages[f.page]
	switch {
	case i < len(rows):
		return rows[i], nil
	case i == len(rows):
		return SentinelID, nil
	default:
		return "", fmt.Errorf("row %d out of range", i)
	}
}

func (f *Fake) OpenRowDetail(ctx context.Context, i int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("open detail"); err != nil {
		return err
	}
	rows := f.Pages[f.page]
	if i >= len(rows) {
		return fmt.Errorf("row %d has no detail", i)
	}
	f.detail = rows[i]
	f.polls = 0
	f.Opened = append(f.Opened, rows[i])
	return nil
}

func (f *Fake) ReturnToListing(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("return"); err != nil {
		return err
	}
	f.detail = ""
	return nil
}

func (f *Fake) IsDetailViewLoaded(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("detail loaded"); err != nil {
		return false, err
	}
	if f.detail == "" {
		return false, nil
	}
	f.polls++
	return f.polls > f.LoadPolls, nil
}

func (f *Fake) ExtractDetailFields(ctx context.Context) (models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("extract"); err != nil {
		return nil, err
	}
	if f.detail == "" {
		return nil, fmt.Errorf("no detail view open")
	}
	return f.RecordFor(f.detail), nil
}

func (f *Fake) IsAdvanceControlDisabled(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("advance disabled"); err != nil {
		return false, err
	}
	return f.page >= len(f.Pages)-1, nil
}

func (f *Fake) AdvanceToNextPage(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("advance"); err != nil {
		return err
	}
	if f.page >= len(f.Pages)-1 {
		return fmt.Errorf("already on the last page")
	}
	f.page++
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed++
	return nil
}
