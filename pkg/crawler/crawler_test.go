package crawler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eoscraper/pkg/checkpoint"
	errs "eoscraper/pkg/errors"
	"eoscraper/pkg/logger"
	"eoscraper/pkg/models"
	"eoscraper/pkg/progress"
	"eoscraper/pkg/source"
	"eoscraper/pkg/source/sourcetest"
	"eoscraper/pkg/storage"
)

func testOptions() Options {
	return Options{
		Role:          "manufacturer",
		RowsPerPage:   50,
		TotalExpected: 10,
		DetailWait:    time.Second,
		PollInterval:  time.Millisecond,
	}
}

func openStore(t *testing.T, path string) *checkpoint.Store {
	t.Helper()
	backend, err := storage.NewJSONFile(path)
	require.NoError(t, err)
	return checkpoint.NewStore(backend, logger.NewNopLogger())
}

func seed(t *testing.T, path string, ids ...string) {
	t.Helper()
	backend, err := storage.NewJSONFile(path)
	require.NoError(t, err)
	snap := models.Snapshot{}
	for _, id := range ids {
		snap[models.RecordID(id)] = models.Record{{Name: "seeded", Value: id}}
	}
	require.NoError(t, backend.Save(context.Background(), snap))
}

func persisted(t *testing.T, path string) models.Snapshot {
	t.Helper()
	backend, err := storage.NewJSONFile(path)
	require.NoError(t, err)
	snap, err := backend.Load(context.Background())
	require.NoError(t, err)
	return snap
}

func TestCursor(t *testing.T) {
	c := NewCursor()
	assert.Equal(t, 1, c.Page)
	assert.Equal(t, "at_page", c.State())

	c.SetRowCount(51)
	assert.Equal(t, 50, c.RecordRows())
	c.SetRowCount(1)
	assert.Equal(t, 0, c.RecordRows())
	c.SetRowCount(0)
	assert.Equal(t, 0, c.RecordRows())

	c.Advance(false)
	assert.Equal(t, 2, c.Page)
	c.Advance(true)
	assert.True(t, c.Exhausted())
	assert.Equal(t, "exhausted", c.State())
	c.Advance(false)
	assert.Equal(t, 2, c.Page, "an exhausted cursor never moves")
}

func TestSessionSkipsHarvestedRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.json")
	seed(t, path, "A", "B")

	fake := sourcetest.New(sourcetest.IDs("A", "B", "C"))
	sum, err := NewSession(fake, openStore(t, path), testOptions(), logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, sourcetest.IDs("C"), fake.Opened)
	assert.Equal(t, 1, sum.Fetched)
	assert.Equal(t, 2, sum.Skipped)
	assert.True(t, sum.Completed)

	snap := persisted(t, path)
	assert.Len(t, snap, 3)
	assert.Equal(t, "A", snap["A"][0].Value, "seeded payload untouched")
	assert.Equal(t, fake.RecordFor("C"), snap["C"])
}

func TestSessionResumesAfterCrash(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cp.json")
	pages := [][]models.RecordID{sourcetest.IDs("A", "B"), sourcetest.IDs("C", "D")}

	crashing := sourcetest.New(pages...)
	crashing.Fail = func(op string, page int) error {
		if page == 2 && op == "row id" {
			return errors.New("browser crashed")
		}
		return nil
	}
	_, err := NewSession(crashing, openStore(t, path), testOptions(), logger.NewNopLogger()).Run(ctx)
	require.Error(t, err)
	assert.Len(t, persisted(t, path), 2, "page one was flushed before the crash")

	fresh := sourcetest.New(pages...)
	sum, err := NewSession(fresh, openStore(t, path), testOptions(), logger.NewNopLogger()).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, sourcetest.IDs("C", "D"), fresh.Opened)
	assert.Equal(t, 2, sum.Skipped)
	assert.Len(t, persisted(t, path), 4)
}

func TestSessionStopsAtDisabledAdvance(t *testing.T) {
	fake := sourcetest.New(sourcetest.IDs("A"), sourcetest.IDs("B"), sourcetest.IDs("C"))
	sum, err := NewSession(fake, openStore(t, filepath.Join(t.TempDir(), "cp.json")), testOptions(), logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, fake.Visited)
	assert.Equal(t, 3, sum.Pages)

	advances := 0
	for _, op := range fake.Operations {
		if op == "advance" {
			advances++
		}
	}
	assert.Equal(t, 2, advances, "never advances past the last page")
}

func TestSessionExcludesTrailingRow(t *testing.T) {
	fake := sourcetest.New(sourcetest.IDs("A", "B"))
	path := filepath.Join(t.TempDir(), "cp.json")
	_, err := NewSession(fake, openStore(t, path), testOptions(), logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)

	snap := persisted(t, path)
	assert.NotContains(t, snap, sourcetest.SentinelID)
	assert.Len(t, snap, 2)
}

func TestSessionPreparation(t *testing.T) {
	opts := testOptions()
	opts.Role = "importer"
	opts.RowsPerPage = 25
	opts.StartFromLastPage = true

	fake := sourcetest.New(sourcetest.IDs("A"), sourcetest.IDs("B"), sourcetest.IDs("C"))
	_, err := NewSession(fake, openStore(t, filepath.Join(t.TempDir(), "cp.json")), opts, logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "importer", fake.Role)
	assert.Equal(t, 25, fake.PageSize)
	assert.Equal(t, 1, fake.Dismissed)
	assert.Equal(t, []int{3}, fake.Visited, "starting from the last page visits only it")
	assert.Equal(t, []string{"navigate", "dismiss", "page size", "last page", "refresh"}, fake.Operations[:5])
}

func TestSessionRejectsZeroRowsPerPage(t *testing.T) {
	opts := testOptions()
	opts.RowsPerPage = 0

	fake := sourcetest.New(sourcetest.IDs("A"))
	_, err := NewSession(fake, openStore(t, filepath.Join(t.TempDir(), "cp.json")), opts, logger.NewNopLogger()).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeConfiguration, errs.Classify(err))
	assert.Empty(t, fake.Operations)
}

func TestSessionDetailTimeoutKeepsEarlierRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.json")
	fake := sourcetest.New(sourcetest.IDs("A", "B"))
	fake.Fail = func(op string, page int) error {
		if op == "open detail" && len(fake.Opened) == 1 {
			// second detail never finishes loading
			fake.LoadPolls = 1 << 30
		}
		return nil
	}

	opts := testOptions()
	opts.DetailWait = 20 * time.Millisecond
	_, err := NewSession(fake, openStore(t, path), opts, logger.NewNopLogger()).Run(context.Background())
	require.Error(t, err)

	var timeout *source.Timeout
	assert.True(t, errors.As(err, &timeout))
	assert.Equal(t, errs.ErrorTypeTransient, errs.Classify(err))

	snap := persisted(t, path)
	assert.Contains(t, snap, models.RecordID("A"), "partial page was saved")
	assert.NotContains(t, snap, models.RecordID("B"))
}

func TestSessionCancelledBetweenRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "cp.json")
	fake := sourcetest.New(sourcetest.IDs("A", "B", "C"))
	fake.Fail = func(op string, page int) error {
		if op == "return" {
			cancel()
		}
		return nil
	}

	_, err := NewSession(fake, openStore(t, path), testOptions(), logger.NewNopLogger()).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, errs.ErrorTypeCancelled, errs.Classify(err))
	assert.Equal(t, sourcetest.IDs("A"), fake.Opened)
	assert.Contains(t, persisted(t, path), models.RecordID("A"))
}

func TestSessionCancelledOnLastRowKeepsPage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "cp.json")
	fake := sourcetest.New(sourcetest.IDs("A", "B"), sourcetest.IDs("C"))
	fake.Fail = func(op string, page int) error {
		if op == "return" && len(fake.Opened) == 2 {
			cancel()
		}
		return nil
	}

	_, err := NewSession(fake, openStore(t, path), testOptions(), logger.NewNopLogger()).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, sourcetest.IDs("A", "B"), fake.Opened)

	snap := persisted(t, path)
	assert.Len(t, snap, 2, "both records of the interrupted page were saved")
	assert.Contains(t, snap, models.RecordID("B"))
}

func TestSessionEmptyExtractionFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.json")
	fake := sourcetest.New(sourcetest.IDs("A", "B", "C"))
	fake.Details = map[models.RecordID]models.Record{"B": nil}

	sum, err := NewSession(fake, openStore(t, path), testOptions(), logger.NewNopLogger()).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeExtraction, errs.Classify(err))
	assert.Contains(t, err.Error(), "B")
	assert.False(t, sum.Completed)
	assert.Equal(t, 0, sum.Skipped)
	assert.Equal(t, sourcetest.IDs("A", "B"), fake.Opened)

	snap := persisted(t, path)
	assert.Contains(t, snap, models.RecordID("A"))
	assert.NotContains(t, snap, models.RecordID("B"), "an empty record is never stored")
}

func TestSessionSummary(t *testing.T) {
	opts := testOptions()
	opts.TotalExpected = 3

	fake := sourcetest.New(sourcetest.IDs("A", "B"), sourcetest.IDs("C", "D"))
	sum, err := NewSession(fake, openStore(t, filepath.Join(t.TempDir(), "cp.json")), opts, logger.NewNopLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Harvested)
	assert.Equal(t, -1, sum.Remaining, "remaining may go negative")
	assert.Equal(t, progress.ETA{}, sum.ETA)
	assert.Greater(t, sum.Elapsed, time.Duration(0))
}
