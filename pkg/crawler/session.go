package crawler

import (
	"context"
	"time"

	"eoscraper/pkg/checkpoint"
	errs "eoscraper/pkg/errors"
	"eoscraper/pkg/logger"
	"eoscraper/pkg/memguard"
	"eoscraper/pkg/models"
	"eoscraper/pkg/progress"
	"eoscraper/pkg/source"
)

// Options configures one crawl session
type Options struct {
	Role              string
	RowsPerPage       int
	TotalExpected     int
	PageLoadTime      time.Duration
	StartFromLastPage bool
	DetailWait        time.Duration
	PollInterval      time.Duration
	MemoryLimitMB     int
}

// Summary describes what a session did. It is returned on failure too,
// covering the work done before the error.
type Summary struct {
	Pages     int
	Fetched   int
	Skipped   int
	Harvested int
	Remaining int
	Elapsed   time.Duration
	ETA       progress.ETA
	Completed bool
}

// Session is a single pass over the listing from page one to exhaustion
type Session struct {
	src    source.RecordSource
	store  *checkpoint.Store
	opts   Options
	guard  *memguard.Guard
	logger logger.Logger
}

// NewSession creates a session reading from src and persisting into store
func NewSession(src source.RecordSource, store *checkpoint.Store, opts Options, log logger.Logger) *Session {
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithFields(map[string]interface{}{
		"component": "crawler",
		"role":      opts.Role,
	})

	var reporters []memguard.Reporter
	if r, ok := src.(memguard.Reporter); ok {
		reporters = append(reporters, r)
	}

	return &Session{
		src:    src,
		store:  store,
		opts:   opts,
		guard:  memguard.New(opts.MemoryLimitMB, log, reporters...),
		logger: log,
	}
}

// Run loads the checkpoint, prepares the listing and harvests every page.
// Errors are returned unchanged for the supervisor to classify.
func (s *Session) Run(ctx context.Context) (sum Summary, err error) {
	if s.opts.RowsPerPage <= 0 {
		return sum, errs.Configuration("crawl", "rows per page must be positive, got %d", s.opts.RowsPerPage)
	}

	tracker := progress.NewTracker(s.opts.PageLoadTime)
	defer func() { sum.Elapsed = tracker.Elapsed() }()

	if _, err := s.store.Load(ctx); err != nil {
		return sum, err
	}
	sum.Harvested = s.store.Len()
	sum.Remaining = s.opts.TotalExpected - sum.Harvested

	if err := s.prepare(ctx); err != nil {
		return sum, err
	}

	cursor := NewCursor()
	for !cursor.Exhausted() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		tracker.StartPage()
		if err := s.harvestPage(ctx, cursor, tracker, &sum); err != nil {
			return sum, err
		}
		sum.Pages++

		if err := s.guard.Check(ctx); err != nil {
			return sum, err
		}

		disabled, err := s.src.IsAdvanceControlDisabled(ctx)
		if err != nil {
			return sum, err
		}
		cursor.Advance(disabled)
		if cursor.Exhausted() {
			break
		}
		if err := s.src.AdvanceToNextPage(ctx); err != nil {
			return sum, err
		}
	}

	sum.Completed = true
	s.logger.InfoWithFields("Crawl completed", map[string]interface{}{
		"pages":      sum.Pages,
		"fetched":    sum.Fetched,
		"skipped":    sum.Skipped,
		"harvested":  sum.Harvested,
		"checkpoint": s.store.Location(),
	})
	return sum, nil
}

func (s *Session) prepare(ctx context.Context) error {
	if err := s.src.NavigateToListing(ctx, s.opts.Role); err != nil {
		return err
	}
	if err := s.src.DismissOnboardingPrompts(ctx); err != nil {
		return err
	}
	if err := s.src.SetPageSize(ctx, s.opts.RowsPerPage); err != nil {
		return err
	}
	if s.opts.StartFromLastPage {
		if err := s.src.JumpToLastPage(ctx); err != nil {
			return err
		}
	}
	return nil
}

// harvestPage fetches every record on the current page that the checkpoint
// does not hold yet and flushes them as one batch. Records fetched before a
// mid-page failure are flushed too.
func (s *Session) harvestPage(ctx context.Context, cursor *Cursor, tracker *progress.Tracker, sum *Summary) error {
	if err := s.src.RefreshCurrentPage(ctx); err != nil {
		return err
	}
	rows, err := s.src.ReadRowCount(ctx)
	if err != nil {
		return err
	}
	cursor.SetRowCount(rows)

	log := s.logger.WithField("page", cursor.Page)
	batch := models.Snapshot{}

	for ; cursor.Row < cursor.RecordRows(); cursor.Row++ {
		if err := ctx.Err(); err != nil {
			return s.salvage(ctx, batch, err)
		}

		rec, id, skipped, err := s.harvestRow(ctx, cursor.Row, batch)
		if err != nil {
			return s.salvage(ctx, batch, err)
		}
		if skipped {
			log.WithField("record_id", string(id)).Debug("Record already harvested")
			sum.Skipped++
			continue
		}
		batch[id] = rec
		sum.Fetched++
	}

	// Stopped during the last row: keep what the page produced
	if err := ctx.Err(); err != nil {
		return s.salvage(ctx, batch, err)
	}

	if len(batch) > 0 {
		if err := s.commit(ctx, batch); err != nil {
			return err
		}
		tracker.FinishPage()
		log.InfoWithFields("Saved page", map[string]interface{}{"records": len(batch)})
	}

	sum.Harvested = s.store.Len()
	sum.Remaining = s.opts.TotalExpected - sum.Harvested

	report, err := tracker.Report(sum.Harvested, s.opts.TotalExpected, s.opts.RowsPerPage)
	if err != nil {
		return err
	}
	sum.ETA = report.ETA
	logger.LogPageProgress(log, s.opts.Role, report.Harvested, report.Remaining, report.ETA.Duration(), report.Elapsed)
	return nil
}

// harvestRow fetches row i. skipped reports a row whose record is already
// stored or already in this page's batch.
func (s *Session) harvestRow(ctx context.Context, i int, batch models.Snapshot) (rec models.Record, id models.RecordID, skipped bool, err error) {
	id, err = s.src.ReadRowIdentifier(ctx, i)
	if err != nil {
		return nil, "", false, err
	}
	if _, pending := batch[id]; pending || s.store.Contains(id) {
		return nil, id, true, nil
	}

	log := s.logger.WithField("record_id", string(id))
	if err := s.src.OpenRowDetail(ctx, i); err != nil {
		return nil, id, false, err
	}
	if err := source.AwaitDetail(ctx, s.src, s.opts.DetailWait, s.opts.PollInterval); err != nil {
		return nil, id, false, err
	}
	log.Debug("Working on record")

	rec, err = s.src.ExtractDetailFields(ctx)
	if err != nil {
		return nil, id, false, err
	}
	if len(rec) == 0 {
		return nil, id, false, errs.Extraction("extract detail", "record %s has no fields", id)
	}
	if err := s.src.ReturnToListing(ctx); err != nil {
		return nil, id, false, err
	}

	log.InfoWithFields("Completed record", map[string]interface{}{"fields": len(rec)})
	return rec, id, false, nil
}

func (s *Session) commit(ctx context.Context, batch models.Snapshot) error {
	s.store.Merge(batch)
	return s.store.Flush(ctx)
}

// salvage persists a partial batch before returning cause. The flush runs
// even when ctx is cancelled.
func (s *Session) salvage(ctx context.Context, batch models.Snapshot, cause error) error {
	if len(batch) == 0 {
		return cause
	}
	if err := s.commit(context.WithoutCancel(ctx), batch); err != nil {
		s.logger.WithError(err).Error("Failed to save partial page")
		return cause
	}
	s.logger.InfoWithFields("Saved partial page", map[string]interface{}{"records": len(batch)})
	return cause
}
