// Package progress estimates how long the remainder of a crawl will take
// and tracks elapsed session time.
package progress

import (
	"fmt"
	"time"

	errs "eoscraper/pkg/errors"
)

// ETA is a completion estimate decomposed into whole units
type ETA struct {
	Days    int
	Hours   int
	Minutes int
	Seconds int
}

// String renders the estimate as "1d 2h 3m 4s"
func (e ETA) String() string {
	return fmt.Sprintf("%dd %dh %dm %ds", e.Days, e.Hours, e.Minutes, e.Seconds)
}

// Duration converts the estimate back into a time.Duration
func (e ETA) Duration() time.Duration {
	return time.Duration(e.Days)*24*time.Hour +
		time.Duration(e.Hours)*time.Hour +
		time.Duration(e.Minutes)*time.Minute +
		time.Duration(e.Seconds)*time.Second
}

// Estimate projects the time left to harvest remaining records at
// rowsPerPage records per page, each page taking secondsPerPage. A zero or
// negative rowsPerPage is a configuration error. Non-positive remaining
// yields a zero ETA.
func Estimate(remaining, rowsPerPage int, secondsPerPage float64) (ETA, error) {
	if rowsPerPage <= 0 {
		return ETA{}, errs.Configuration("estimate", "rows per page must be positive, got %d", rowsPerPage)
	}
	if remaining <= 0 || secondsPerPage <= 0 {
		return ETA{}, nil
	}

	pages := float64(remaining) / float64(rowsPerPage)
	total := int64(pages * secondsPerPage)

	return ETA{
		Days:    int(total / 86400),
		Hours:   int((total % 86400) / 3600),
		Minutes: int((total % 3600) / 60),
		Seconds: int(total % 60),
	}, nil
}

// FormatElapsed renders d as HH:MM:SS. Hours keep counting past a day.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

// Tracker keeps session timing for progress reports
type Tracker struct {
	StartTime     time.Time
	PageLoadTime  time.Duration
	pageStarted   time.Time
	lastPage      time.Duration
	PagesFinished int
	now           func() time.Time
}

// NewTracker starts tracking now. pageLoad is added to every observed page
// duration when estimating.
func NewTracker(pageLoad time.Duration) *Tracker {
	return newTrackerWithClock(pageLoad, time.Now)
}

func newTrackerWithClock(pageLoad time.Duration, now func() time.Time) *Tracker {
	start := now()
	return &Tracker{
		StartTime:    start,
		PageLoadTime: pageLoad,
		pageStarted:  start,
		now:          now,
	}
}

// StartPage marks the beginning of a page
func (t *Tracker) StartPage() {
	t.pageStarted = t.now()
}

// FinishPage records the duration of the current page and returns it
func (t *Tracker) FinishPage() time.Duration {
	t.lastPage = t.now().Sub(t.pageStarted)
	t.PagesFinished++
	return t.lastPage
}

// SecondsPerPage is the last observed page duration plus the page load
// allowance
func (t *Tracker) SecondsPerPage() float64 {
	return (t.lastPage + t.PageLoadTime).Seconds()
}

// Elapsed returns the time since tracking started
func (t *Tracker) Elapsed() time.Duration {
	return t.now().Sub(t.StartTime)
}

// ElapsedString returns Elapsed formatted as HH:MM:SS
func (t *Tracker) ElapsedString() string {
	return FormatElapsed(t.Elapsed())
}

// Report is one progress snapshot
type Report struct {
	Harvested int
	Remaining int
	Elapsed   string
	ETA       ETA
}

// Report computes the progress snapshot for harvested records out of
// totalExpected.
func (t *Tracker) Report(harvested, totalExpected, rowsPerPage int) (Report, error) {
	remaining := totalExpected - harvested
	eta, err := Estimate(remaining, rowsPerPage, t.SecondsPerPage())
	if err != nil {
		return Report{}, err
	}
	return Report{
		Harvested: harvested,
		Remaining: remaining,
		Elapsed:   t.ElapsedString(),
		ETA:       eta,
	}, nil
}
