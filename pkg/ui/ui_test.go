package ui

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetColor(false)
	SetQuietMode(false)
	t.Cleanup(func() { SetQuietMode(false) })
	return &buf
}

func TestBar(t *testing.T) {
	tests := []struct {
		name        string
		done, total int
		want        string
	}{
		{"empty", 0, 10, "[░░░░░░░░░░] 0/10 (0.0%)"},
		{"half", 5, 10, "[█████░░░░░] 5/10 (50.0%)"},
		{"overshoot", 12, 10, "[██████████] 12/10 (100.0%)"},
		{"no total", 3, 0, "[░░░░░░░░░░] 3/0 (0.0%)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Bar(tt.done, tt.total, 10))
		})
	}
}

func TestPrintHelpers(t *testing.T) {
	buf := capture(t)

	PrintInfo("Role", "importer")
	PrintError("Crawl failed", "timeout")
	assert.Equal(t, "Role: importer\nCrawl failed: timeout\n", buf.String())

	buf.Reset()
	SetQuietMode(true)
	PrintInfo("Role", "importer")
	PrintSuccess("done")
	PrintError("still shown")
	assert.Equal(t, "still shown\n", buf.String())
}

func TestPrintHarvestSummary(t *testing.T) {
	buf := capture(t)

	PrintHarvestSummary(HarvestSummary{
		Role:       "manufacturer",
		Status:     "success",
		Attempts:   2,
		Pages:      3,
		Fetched:    120,
		Skipped:    30,
		Harvested:  150,
		Expected:   300,
		Elapsed:    "00:05:00",
		Checkpoint: "eudamed_manufacturer.json",
	})

	out := buf.String()
	assert.Contains(t, out, "[HARVEST SUCCESS]")
	assert.Contains(t, out, "150/300 (50.0%)")
	assert.Contains(t, out, "120 fetched, 30 skipped over 3 pages in 2 attempt(s)")
	assert.NotContains(t, out, "ETA")
}

type recordingSender struct {
	titles []string
	err    error
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func TestNotifier(t *testing.T) {
	buf := capture(t)
	sender := &recordingSender{err: errors.New("no display")}
	n := NewNotifierWithSender(sender)

	n.SendSuccess("Harvest complete", "150 records")
	n.SendError("Harvest failed", "retries exhausted")

	require.Equal(t, []string{"Harvest complete", "Harvest failed"}, sender.titles)
	assert.Contains(t, buf.String(), "Harvest complete: 150 records")
	assert.Contains(t, buf.String(), "Harvest failed: retries exhausted")

	// Disabled notifiers only print
	assert.NotPanics(t, func() { NewNotifier(false).SendSuccess("a", "b") })
}
