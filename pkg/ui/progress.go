package ui

import (
	"fmt"
	"strings"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// Bar renders done/total as a fixed width bar. A total of zero or less
// renders an empty bar; done beyond total renders a full one.
func Bar(done, total, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	filled = max(0, min(filled, width))

	pct := 0.0
	if total > 0 {
		pct = min(float64(done)/float64(total)*100, 100)
	}
	return fmt.Sprintf("[%s%s] %d/%d (%.1f%%)",
		strings.Repeat(ProgressBar, filled),
		strings.Repeat(ProgressEmpty, width-filled),
		done, total, pct)
}

// HarvestSummary is what the crawl command prints when a run ends
type HarvestSummary struct {
	Role       string
	Status     string
	Attempts   int
	Pages      int
	Fetched    int
	Skipped    int
	Harvested  int
	Expected   int
	Elapsed    string
	ETA        string
	Checkpoint string
}

// PrintHarvestSummary prints s as an aligned block
func PrintHarvestSummary(s HarvestSummary) {
	if quiet {
		return
	}
	fmt.Fprintln(out)
	PrintHighlight("[HARVEST " + strings.ToUpper(s.Status) + "]")
	PrintInfo("Role", s.Role)
	PrintInfo("Progress", Bar(s.Harvested, s.Expected, 30))
	PrintInfo("This run", fmt.Sprintf("%d fetched, %d skipped over %d pages in %d attempt(s)",
		s.Fetched, s.Skipped, s.Pages, s.Attempts))
	PrintInfo("Elapsed", s.Elapsed)
	if s.ETA != "" {
		PrintInfo("ETA", s.ETA)
	}
	PrintInfo("Checkpoint", s.Checkpoint)
}
