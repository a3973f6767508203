package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"eoscraper/pkg/checkpoint"
	"eoscraper/pkg/config"
	"eoscraper/pkg/crawler"
	"eoscraper/pkg/logger"
	"eoscraper/pkg/progress"
	"eoscraper/pkg/ratelimit"
	"eoscraper/pkg/source"
	"eoscraper/pkg/source/browser"
	"eoscraper/pkg/storage"
	"eoscraper/pkg/supervisor"
	"eoscraper/pkg/ui"
)

var (
	rowsPerPage       int
	totalExpected     int
	fromLastPage      bool
	waitTimeout       string
	headful           bool
	maxFailures       int
	backoff           string
	checkpointPath    string
	checkpointBackend string
	crawlRateLimit    int
	runOnce           bool
	runContinuous     bool
	notify            bool
)

var crawlCmd = &cobra.Command{
	Use:   "crawl [role]",
	Short: "Harvest every actor of one role into the checkpoint",
	Long: `Harvest every actor listed under a role (default: manufacturer).

The crawl resumes from the role's checkpoint, skips actors already stored
and saves after every page. Failed attempts are restarted after a backoff
until the configured number of consecutive failures is reached.

Exit codes: 0 success, 1 retries exhausted, 2 fatal error, 130 interrupted.`,
	Example: `  # Harvest manufacturers with the defaults
  eoscraper crawl

  # Harvest importers into a SQLite checkpoint, starting at the last page
  eoscraper crawl importer --checkpoint-backend sqlite --from-last-page

  # Single attempt with a visible browser
  eoscraper crawl --once --headful --log-level debug`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	f := crawlCmd.Flags()
	f.IntVar(&rowsPerPage, "rows-per-page", 50, "rows shown per listing page")
	f.IntVar(&totalExpected, "total-expected", 23153, "expected number of actors, for the ETA")
	f.BoolVar(&fromLastPage, "from-last-page", false, "jump to the last listing page before harvesting")
	f.StringVar(&waitTimeout, "wait-timeout", "10s", "how long to wait for any page element (seconds or duration)")
	f.BoolVar(&headful, "headful", false, "show the browser window")
	f.IntVar(&maxFailures, "max-failures", 5, "consecutive failed attempts before giving up")
	f.StringVar(&backoff, "backoff", "30s", "wait between attempts (seconds or duration)")
	f.StringVar(&checkpointPath, "checkpoint", "", "checkpoint path; {role} is replaced by the role")
	f.StringVar(&checkpointBackend, "checkpoint-backend", "", "checkpoint backend (json, sqlite)")
	f.IntVar(&crawlRateLimit, "rate-limit", 0, "maximum detail views opened per minute (0 = unlimited)")
	f.BoolVar(&runOnce, "once", false, "make a single attempt, never restart")
	f.BoolVar(&runContinuous, "continuous", false, "keep re-crawling after each complete pass")
	f.BoolVar(&notify, "notify", false, "send a desktop notification when the run ends")
	crawlCmd.MarkFlagsMutuallyExclusive("once", "continuous")
}

// crawlFlags returns the overrides for flags the user actually set
func crawlFlags(cmd *cobra.Command, args []string) (map[string]interface{}, error) {
	flags := map[string]interface{}{}
	if len(args) == 1 {
		flags["role"] = strings.TrimSpace(args[0])
	}

	changed := cmd.Flags().Changed
	if changed("rows-per-page") {
		flags["rows-per-page"] = rowsPerPage
	}
	if changed("total-expected") {
		flags["total-expected"] = totalExpected
	}
	if changed("from-last-page") {
		flags["from-last-page"] = fromLastPage
	}
	if changed("wait-timeout") {
		d, err := config.ParseDuration(waitTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid --wait-timeout: %w", err)
		}
		flags["wait-timeout"] = d
	}
	if changed("headful") {
		flags["headless"] = !headful
	}
	if changed("max-failures") {
		flags["max-failures"] = maxFailures
	}
	if changed("backoff") {
		d, err := config.ParseDuration(backoff)
		if err != nil {
			return nil, fmt.Errorf("invalid --backoff: %w", err)
		}
		flags["backoff"] = d
	}
	if changed("checkpoint") {
		flags["checkpoint"] = checkpointPath
	}
	if changed("checkpoint-backend") {
		flags["checkpoint-backend"] = checkpointBackend
	}
	if changed("rate-limit") {
		flags["rate-limit"] = crawlRateLimit
	}
	switch {
	case runOnce:
		flags["mode"] = config.ModeOnce
	case runContinuous:
		flags["mode"] = config.ModeContinuous
	}
	return flags, nil
}

func runCrawl(cmd *cobra.Command, args []string) error {
	flags, err := crawlFlags(cmd, args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(flags)
	if err != nil {
		exitCode = supervisor.StatusFatal.ExitCode()
		return err
	}
	log := logger.GetLogger().WithField("role", cfg.Crawl.Role)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kind, err := storage.ParseKind(cfg.Checkpoint.Backend)
	if err != nil {
		exitCode = supervisor.StatusFatal.ExitCode()
		return err
	}
	backend, err := storage.Open(kind, cfg.CheckpointPath())
	if err != nil {
		exitCode = supervisor.StatusFatal.ExitCode()
		return fmt.Errorf("failed to open checkpoint: %w", err)
	}
	defer backend.Close()
	store := checkpoint.NewStore(backend, log)

	policy, err := supervisor.PolicyFromConfig(cfg.Supervisor)
	if err != nil {
		exitCode = supervisor.StatusFatal.ExitCode()
		return err
	}

	limiter := ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)
	open := func(ctx context.Context) (source.RecordSource, error) {
		src, err := browser.Open(ctx, cfg.Browser, log)
		if err != nil {
			return nil, err
		}
		return source.Guard(src, cfg.Browser.WaitTimeout, limiter, log), nil
	}

	opts := crawler.Options{
		Role:              cfg.Crawl.Role,
		RowsPerPage:       cfg.Crawl.RowsPerPage,
		TotalExpected:     cfg.Crawl.TotalExpectedRecords,
		PageLoadTime:      cfg.Crawl.PageLoadTime,
		StartFromLastPage: cfg.Crawl.StartFromLastPage,
		DetailWait:        cfg.Browser.WaitTimeout,
		PollInterval:      cfg.Browser.PollInterval,
		MemoryLimitMB:     cfg.Supervisor.MaxMemoryMB,
	}

	ui.PrintLogo()
	ui.PrintInfo("Role", cfg.Crawl.Role)
	ui.PrintInfo("Checkpoint", backend.Location())
	ui.PrintInfo("Mode", cfg.Supervisor.Mode)
	logger.LogComponentStart(log, "crawl", map[string]interface{}{
		"checkpoint":   backend.Location(),
		"mode":         cfg.Supervisor.Mode,
		"max_failures": cfg.Supervisor.MaxConsecutiveFailures,
		"backoff":      cfg.Supervisor.Backoff,
	})

	outcome := supervisor.New(open, store, opts, policy, log).Run(ctx)
	logger.LogComponentStop(log, "crawl", string(outcome.Status))

	reportOutcome(cfg, outcome)
	exitCode = outcome.ExitCode()
	return nil
}

func reportOutcome(cfg *config.Config, outcome supervisor.Outcome) {
	sum := outcome.Summary
	eta := ""
	if sum.Remaining > 0 && sum.ETA != (progress.ETA{}) {
		eta = sum.ETA.String()
	}
	ui.PrintHarvestSummary(ui.HarvestSummary{
		Role:       cfg.Crawl.Role,
		Status:     string(outcome.Status),
		Attempts:   outcome.Attempts,
		Pages:      sum.Pages,
		Fetched:    sum.Fetched,
		Skipped:    sum.Skipped,
		Harvested:  sum.Harvested,
		Expected:   cfg.Crawl.TotalExpectedRecords,
		Elapsed:    progress.FormatElapsed(sum.Elapsed),
		ETA:        eta,
		Checkpoint: outcome.Checkpoint,
	})

	notifier := ui.NewNotifier(notify)
	title := "eoscraper " + cfg.Crawl.Role
	switch outcome.Status {
	case supervisor.StatusSuccess:
		notifier.SendSuccess(title, fmt.Sprintf("%d actors harvested", sum.Harvested))
	case supervisor.StatusCancelled:
		ui.PrintWarning("Interrupted, progress saved to " + outcome.Checkpoint)
	default:
		msg := string(outcome.Status)
		if outcome.Err != nil {
			msg += ": " + outcome.Err.Error()
		}
		notifier.SendError(title, msg)
	}
}
