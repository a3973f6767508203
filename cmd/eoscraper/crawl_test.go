package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eoscraper/pkg/config"
)

func TestCrawlFlagsOnlyChanged(t *testing.T) {
	require.NoError(t, crawlCmd.ParseFlags([]string{
		"--rows-per-page", "25",
		"--backoff", "90",
		"--headful",
		"--once",
	}))

	flags, err := crawlFlags(crawlCmd, []string{" importer "})
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{
		"role":          "importer",
		"rows-per-page": 25,
		"backoff":       90 * time.Second,
		"headless":      false,
		"mode":          config.ModeOnce,
	}, flags)

	cfg := config.DefaultConfig()
	cfg.MergeCommandLineFlags(flags)
	assert.Equal(t, "eudamed_importer.json", cfg.CheckpointPath())
	assert.Equal(t, 10*time.Second, cfg.Browser.WaitTimeout, "unset flags keep configured values")
}
