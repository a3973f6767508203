package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"eoscraper/pkg/config"
	"eoscraper/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage eoscraper configuration files.

Configuration is layered, highest priority first:
  - Command line flags
  - Environment variables (EOSCRAPER_*, also read from .env)
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to a file",
	Long: `Write the default configuration, including every selector, to
.eoscraper.yaml or the path given with --config.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	RunE:  runConfigValidate,
}

var configRolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List the roles that can be crawled",
	RunE:  runConfigRoles,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configRolesCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".eoscraper.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Adjust the role, checkpoint and supervisor sections")
	fmt.Println("2. Run 'eoscraper config validate' to check the configuration")
	fmt.Println("3. Start harvesting with 'eoscraper crawl'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		ui.PrintError("Configuration validation failed")
		return err
	}

	if cfg.Supervisor.MaxMemoryMB == 0 {
		ui.PrintWarning("Memory guard disabled (supervisor.max_memory_mb is 0)")
	}
	if cfg.Crawl.TotalExpectedRecords == 0 {
		ui.PrintWarning("total_expected_records is 0, the ETA will always be zero")
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Role: %s\n", cfg.Crawl.Role)
	fmt.Printf("  Checkpoint: %s (%s)\n", cfg.CheckpointPath(), cfg.Checkpoint.Backend)
	fmt.Printf("  Mode: %s, max %d consecutive failures, %s backoff\n",
		cfg.Supervisor.Mode, cfg.Supervisor.MaxConsecutiveFailures, cfg.Supervisor.Backoff)
	fmt.Printf("  Wait timeout: %s\n", cfg.Browser.WaitTimeout)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}

func runConfigRoles(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	roles := make([]string, 0, len(cfg.Browser.Roles))
	for role := range cfg.Browser.Roles {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		url, _ := cfg.ListingURL(role)
		ui.PrintInfo(role, url)
	}
	return nil
}
