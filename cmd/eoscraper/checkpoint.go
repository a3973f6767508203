package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"eoscraper/pkg/checkpoint"
	"eoscraper/pkg/config"
	"eoscraper/pkg/logger"
	"eoscraper/pkg/storage"
	"eoscraper/pkg/ui"
)

var (
	migrateTo  string
	migrateOut string
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect and convert harvest checkpoints",
}

var checkpointInfoCmd = &cobra.Command{
	Use:   "info [role]",
	Short: "Show how many actors a role's checkpoint holds",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheckpointInfo,
}

var checkpointMigrateCmd = &cobra.Command{
	Use:   "migrate [role]",
	Short: "Copy a role's checkpoint into another backend",
	Example: `  # Convert the manufacturer JSON snapshot into SQLite
  eoscraper checkpoint migrate --to sqlite --out eudamed_manufacturer.db`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheckpointMigrate,
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointInfoCmd)
	checkpointCmd.AddCommand(checkpointMigrateCmd)

	checkpointMigrateCmd.Flags().StringVar(&migrateTo, "to", "sqlite", "destination backend (json, sqlite)")
	checkpointMigrateCmd.Flags().StringVar(&migrateOut, "out", "", "destination path")
	_ = checkpointMigrateCmd.MarkFlagRequired("out")
}

func roleFlags(args []string) map[string]interface{} {
	if len(args) == 1 {
		return map[string]interface{}{"role": args[0]}
	}
	return nil
}

func openConfiguredStore(cfg *config.Config) (storage.Backend, *checkpoint.Store, error) {
	kind, err := storage.ParseKind(cfg.Checkpoint.Backend)
	if err != nil {
		return nil, nil, err
	}
	backend, err := storage.Open(kind, cfg.CheckpointPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}
	return backend, checkpoint.NewStore(backend, logger.GetLogger()), nil
}

func runCheckpointInfo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(roleFlags(args))
	if err != nil {
		return err
	}
	backend, store, err := openConfiguredStore(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	if _, err := store.Load(context.Background()); err != nil {
		return err
	}

	ui.PrintHighlight("Checkpoint " + cfg.Crawl.Role)
	ui.PrintInfo("Location", store.Location())
	ui.PrintInfo("Backend", cfg.Checkpoint.Backend)
	ui.PrintInfo("Records", strconv.Itoa(store.Len()))
	ui.PrintInfo("Progress", ui.Bar(store.Len(), cfg.Crawl.TotalExpectedRecords, 30))
	return nil
}

func runCheckpointMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(roleFlags(args))
	if err != nil {
		return err
	}
	src, _, err := openConfiguredStore(cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	kind, err := storage.ParseKind(migrateTo)
	if err != nil {
		return err
	}
	dst, err := storage.Open(kind, migrateOut)
	if err != nil {
		return fmt.Errorf("failed to open destination: %w", err)
	}
	defer dst.Close()

	n, err := checkpoint.Migrate(context.Background(), src, dst)
	if err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Copied %d records from %s to %s", n, src.Location(), dst.Location()))
	return nil
}
