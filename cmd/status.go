package cmd

import (
	"log"

	"portfolio-sync/core/config"
	"portfolio-sync/core/logger"
	"portfolio-sync/feature/pipeline"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted state of the last sync run",
	Long:  `Reads the sync state file and prints when the pipeline last attempted and last succeeded, plus per-table record counts. No network access.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()

		state, err := pipeline.LoadState(cfg.Pipeline.StateDir)
		if err != nil {
			return err
		}
		if state.RunID == "" {
			logg.Info("No sync run recorded yet", zap.String("state_dir", cfg.Pipeline.StateDir))
			return nil
		}

		logg.Info("Last sync run",
			zap.String("run_id", state.RunID),
			zap.Time("last_attempt_at", state.LastAttemptAt),
			zap.Time("last_success_at", state.LastSuccessAt),
			zap.Int("degraded_runs", state.DegradedRuns))
		for table, ts := range state.Tables {
			logg.Info("Table",
				zap.String("table", table),
				zap.Int("records", ts.Records),
				zap.Time("snapshot_at", ts.SnapshotAt))
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(statusCmd)
}
