package cmd

import (
	"log"

	"portfolio-sync/core/config"
	"portfolio-sync/core/logger"
	"portfolio-sync/core/storage"
	"portfolio-sync/core/upstream"
	"portfolio-sync/feature/mirror"
	"portfolio-sync/feature/output"
	"portfolio-sync/feature/pipeline"
	"portfolio-sync/feature/records"
	"portfolio-sync/feature/snapshot"
	"portfolio-sync/feature/variant"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	syncFull    bool
	syncDryRun  bool
	syncVerbose bool
	syncOutDir  string
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass against the upstream workspace",
	Long: `Fetches the upstream change snapshot, selectively pulls only the
records that changed since the last run, mirrors new media into the CDN
bucket and rewrites the per-variant datasets, sitemaps and share metadata.

If the upstream rejects the run (quota exceeded or missing credentials)
the previously published datasets are left untouched and the command
still exits zero. The exit is non-zero only when there is neither live
data nor a cached dataset to serve.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		if syncVerbose {
			cfg.Log.Level = "debug"
		}
		if syncOutDir != "" {
			cfg.Pipeline.OutputDir = syncOutDir
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Variant definitions are mandatory: with none configured there
		// is nothing to publish and nothing to fall back to.
		defs, err := variant.LoadDefinitions(cfg.Pipeline.VariantsFile)
		if err != nil {
			return err
		}

		// 4. Storage client for the mirror bucket
		store, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return err
		}
		uploader := mirror.NewUploader(store, cfg.Storage, logg)

		opts := pipeline.Options{
			FullSync: syncFull,
			DryRun:   syncDryRun,
			Offline:  !cfg.Upstream.HasCredentials(),
		}
		ctx := cmd.Context()

		if !opts.Offline && !opts.DryRun {
			// A missing bucket is recoverable per asset (each failed upload
			// falls back to the origin URL), so this only warns.
			if err := uploader.EnsureBucket(ctx); err != nil {
				logg.Warn("Mirror bucket unavailable", zap.Error(err))
			}
		}

		runner := pipeline.NewRunner(
			cfg.Pipeline,
			upstream.NewClient(cfg.Upstream, logg),
			uploader,
			snapshot.NewFileStore(cfg.Pipeline.StateDir),
			records.NewFileStore(cfg.Pipeline.StateDir),
			mirror.NewFileStore(cfg.Pipeline.StateDir),
			output.NewWriter(cfg.Pipeline.OutputDir, cfg.Pipeline.SiteBaseURL, logg),
			defs,
			logg,
		)

		state, err := runner.Run(ctx, opts)
		if err != nil {
			return err
		}
		logg.Info("Sync run finished", zap.String("state", string(state)))
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "refetch every record, bypassing change detection")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "compute and log change sets without fetching, uploading or writing")
	syncCmd.Flags().BoolVarP(&syncVerbose, "verbose", "v", false, "debug-level logging")
	syncCmd.Flags().StringVar(&syncOutDir, "out", "", "override the configured output directory")
	RootCmd.AddCommand(syncCmd)
}
