package cmd

import (
	"log"
	"strings"

	"portfolio-sync/core/config"
	"portfolio-sync/core/logger"
	"portfolio-sync/feature/variant"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// variantsCmd represents the variants command
var variantsCmd = &cobra.Command{
	Use:   "variants",
	Short: "List the configured site variants",
	Long:  `Parses the variants file and prints each variant with its namespace and inclusion rules. No network access.`,
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

		defs, err := variant.LoadDefinitions(cfg.Pipeline.VariantsFile)
		if err != nil {
			return err
		}

		logg.Info("Variants configured",
			zap.String("file", cfg.Pipeline.VariantsFile),
			zap.Int("count", len(defs)))
		for _, def := range defs {
			logg.Info("Variant",
				zap.String("id", def.ID),
				zap.String("namespace", def.Namespace),
				zap.String("statuses", describeFilter(def.Include.Statuses)),
				zap.String("audiences", describeFilter(def.Include.Audiences)))
		}
		return nil
	},
}

func describeFilter(values []string) string {
	if len(values) == 0 {
		return "any"
	}
	return strings.Join(values, ",")
}

func init() {
	RootCmd.AddCommand(variantsCmd)
}
