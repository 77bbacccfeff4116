// Command boqrecon reconciles bid sheets against a bill of quantities offline,
// without Postgres or NATS.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kirillkom/bid-reconciler/internal/config"
	"github.com/kirillkom/bid-reconciler/internal/observability/logging"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:          "boqrecon",
	Short:        "Reconcile priced bids against a tender bill of quantities",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		logger, err := logging.NewJSONLogger("boqrecon", cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		zap.ReplaceGlobals(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	rootCmd.AddCommand(reconcileCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
