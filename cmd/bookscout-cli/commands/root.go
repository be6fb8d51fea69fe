package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"bookscout/lib/serviceutil"
	"bookscout/lib/telemetry"

	"github.com/spf13/cobra"
)

var verbose *bool
var telem telemetry.Telemetry

func init() {
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging.")
}

var rootCmd = &cobra.Command{
	Use:   "bookscout-cli",
	Short: "bookscout-cli scrapes a reading tracker site into filtered book lists and personalized recommendations.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)

		tel, err := telemetry.SetupFromEnv(cmd.Context(), "bookscout-cli")
		if os.IsNotExist(err) {
			slog.Debug("no telemetry.json5 found, running with logging only")
			return
		}
		if err != nil {
			serviceutil.Fatal("failed to initialize telemetry", err)
		}
		telem = tel
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		err := telem.Shutdown(cmd.Context())
		if err != nil {
			slog.Warn("failed to shut down telemetry", "err", err)
		}
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
