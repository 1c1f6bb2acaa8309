package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jaisonv/cad-calls/lib/telemetry"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

// exit statuses, distinct so callers can tell a bad invocation from a
// failing portal from a full disk
const (
	exitFetchFailed   = 1
	exitInvalidParams = 2
	exitWriteFailed   = 3
)

var verbose *bool
var quiet *bool

var rootCmd = &cobra.Command{
	Use:   "cadcalls-cli",
	Short: "cadcalls-cli pulls CAD dispatch-call records from a Police-to-Citizen portal.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if *quiet {
			// warnings only, the table display is suppressed too
			slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
				Level:      slog.LevelWarn,
				TimeFormat: time.Kitchen,
			})))
			return
		}
		telemetry.InitSlog(*verbose)
	},
}

func init() {
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging.")
	quiet = rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress console output.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitInvalidParams)
	}
}
