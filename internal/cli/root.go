package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var (
	projectDir string
	configPath string
	ndkRoot    string
	outputJSON bool
	noProgress bool
	noPrompt   bool
	noDownload bool
	verbose    bool
)

// Execute runs the root cobra command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "andrust",
		Short:         "Configure Cargo to cross-compile Rust for Android",
		Long:          "Locates (or downloads) an Android NDK and writes .cargo/config target stanzas for every supported Android triple.",
		Args:          cobra.NoArgs,
		RunE:          runSetup,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&ndkRoot, "root", "r", "", "NDK root to try before any other location")
	flags.StringVarP(&projectDir, "project", "p", "", "Path to the Rust project (defaults to the working directory)")
	flags.StringVar(&configPath, "config", "", "Path to andrust.yaml (defaults to <project>/andrust.yaml)")
	flags.BoolVar(&outputJSON, "json", false, "Output machine-readable JSON")
	flags.BoolVar(&noProgress, "no-progress", false, "Disable the interactive progress display")
	flags.BoolVar(&noPrompt, "no-prompt", false, "Never ask for an NDK root on standard input")
	flags.BoolVar(&noDownload, "no-download", false, "Never download an NDK")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Mirror debug logs to stderr")

	cmd.AddCommand(newSetupCmd())
	cmd.AddCommand(newDetectCmd())
	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newTargetsCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newDownloadsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}
