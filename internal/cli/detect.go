package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"andrust/internal/resolver"
	"andrust/internal/tui"
)

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Show where an NDK would be found, without prompting or downloading",
		Args:  cobra.NoArgs,
		RunE:  runDetect,
	}
}

type detectResult struct {
	Found    bool               `json:"found"`
	Root     string             `json:"root,omitempty"`
	Strategy string             `json:"strategy,omitempty"`
	Attempts []resolver.Attempt `json:"attempts"`
}

func runDetect(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, "detect")
	if err != nil {
		return err
	}
	defer s.Close()

	res, resolveErr := s.newResolver(false).Resolve(cmd.Context(), s.hint())
	result := detectResult{
		Found:    resolveErr == nil,
		Root:     res.Root,
		Strategy: res.Strategy,
		Attempts: res.Attempts,
	}
	if result.Attempts == nil {
		result.Attempts = []resolver.Attempt{}
	}

	if outputJSON {
		if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		writeDetectTable(cmd, result)
	}

	if resolveErr != nil && !errors.Is(resolveErr, resolver.ErrToolsetDoesNotExist) {
		return resolveErr
	}
	if !result.Found {
		return fmt.Errorf("no ndk found; run andrust setup to prompt or download")
	}
	return nil
}

func writeDetectTable(cmd *cobra.Command, result detectResult) {
	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "STRATEGY\tCANDIDATE\tRESULT")
	for _, a := range result.Attempts {
		status := "ok"
		if !a.Accepted {
			status = a.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.Strategy, tui.NonEmptyOrDash(a.Candidate), status)
	}
	w.Flush()

	if result.Found {
		fmt.Fprintf(out, "\nNDK root: %s (%s)\n", result.Root, strategyLabel(result.Strategy))
	}
}
