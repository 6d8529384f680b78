package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"andrust/internal/cargoconfig"
	"andrust/internal/resolver"
	"andrust/internal/toolset"
)

func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Find or download an NDK and write .cargo/config",
		Args:  cobra.NoArgs,
		RunE:  runSetup,
	}
}

type setupResult struct {
	Root     string             `json:"root"`
	Strategy string             `json:"strategy"`
	Revision string             `json:"revision,omitempty"`
	Config   string             `json:"config"`
	Toolsets []toolset.Resolved `json:"toolsets"`
	Warnings []string           `json:"warnings,omitempty"`
}

func runSetup(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, "setup")
	if err != nil {
		return err
	}
	defer s.Close()

	s.startStatus("Searching for an Android NDK")
	res, err := s.newResolver(true).Resolve(cmd.Context(), s.hint())
	s.status.Stop()
	s.warnings = append(s.warnings, rejectedHint(res.Attempts)...)
	if err != nil {
		printWarnings(cmd.ErrOrStderr(), s.warnings)
		s.logger.Error("resolution failed", zap.Error(err))
		return err
	}

	set, err := toolset.Bind(res.Root, s.templates)
	if err != nil {
		return fmt.Errorf("bind toolsets: %w", err)
	}
	dest, err := cargoconfig.Write(set, s.project.Root)
	if err != nil {
		return err
	}
	s.logger.Info("cargo config written", zap.String("path", dest), zap.Int("targets", set.Cardinality()))

	result := setupResult{
		Root:     res.Root,
		Strategy: res.Strategy,
		Config:   dest,
		Toolsets: toolset.Sorted(set),
	}
	result.Revision, result.Warnings = checkRevision(res.Root, s.cfg.MinRevision)
	result.Warnings = append(s.warnings, result.Warnings...)

	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	printWarnings(cmd.ErrOrStderr(), result.Warnings)
	writeSetupTable(cmd, result)
	return nil
}

// checkRevision reads the NDK revision and compares it with minimum. Problems
// are only reported, never fatal.
func checkRevision(root, minimum string) (string, []string) {
	rev, err := toolset.ReadRevision(root)
	if err != nil {
		if minimum == "" {
			return "", nil
		}
		return "", []string{fmt.Sprintf("cannot check min_revision %s: %v", minimum, err)}
	}
	if minimum == "" {
		return rev.String(), nil
	}
	ok, err := toolset.MeetsMinimum(rev, minimum)
	if err != nil {
		return rev.String(), []string{err.Error()}
	}
	if !ok {
		return rev.String(), []string{fmt.Sprintf("ndk revision %s is older than min_revision %s", rev, minimum)}
	}
	return rev.String(), nil
}

func writeSetupTable(cmd *cobra.Command, result setupResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "NDK root: %s (%s)\n", result.Root, strategyLabel(result.Strategy))
	if result.Revision != "" {
		fmt.Fprintf(out, "Revision: %s\n", result.Revision)
	}
	fmt.Fprintf(out, "Wrote %s\n\n", result.Config)

	w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tAR\tLINKER")
	for _, ts := range result.Toolsets {
		fmt.Fprintf(w, "%s\t%s\t%s\n", ts.Triple, ts.Archiver, ts.Linker)
	}
	w.Flush()
}

func strategyLabel(strategy string) string {
	switch strategy {
	case resolver.StrategyHint:
		return "explicit root"
	case resolver.StrategyEnv:
		return "NDK environment variable"
	case resolver.StrategySDK:
		return "SDK environment variable"
	case resolver.StrategyHome:
		return "home directory default"
	case resolver.StrategyLatest:
		return "newest SDK ndk version"
	case resolver.StrategyCache:
		return "previous download"
	case resolver.StrategyPrompt:
		return "entered at prompt"
	case resolver.StrategyAcquire:
		return "downloaded"
	default:
		return strategy
	}
}
