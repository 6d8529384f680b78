package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"andrust/internal/toolset"
)

var (
	fetchURL         string
	fetchKeepArchive bool
)

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download and extract the NDK into the data directory",
		Args:  cobra.NoArgs,
		RunE:  runFetch,
	}
	cmd.Flags().StringVar(&fetchURL, "url", "", "Archive URL (defaults to the host's NDK release)")
	cmd.Flags().BoolVar(&fetchKeepArchive, "keep-archive", false, "Keep the downloaded archive after extraction")
	return cmd
}

type fetchResult struct {
	Root     string   `json:"root"`
	URL      string   `json:"url"`
	Valid    bool     `json:"valid"`
	Revision string   `json:"revision,omitempty"`
	Missing  string   `json:"missing,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func runFetch(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, "fetch")
	if err != nil {
		return err
	}
	defer s.Close()

	if fetchURL != "" {
		s.cfg.Download.URL = fetchURL
	}
	if fetchKeepArchive {
		s.cfg.Download.KeepArchive = true
	}

	acq := &pipelineAcquirer{s: s}
	root, err := acq.Acquire(cmd.Context())
	if err != nil {
		s.logger.Error("fetch failed", zap.Error(err))
		return err
	}

	result := fetchResult{Root: root, URL: s.newPipeline().URL, Valid: true}
	if err := toolset.Validate(root, s.templates); err != nil {
		result.Valid = false
		var missing *toolset.MissingBinaryError
		if errors.As(err, &missing) {
			result.Missing = missing.Path
		}
		s.logger.Warn("fetched ndk incomplete", zap.String("root", root), zap.Error(err))
	}
	result.Revision, result.Warnings = checkRevision(root, s.cfg.MinRevision)
	result.Warnings = append(s.warnings, result.Warnings...)

	if outputJSON {
		if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		printWarnings(cmd.ErrOrStderr(), result.Warnings)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "NDK extracted to %s\n", result.Root)
		if result.Revision != "" {
			fmt.Fprintf(out, "Revision: %s\n", result.Revision)
		}
	}

	if !result.Valid {
		return fmt.Errorf("downloaded ndk is missing %s", result.Missing)
	}
	return nil
}
