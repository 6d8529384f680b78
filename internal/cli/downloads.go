package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"andrust/internal/acquire"
	"andrust/internal/paths"
	"andrust/internal/tui"
)

var downloadsPrune bool

func newDownloadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "downloads",
		Short: "List NDKs previously downloaded into the data directory",
		Args:  cobra.NoArgs,
		RunE:  runDownloads,
	}
	cmd.Flags().BoolVar(&downloadsPrune, "prune", false, "Forget entries whose directory no longer exists")
	return cmd
}

type downloadRow struct {
	acquire.ManifestEntry
	Present bool `json:"present"`
}

func runDownloads(cmd *cobra.Command, _ []string) error {
	dp, err := dataPaths()
	if err != nil {
		return err
	}
	manifestPath := dp.ManifestFile()
	m, err := acquire.LoadManifest(manifestPath)
	if err != nil {
		return err
	}

	rows := make([]downloadRow, 0, len(m.Entries))
	pruned := 0
	for _, entry := range m.Sorted() {
		present, err := paths.DirExists(entry.Root)
		if err != nil {
			return err
		}
		if !present && downloadsPrune {
			delete(m.Entries, entry.Root)
			pruned++
			continue
		}
		rows = append(rows, downloadRow{ManifestEntry: entry, Present: present})
	}
	if pruned > 0 {
		if err := acquire.SaveManifest(manifestPath, m); err != nil {
			return err
		}
	}

	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), rows)
	}

	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No downloads recorded.")
	} else {
		w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "ROOT\tSTATUS\tSIZE\tENTRIES\tINSTALLED")
		for _, row := range rows {
			status := "present"
			if !row.Present {
				status = "missing"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				row.Root, status, tui.HumanBytes(row.Bytes), row.Entries, tui.NonEmptyOrDash(row.InstalledAt))
		}
		w.Flush()
	}
	if pruned > 0 {
		fmt.Fprintf(out, "Pruned %d entries.\n", pruned)
	}
	return nil
}
