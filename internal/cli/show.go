package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"andrust/internal/cargoconfig"
	"andrust/internal/paths"
	"andrust/internal/toolset"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the target stanzas in the project's .cargo/config",
		Args:  cobra.NoArgs,
		RunE:  runShow,
	}
}

type showRow struct {
	Target   toolset.Triple `json:"target"`
	Archiver string         `json:"ar"`
	Linker   string         `json:"linker"`
	Status   string         `json:"status"` // "ok" or "missing"
}

func runShow(cmd *cobra.Command, _ []string) error {
	pp, err := paths.Resolve(projectDir)
	if err != nil {
		return err
	}
	rows, err := loadCargoRows(pp.CargoConfig)
	if err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), rows)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config: %s\n\n", pp.CargoConfig)
	if len(rows) == 0 {
		fmt.Fprintln(out, "(no android targets)")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tSTATUS\tAR\tLINKER")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row.Target, row.Status, row.Archiver, row.Linker)
	}
	w.Flush()
	return nil
}

func loadCargoRows(path string) ([]showRow, error) {
	entries, err := cargoconfig.Read(path)
	if err != nil {
		return nil, err
	}
	known := make(map[toolset.Triple]bool)
	for _, t := range toolset.KnownTriples() {
		known[t] = true
	}

	rows := make([]showRow, 0, len(entries))
	for _, triple := range sortedEntryTriples(entries) {
		if !known[triple] {
			continue
		}
		entry := entries[triple]
		status := "ok"
		for _, p := range []string{entry.Archiver, entry.Linker} {
			if ok, _ := paths.FileExists(p); !ok {
				status = "missing"
			}
		}
		rows = append(rows, showRow{Target: triple, Archiver: entry.Archiver, Linker: entry.Linker, Status: status})
	}
	return rows, nil
}

func sortedEntryTriples(entries map[toolset.Triple]cargoconfig.Entry) []toolset.Triple {
	triples := make([]toolset.Triple, 0, len(entries))
	for triple := range entries {
		triples = append(triples, triple)
	}
	sort.Slice(triples, func(i, j int) bool { return triples[i] < triples[j] })
	return triples
}
