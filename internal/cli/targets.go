package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"andrust/internal/config"
	"andrust/internal/paths"
	"andrust/internal/toolset"
)

var targetsOS string

func newTargetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List supported target triples and their NDK-relative tools",
		Args:  cobra.NoArgs,
		RunE:  runTargets,
	}
	cmd.Flags().StringVar(&targetsOS, "os", "", "Host OS to list paths for (linux, darwin, windows)")
	return cmd
}

type targetRow struct {
	Target   toolset.Triple `json:"target"`
	Archiver string         `json:"ar"`
	Linker   string         `json:"linker"`
	Selected bool           `json:"selected"`
}

func runTargets(cmd *cobra.Command, _ []string) error {
	var (
		host      toolset.Host
		templates map[toolset.Triple]toolset.Template
	)
	if targetsOS == "" {
		current, err := toolset.CurrentHost()
		if err != nil {
			return err
		}
		host, templates = current, toolset.TemplatesForHost()
	} else {
		h, ok := toolset.HostFor(targetsOS)
		if !ok {
			return fmt.Errorf("unsupported host os %q", targetsOS)
		}
		host, templates = h, toolset.TemplatesFor(h)
	}

	// Selection comes from the project config when there is one.
	pp, err := paths.Resolve(projectDir)
	if err != nil {
		return err
	}
	cfg, err := config.Load(pp.WithConfigFile(configPath).ConfigFile)
	if err != nil {
		return err
	}
	selected := make(map[toolset.Triple]bool)
	for _, t := range cfg.SelectedTriples() {
		selected[t] = true
	}

	rows := make([]targetRow, 0, len(templates))
	for _, triple := range toolset.SortedTriples(templates) {
		tpl := templates[triple]
		rows = append(rows, targetRow{
			Target:   triple,
			Archiver: tpl.Archiver,
			Linker:   tpl.Linker,
			Selected: selected[triple],
		})
	}

	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), rows)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Host: %s\n\n", host.Tag)
	w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tSELECTED\tAR\tLINKER")
	for _, row := range rows {
		sel := "no"
		if row.Selected {
			sel = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row.Target, sel, row.Archiver, row.Linker)
	}
	w.Flush()
	return nil
}
