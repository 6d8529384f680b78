package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"andrust/internal/config"
	"andrust/internal/paths"
	"andrust/internal/resolver"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check config, NDK and .cargo/config health",
		Args:  cobra.NoArgs,
		RunE:  runDoctor,
	}
}

type healthCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warning", "error"
	Summary string `json:"summary"`
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	pp, err := paths.Resolve(projectDir)
	if err != nil {
		return err
	}
	pp = pp.WithConfigFile(configPath)

	var checks []healthCheck

	cfg, cfgErr := config.Load(pp.ConfigFile)
	checks = append(checks, checkConfig(cfg, cfgErr))
	if cfgErr != nil || config.HasErrors(cfg.Validate()) {
		// Can't proceed with further checks without config
		return writeDoctorResult(cmd, pp.Root, checks)
	}

	s, err := openSession(cmd, "doctor")
	if err != nil {
		return err
	}
	defer s.Close()

	res, resolveErr := s.newResolver(false).Resolve(cmd.Context(), s.hint())
	checks = append(checks, checkNDK(res, resolveErr))
	if resolveErr == nil {
		checks = append(checks, checkNDKRevision(res.Root, s.cfg.MinRevision))
	}
	checks = append(checks, checkCargoConfig(pp, res, resolveErr == nil))

	return writeDoctorResult(cmd, pp.Root, checks)
}

func checkConfig(cfg config.Config, cfgErr error) healthCheck {
	if cfgErr != nil {
		return healthCheck{Name: "Config", Status: "error", Summary: cfgErr.Error()}
	}

	var warnings, errors int
	for _, v := range cfg.Validate() {
		switch v.Level {
		case "warning":
			warnings++
		case "error":
			errors++
		}
	}

	summary := fmt.Sprintf("%d targets", len(cfg.SelectedTriples()))
	if errors > 0 {
		return healthCheck{Name: "Config", Status: "error", Summary: fmt.Sprintf("%s; %d errors", summary, errors)}
	}
	if warnings > 0 {
		return healthCheck{Name: "Config", Status: "warning", Summary: fmt.Sprintf("%s; %d warnings", summary, warnings)}
	}
	return healthCheck{Name: "Config", Status: "ok", Summary: summary}
}

func checkNDK(res resolver.Resolution, err error) healthCheck {
	if err != nil {
		return healthCheck{Name: "NDK", Status: "error", Summary: err.Error()}
	}
	return healthCheck{
		Name:    "NDK",
		Status:  "ok",
		Summary: fmt.Sprintf("%s (%s)", res.Root, strategyLabel(res.Strategy)),
	}
}

func checkNDKRevision(root, minimum string) healthCheck {
	rev, warnings := checkRevision(root, minimum)
	if len(warnings) > 0 {
		return healthCheck{Name: "Revision", Status: "warning", Summary: joinComma(warnings)}
	}
	if rev == "" {
		return healthCheck{Name: "Revision", Status: "warning", Summary: "source.properties not readable"}
	}
	return healthCheck{Name: "Revision", Status: "ok", Summary: rev}
}

func checkCargoConfig(pp paths.ProjectPaths, res resolver.Resolution, resolved bool) healthCheck {
	exists, err := paths.FileExists(pp.CargoConfig)
	if err != nil {
		return healthCheck{Name: "Cargo", Status: "error", Summary: err.Error()}
	}
	if !exists {
		return healthCheck{Name: "Cargo", Status: "warning", Summary: "no .cargo/config; run andrust setup"}
	}

	rows, err := loadCargoRows(pp.CargoConfig)
	if err != nil {
		return healthCheck{Name: "Cargo", Status: "error", Summary: err.Error()}
	}
	var missing, stale []string
	for _, row := range rows {
		if row.Status != "ok" {
			missing = append(missing, string(row.Target))
			continue
		}
		if resolved && !underRoot(res.Root, row.Linker) {
			stale = append(stale, string(row.Target))
		}
	}
	switch {
	case len(missing) > 0:
		return healthCheck{Name: "Cargo", Status: "error", Summary: "missing tools for " + joinComma(missing)}
	case len(stale) > 0:
		return healthCheck{Name: "Cargo", Status: "warning", Summary: "not using the detected NDK: " + joinComma(stale)}
	}
	return healthCheck{Name: "Cargo", Status: "ok", Summary: fmt.Sprintf("%d targets", len(rows))}
}

func underRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func writeDoctorResult(cmd *cobra.Command, projectRoot string, checks []healthCheck) error {
	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), checks)
	}

	bold := lipgloss.NewStyle().Bold(true).Inline(true)
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Inline(true)
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Inline(true)
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Inline(true)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, bold.Render("PROJECT HEALTH:")+" "+projectRoot)

	for _, c := range checks {
		var statusStr string
		switch c.Status {
		case "ok":
			statusStr = green.Render("OK")
		case "warning":
			statusStr = yellow.Render("WARN")
		case "error":
			statusStr = red.Render("ERROR")
		}
		fmt.Fprintf(out, "  %-12s %s    %s\n", c.Name+":", statusStr, c.Summary)
	}

	return nil
}
