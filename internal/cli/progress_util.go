package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"andrust/internal/config"
)

func writeJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func printWarnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
}

func validationError(results []config.ValidationResult) error {
	var msgs []string
	for _, r := range results {
		if r.Level == "error" {
			msgs = append(msgs, r.Message)
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func joinComma(items []string) string {
	return strings.Join(items, ", ")
}
