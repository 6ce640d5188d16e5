// Package report renders diagnostic lines and reports.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ternarybob/mapcheck/internal/models"
	"gopkg.in/yaml.v3"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Encode writes the report to w in the given format.
// Text output is the console lines exactly as the runner emitted them.
func Encode(w io.Writer, report *models.Report, format string) error {
	switch strings.ToLower(format) {
	case "", FormatText:
		for _, line := range report.Lines {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
		}
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report as json: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report as yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}
