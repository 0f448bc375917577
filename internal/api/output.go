package api

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// OutputFormat selects how client commands print structured results.
type OutputFormat string

const (
	OutputYAML OutputFormat = "yaml"
	OutputJSON OutputFormat = "json"
)

// outputFormat is set once by the root command's --output flag before any
// subcommand runs.
var outputFormat = OutputYAML

// SetOutputFormat selects the format for subsequent Output calls.
// Unrecognized values fall back to YAML.
func SetOutputFormat(format string) {
	if format == string(OutputJSON) {
		outputFormat = OutputJSON
		return
	}
	outputFormat = OutputYAML
}

// Output prints v to stdout in the configured format. Every client command
// funnels its result through here, so job and conversion output stays
// scriptable regardless of which endpoint produced it.
func Output(v any) error {
	return OutputTo(os.Stdout, outputFormat, v)
}

// OutputTo writes v to w in the given format.
func OutputTo(w io.Writer, format OutputFormat, v any) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}
