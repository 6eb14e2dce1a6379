package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is human-readable output (default).
	FormatText OutputFormat = "text"
	// FormatJSON is indented JSON.
	FormatJSON OutputFormat = "json"
	// FormatYAML is YAML.
	FormatYAML OutputFormat = "yaml"
	// FormatCSV is CSV; only tables support it.
	FormatCSV OutputFormat = "csv"
)

// Table is tabular command output. Text and CSV formatters render it as
// rows; JSON and YAML render Records when set.
type Table struct {
	Headers []string
	Rows    [][]string

	// Records is the structured form of the rows.
	Records any
}

// Formatter writes command results.
type Formatter interface {
	FormatTo(w io.Writer, data any) error
}

// TextFormatter writes tables aligned by tabwriter and anything else with
// fmt's %v verb.
type TextFormatter struct{}

// FormatTo writes data to w.
func (f *TextFormatter) FormatTo(w io.Writer, data any) error {
	t, ok := data.(*Table)
	if !ok {
		_, err := fmt.Fprintf(w, "%v\n", data)
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writeTabbed(tw, t.Headers); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := writeTabbed(tw, row); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func writeTabbed(w io.Writer, cells []string) error {
	for i, c := range cells {
		sep := "\t"
		if i == len(cells)-1 {
			sep = "\n"
		}
		if _, err := io.WriteString(w, c+sep); err != nil {
			return err
		}
	}
	return nil
}

// JSONFormatter writes JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatTo writes data to w.
func (f *JSONFormatter) FormatTo(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(structured(data))
}

// YAMLFormatter writes YAML.
type YAMLFormatter struct{}

// FormatTo writes data to w.
func (f *YAMLFormatter) FormatTo(w io.Writer, data any) error {
	// Round-trip through JSON so the json tags name the fields.
	raw, err := json.Marshal(structured(data))
	if err != nil {
		return err
	}
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

// CSVFormatter writes tables as CSV.
type CSVFormatter struct{}

// FormatTo writes data to w. Data that is not a table is an error.
func (f *CSVFormatter) FormatTo(w io.Writer, data any) error {
	t, ok := data.(*Table)
	if !ok {
		return fmt.Errorf("csv output is only available for tables, got %T", data)
	}
	cw := csv.NewWriter(w)
	if len(t.Headers) > 0 {
		if err := cw.Write(t.Headers); err != nil {
			return err
		}
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

func structured(data any) any {
	if t, ok := data.(*Table); ok {
		if t.Records != nil {
			return t.Records
		}
		return t.Rows
	}
	return data
}

// NewFormatter creates a formatter for format. Unknown formats fall back
// to text.
func NewFormatter(format OutputFormat) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatYAML:
		return &YAMLFormatter{}
	case FormatCSV:
		return &CSVFormatter{}
	default:
		return &TextFormatter{}
	}
}
