// Package output renders performance logs as tables, CSV, JSON or YAML.
package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/perflog/internal/metrics"
)

// Format represents the available output formats
type Format string

const (
	// FormatTable is the default human-readable table
	FormatTable Format = "table"
	// FormatCSV outputs comma separated values
	FormatCSV Format = "csv"
	// FormatJSON outputs in JSON format
	FormatJSON Format = "json"
	// FormatYAML outputs in YAML format
	FormatYAML Format = "yaml"
)

// ParseFormat returns the Format named s.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatCSV, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Columns are the dump fields in their fixed order.
var Columns = []string{"name", "numCalls", "average", "minimum", "maximum"}

// Document is the structured form of a dump.
type Document struct {
	Enabled bool               `json:"enabled" yaml:"enabled"`
	Logs    []metrics.Snapshot `json:"logs" yaml:"logs"`
}

// Sorted returns snapshots ordered by name, then type.
func Sorted(logs []metrics.Snapshot) []metrics.Snapshot {
	out := append([]metrics.Snapshot(nil), logs...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// Table renders logs as an aligned table sorted by name.
func Table(w io.Writer, logs []metrics.Snapshot, scheme *ColorScheme) error {
	if scheme == nil {
		scheme = NoColorScheme()
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := make([]string, len(Columns))
	for i, c := range Columns {
		header[i] = scheme.Header.Sprint(c)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")

	for _, s := range Sorted(logs) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
			scheme.Name.Sprint(s.Name),
			calls(s, scheme),
			scheme.Number.Sprint(formatAverage(s.Average)),
			scheme.Number.Sprint(s.Minimum),
			scheme.Number.Sprint(s.Maximum),
		)
	}
	return tw.Flush()
}

func calls(s metrics.Snapshot, scheme *ColorScheme) string {
	if s.FailureCount > 0 {
		return scheme.Failure.Sprint(s.CallCount)
	}
	return scheme.Number.Sprint(s.CallCount)
}

// CSV renders logs as CSV with a header row, sorted by name.
func CSV(w io.Writer, logs []metrics.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, s := range Sorted(logs) {
		record := []string{
			s.Name,
			strconv.FormatInt(s.CallCount, 10),
			formatAverage(s.Average),
			strconv.FormatInt(s.Minimum, 10),
			strconv.FormatInt(s.Maximum, 10),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// JSON renders doc as indented JSON.
func JSON(w io.Writer, doc Document) error {
	doc.Logs = Sorted(doc.Logs)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// YAML renders doc as YAML.
func YAML(w io.Writer, doc Document) error {
	doc.Logs = Sorted(doc.Logs)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// Render writes doc in the given format.
func Render(w io.Writer, format Format, doc Document, scheme *ColorScheme) error {
	switch format {
	case FormatCSV:
		return CSV(w, doc.Logs)
	case FormatJSON:
		return JSON(w, doc)
	case FormatYAML:
		return YAML(w, doc)
	default:
		return Table(w, doc.Logs, scheme)
	}
}

// TableString renders logs as an uncolored table.
func TableString(logs []metrics.Snapshot) string {
	var buf bytes.Buffer
	_ = Table(&buf, logs, NoColorScheme())
	return buf.String()
}

// CSVString renders logs as CSV.
func CSVString(logs []metrics.Snapshot) string {
	var buf bytes.Buffer
	_ = CSV(&buf, logs)
	return buf.String()
}

func formatAverage(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
