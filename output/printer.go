// Package output renders Zymmr documents for the command line.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/goccy/go-yaml"

	"github.com/s0up4200/zymmr/zymmr"
)

// Format selects how documents are printed
type Format string

// Supported output formats
const (
	FormatTable Format = "table"
	FormatTree  Format = "tree"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// maxCellWidth truncates long values in table cells
const maxCellWidth = 60

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatTree, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (must be table, tree, json or yaml)", s)
	}
}

// Printer writes documents in one format
type Printer struct {
	w         io.Writer
	format    Format
	fields    []string
	header    *color.Color
	formatter *ConsoleFormatter
}

// PrinterOption configures a Printer
type PrinterOption func(*Printer)

// WithFields limits table and tree output to the given columns, in order
func WithFields(fields []string) PrinterOption {
	return func(p *Printer) {
		p.fields = fields
	}
}

// WithColor enables or disables colored table headers
func WithColor(enabled bool) PrinterOption {
	return func(p *Printer) {
		if enabled {
			p.header.EnableColor()
		} else {
			p.header.DisableColor()
		}
	}
}

// NewPrinter creates a printer writing to w
func NewPrinter(w io.Writer, format Format, opts ...PrinterOption) *Printer {
	p := &Printer{
		w:         w,
		format:    format,
		header:    color.New(color.FgCyan, color.Bold),
		formatter: NewConsoleFormatter(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// PrintList prints a list of documents
func (p *Printer) PrintList(docs zymmr.DocumentList) error {
	switch p.format {
	case FormatJSON:
		if docs == nil {
			docs = zymmr.DocumentList{}
		}
		return p.writeJSON(docs)
	case FormatYAML:
		return p.writeYAML(docs)
	case FormatTree:
		_, err := fmt.Fprint(p.w, p.formatter.FormatDocumentList(docs, FormatOptions{Fields: p.fields, ShowDetails: true}))
		return err
	default:
		return p.writeTable(docs)
	}
}

// PrintDocument prints a single document
func (p *Printer) PrintDocument(doc zymmr.Document) error {
	switch p.format {
	case FormatJSON:
		return p.writeJSON(doc)
	case FormatYAML:
		return p.writeYAML(doc)
	case FormatTree:
		return p.PrintList(zymmr.DocumentList{doc})
	default:
		return p.writeFields(doc)
	}
}

// PrintValue prints any JSON-serializable value, e.g. a login result
func (p *Printer) PrintValue(v any) error {
	switch p.format {
	case FormatYAML:
		return p.writeYAML(v)
	default:
		return p.writeJSON(v)
	}
}

// PrintBatchSummary prints the outcome of a batch operation
func (p *Printer) PrintBatchSummary(action string, summary zymmr.BatchSummary) error {
	switch p.format {
	case FormatJSON, FormatYAML:
		type item struct {
			Name  string `json:"name" yaml:"name"`
			Error string `json:"error,omitempty" yaml:"error,omitempty"`
		}
		items := make([]item, len(summary.Results))
		for i, r := range summary.Results {
			items[i].Name = r.Name
			if r.Err != nil {
				items[i].Error = r.Err.Error()
			}
		}
		if p.format == FormatYAML {
			return p.writeYAML(items)
		}
		return p.writeJSON(items)
	default:
		_, err := fmt.Fprint(p.w, p.formatter.FormatBatchSummary(action, summary))
		return err
	}
}

func (p *Printer) writeJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func (p *Printer) writeYAML(v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	_, err = p.w.Write(data)
	return err
}

func (p *Printer) writeTable(docs zymmr.DocumentList) error {
	if len(docs) == 0 {
		_, err := fmt.Fprintln(p.w, "No documents found")
		return err
	}

	columns := p.fields
	if len(columns) == 0 {
		columns = Columns(docs)
	}

	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)

	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = p.header.Sprint(strings.ToUpper(c))
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	for _, doc := range docs {
		cells := make([]string, len(columns))
		for i, c := range columns {
			cells[i] = truncate(FormatValue(doc[c]), maxCellWidth)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(p.w, "\n%d document(s)\n", len(docs))
	return err
}

func (p *Printer) writeFields(doc zymmr.Document) error {
	fields := p.fields
	if len(fields) == 0 {
		fields = Columns(zymmr.DocumentList{doc})
	}

	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	for _, f := range fields {
		fmt.Fprintf(tw, "%s\t%s\n", p.header.Sprint(f), FormatValue(doc[f]))
	}
	return tw.Flush()
}

// Columns returns the union of field names across docs: name first, the
// rest sorted. Child tables (list values) are left out.
func Columns(docs zymmr.DocumentList) []string {
	seen := map[string]bool{}
	for _, d := range docs {
		for k, v := range d {
			if _, isList := v.([]any); isList {
				continue
			}
			seen[k] = true
		}
	}

	columns := make([]string, 0, len(seen))
	for k := range seen {
		if k != "name" {
			columns = append(columns, k)
		}
	}
	slices.Sort(columns)

	if seen["name"] {
		columns = append([]string{"name"}, columns...)
	}
	return columns
}

// FormatValue renders a field value as a single line of text
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.ReplaceAll(t, "\n", " ")
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any, []any:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	default:
		return fmt.Sprint(t)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
