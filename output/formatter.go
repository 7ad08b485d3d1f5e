package output

import (
	"fmt"
	"strings"

	"github.com/s0up4200/zymmr/zymmr"
)

// FormatOptions controls what the console formatter prints per document
type FormatOptions struct {
	// Fields are printed under each document; empty prints every field
	Fields []string
	// ShowDetails prints fields at all; without it only the headline is shown
	ShowDetails bool
}

// ConsoleFormatter renders documents as a tree for console display
type ConsoleFormatter struct{}

// NewConsoleFormatter creates a new console formatter
func NewConsoleFormatter() *ConsoleFormatter {
	return &ConsoleFormatter{}
}

// FormatDocumentList formats a list of documents for console display
func (f *ConsoleFormatter) FormatDocumentList(docs zymmr.DocumentList, options FormatOptions) string {
	if len(docs) == 0 {
		return "No documents found"
	}

	var sb strings.Builder

	// Header
	sb.WriteString("\nDocument")
	if len(docs) != 1 {
		sb.WriteString("s")
	}
	fmt.Fprintf(&sb, " (%d):\n\n", len(docs))

	for i, doc := range docs {
		isLast := i == len(docs)-1
		f.formatDocument(&sb, doc, isLast, options)

		if !isLast {
			sb.WriteString("│\n")
		}
	}

	sb.WriteString("\n")
	return sb.String()
}

// FormatDocumentsToDelete formats documents for deletion confirmation
func (f *ConsoleFormatter) FormatDocumentsToDelete(doctype string, names []string) string {
	if len(names) == 0 {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n%s document", doctype)
	if len(names) != 1 {
		sb.WriteString("s")
	}
	fmt.Fprintf(&sb, " to be deleted (%d):\n\n", len(names))

	for i, name := range names {
		prefix := "├"
		if i == len(names)-1 {
			prefix = "╰"
		}
		fmt.Fprintf(&sb, "%s── %s\n", prefix, name)
	}

	sb.WriteString("\n")
	return sb.String()
}

// FormatBatchSummary formats the outcome of a batch operation
func (f *ConsoleFormatter) FormatBatchSummary(action string, summary zymmr.BatchSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %d of %d document(s)\n", action, summary.Succeeded(), len(summary.Results))

	failed := summary.Failed()
	for i, r := range failed {
		prefix := "├"
		if i == len(failed)-1 {
			prefix = "╰"
		}
		fmt.Fprintf(&sb, "%s── %s: %v\n", prefix, r.Name, r.Err)
	}

	return sb.String()
}

// formatDocument formats a single document entry
func (f *ConsoleFormatter) formatDocument(sb *strings.Builder, doc zymmr.Document, isLast bool, options FormatOptions) {
	prefix := "├"
	if isLast {
		prefix = "╰"
	}

	headline := doc.Name()
	if title := documentTitle(doc); title != "" && title != headline {
		headline += ": " + title
	}
	fmt.Fprintf(sb, "%s── %s\n", prefix, headline)

	if !options.ShowDetails {
		return
	}

	indent := "│   "
	if isLast {
		indent = "    "
	}

	fields := options.Fields
	if len(fields) == 0 {
		fields = doc.Fields()
	}
	for _, field := range fields {
		if field == "name" {
			continue
		}
		value := FormatValue(doc[field])
		if value == "" {
			continue
		}
		fmt.Fprintf(sb, "%s%s: %s\n", indent, field, value)
	}
}

// documentTitle picks the human-readable label of a document
func documentTitle(doc zymmr.Document) string {
	for _, field := range []string{"title", "full_name", "subject", "key"} {
		if v := doc.String(field); v != "" {
			return v
		}
	}
	return ""
}
