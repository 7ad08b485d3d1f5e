package zymmr

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/s0up4200/zymmr/filter"
)

// Frappe date and datetime layouts
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05.999999"
)

// Document is one record of a DocType. Its fields are defined by the server,
// so values keep the types encoding/json produced: string, float64, bool,
// nil, []any and map[string]any.
type Document map[string]any

// Name returns the document's unique identifier
func (d Document) Name() string {
	return d.String("name")
}

// String returns a field as text. Missing and null fields yield "".
func (d Document) String(field string) string {
	v, ok := d[field]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// Int returns a numeric field as an integer
func (d Document) Int(field string) (int64, bool) {
	switch t := d[field].(type) {
	case float64:
		return int64(t), true
	case int:
		return int64(t), true
	case int64:
		return t, true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Float returns a numeric field as a float
func (d Document) Float(field string) (float64, bool) {
	switch t := d[field].(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Bool returns a Check field. Frappe stores checks as 0/1.
func (d Document) Bool(field string) bool {
	switch t := d[field].(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		return t == "1" || strings.EqualFold(t, "true")
	default:
		return false
	}
}

// Date parses a Date or Datetime field
func (d Document) Date(field string) (time.Time, bool) {
	return parseDate(d.String(field))
}

// Fields returns the document's field names in sorted order
func (d Document) Fields() []string {
	return slices.Sorted(maps.Keys(d))
}

// Clone returns a shallow copy of the document
func (d Document) Clone() Document {
	return maps.Clone(d)
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{DateLayout, DateTimeLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DocumentList is a list of documents in server order.
type DocumentList []Document

// First returns the first document
func (l DocumentList) First() (Document, bool) {
	if len(l) == 0 {
		return nil, false
	}
	return l[0], true
}

// Last returns the last document
func (l DocumentList) Last() (Document, bool) {
	if len(l) == 0 {
		return nil, false
	}
	return l[len(l)-1], true
}

// Names returns the name of every document
func (l DocumentList) Names() []string {
	names := make([]string, len(l))
	for i, d := range l {
		names[i] = d.Name()
	}
	return names
}

// Filter keeps the documents whose fields equal all the given values.
// Numbers compare by value, so Filter(map[string]any{"story_point": 3})
// matches a decoded 3.0.
func (l DocumentList) Filter(conditions map[string]any) DocumentList {
	result := make(DocumentList, 0, len(l))
	for _, d := range l {
		match := true
		for field, want := range conditions {
			if !looseEqual(d[field], want) {
				match = false
				break
			}
		}
		if match {
			result = append(result, d)
		}
	}
	return result
}

// Where keeps the documents matching an expr filter expression, e.g.
// `status == "Open" and story_point >= 3`.
func (l DocumentList) Where(expression string) (DocumentList, error) {
	compiled, err := filter.CompileFilter(expression)
	if err != nil {
		return nil, err
	}

	result := make(DocumentList, 0, len(l))
	for _, d := range l {
		if compiled.Evaluate(filter.Record(d)) {
			result = append(result, d)
		}
	}
	return result, nil
}

// Records converts the list for use with the filter package
func (l DocumentList) Records() []filter.Record {
	records := make([]filter.Record, len(l))
	for i, d := range l {
		records[i] = filter.Record(d)
	}
	return records
}

// DocumentsFromRecords converts filter results back into documents
func DocumentsFromRecords(records []filter.Record) DocumentList {
	docs := make(DocumentList, len(records))
	for i, r := range records {
		docs[i] = Document(r)
	}
	return docs
}

func looseEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint64:
		return float64(t), true
	default:
		return 0, false
	}
}
