// Package export writes record lists to JSON or CSV files for hand-off
// to accounting and reporting tools.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/clinicware/clinic-sync/pkg/record"
)

// Format represents the export format type.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a user-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported format: %q (expected json or csv)", s)
	}
}

// Exporter serializes record lists. When WithTotals is set, sales and
// proforma exports carry the derived financial figures.
type Exporter struct {
	withTotals bool
}

// NewExporter creates an exporter. withTotals attaches derived totals to
// each exported record.
func NewExporter(withTotals bool) *Exporter {
	return &Exporter{withTotals: withTotals}
}

// ExportToJSON writes records as an indented JSON array to outputPath.
// The write is atomic: a temp file is written, checksummed and renamed
// into place so a crash never leaves a half-written export.
func (e *Exporter) ExportToJSON(records []record.Record, outputPath string) error {
	records = e.prepare(records)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	data = append(data, '\n')

	if err := SafeWrite(outputPath, data); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

// ExportToCSV writes records as CSV to outputPath. The header is the
// union of all record fields in sorted order, with id and name pinned
// first. Non-scalar values are JSON-encoded into their cell.
func (e *Exporter) ExportToCSV(records []record.Record, outputPath string) error {
	records = e.prepare(records)

	header := columnOrder(records)

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range records {
		row := make([]string, len(header))
		for i, field := range header {
			val, ok := r[field]
			if !ok || val == nil {
				continue
			}
			switch val.(type) {
			case string, float64, float32, int, int64, bool:
				row[i] = fmt.Sprintf("%v", val)
			default:
				cell, err := json.Marshal(val)
				if err != nil {
					return fmt.Errorf("failed to encode field %q: %w", field, err)
				}
				row[i] = string(cell)
			}
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}

	if err := SafeWrite(outputPath, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// prepare applies the totals option without mutating the caller's records.
func (e *Exporter) prepare(records []record.Record) []record.Record {
	if !e.withTotals {
		return records
	}
	out := make([]record.Record, len(records))
	for i, r := range records {
		out[i] = record.WithTotals(r)
	}
	return out
}

// columnOrder builds a stable CSV header: id and name first, then every
// other field seen in any record, sorted.
func columnOrder(records []record.Record) []string {
	seen := make(map[string]bool)
	for _, r := range records {
		for field := range r {
			seen[field] = true
		}
	}

	pinned := []string{"id", "name"}
	header := make([]string, 0, len(seen))
	for _, p := range pinned {
		if seen[p] {
			header = append(header, p)
			delete(seen, p)
		}
	}

	rest := make([]string, 0, len(seen))
	for field := range seen {
		rest = append(rest, field)
	}
	sort.Strings(rest)
	return append(header, rest...)
}
