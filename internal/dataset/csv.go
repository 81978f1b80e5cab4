package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"paylens-backend/internal/metadata"
)

// RequiredColumns must be present in every uploaded CSV header.
var RequiredColumns = []string{
	metadata.ColTransactionID,
	metadata.ColCustomerID,
	metadata.ColMerchantID,
	metadata.ColTerminalID,
	metadata.ColAmount,
	metadata.ColDate,
	metadata.ColChannel,
}

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// ParseCSV reads a transaction CSV into a typed Table. The amount column is
// parsed as float64 and the date column as time.Time; everything else stays
// a string. Empty cells become null.
func ParseCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	if missing := missingColumns(header); len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	cols := make([]Column, len(header))
	for i, name := range header {
		cols[i] = Column{Name: name, Kind: columnKind(name)}
	}

	var rows []map[string]any
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		line++

		row := make(map[string]any, len(header))
		for i, raw := range record {
			if i >= len(header) {
				break
			}
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue // null cell
			}
			v, err := parseCell(cols[i], raw)
			if err != nil {
				return nil, fmt.Errorf("row %d, column %s: %w", line, cols[i].Name, err)
			}
			row[cols[i].Name] = v
		}
		rows = append(rows, row)
	}

	return NewTable(cols, rows), nil
}

func missingColumns(header []string) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for _, req := range RequiredColumns {
		if !present[req] {
			missing = append(missing, req)
		}
	}
	return missing
}

func columnKind(name string) Kind {
	switch name {
	case metadata.ColAmount:
		return KindFloat
	case metadata.ColDate:
		return KindTime
	default:
		return KindString
	}
}

func parseCell(col Column, raw string) (any, error) {
	switch col.Kind {
	case KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", raw)
		}
		return f, nil
	case KindTime:
		return parseDate(raw)
	default:
		return raw, nil
	}
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}
