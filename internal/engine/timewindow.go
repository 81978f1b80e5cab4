package engine

import (
	"fmt"
	"strings"
	"time"

	"paylens-backend/internal/dataset"
	"paylens-backend/internal/metadata"
)

// TimeWindow narrows a table to a date range and/or calendar components
// before any analytics or filtering runs. Zero fields are ignored.
type TimeWindow struct {
	Year      int
	Month     int
	Week      int // ISO week
	Day       int
	RangeDays int
	StartDate string
	EndDate   string
}

func (w TimeWindow) IsZero() bool {
	return w == TimeWindow{}
}

// Apply returns the rows whose date falls inside the window. Rows with a
// null date are dropped whenever any component is set.
func (w TimeWindow) Apply(t *dataset.Table) (*dataset.Table, error) {
	if w.IsZero() {
		return t, nil
	}

	var start, end time.Time
	switch {
	case w.StartDate != "" && w.EndDate != "":
		var err error
		if start, err = parseFilterDate(w.StartDate); err != nil {
			return nil, NewAppError("INVALID_DATE", 400, fmt.Sprintf("invalid start_date %q", w.StartDate))
		}
		if end, err = parseFilterDate(w.EndDate); err != nil {
			return nil, NewAppError("INVALID_DATE", 400, fmt.Sprintf("invalid end_date %q", w.EndDate))
		}
	case w.RangeDays > 0:
		end = time.Now().Truncate(24 * time.Hour)
		start = end.AddDate(0, 0, -w.RangeDays)
	}

	mask := make([]bool, t.RowCount())
	for i := range t.Rows {
		v, ok := t.Value(i, metadata.ColDate)
		if !ok {
			continue
		}
		ts, ok := v.(time.Time)
		if !ok {
			continue
		}
		if !start.IsZero() && ts.Before(start) {
			continue
		}
		if !end.IsZero() && ts.After(end.AddDate(0, 0, 1).Add(-time.Nanosecond)) {
			continue
		}
		if w.Year != 0 && ts.Year() != w.Year {
			continue
		}
		if w.Month != 0 && int(ts.Month()) != w.Month {
			continue
		}
		if w.Week != 0 {
			_, wk := ts.ISOWeek()
			if wk != w.Week {
				continue
			}
		}
		if w.Day != 0 && ts.Day() != w.Day {
			continue
		}
		mask[i] = true
	}
	return t.Select(mask), nil
}

// Suffix renders the window as a human-readable metric label suffix, e.g.
// " for 2021, Month 3".
func (w TimeWindow) Suffix() string {
	var parts []string
	if w.Year != 0 {
		parts = append(parts, fmt.Sprintf("%d", w.Year))
	}
	if w.Month != 0 {
		parts = append(parts, fmt.Sprintf("Month %d", w.Month))
	}
	if w.Week != 0 {
		parts = append(parts, fmt.Sprintf("Week %d", w.Week))
	}
	if w.Day != 0 {
		parts = append(parts, fmt.Sprintf("Day %d", w.Day))
	}
	if w.RangeDays != 0 {
		parts = append(parts, fmt.Sprintf("Last %d Days", w.RangeDays))
	}
	if w.StartDate != "" && w.EndDate != "" {
		parts = append(parts, fmt.Sprintf("%s to %s", w.StartDate, w.EndDate))
	}
	if len(parts) == 0 {
		return ""
	}
	return " for " + strings.Join(parts, ", ")
}
