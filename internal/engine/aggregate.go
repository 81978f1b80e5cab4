package engine

import (
	"math"

	"paylens-backend/internal/dataset"
	"paylens-backend/internal/metadata"
)

// Enrich widens the table with the computed attribute set for the entity's
// grouping column: numeric aggregates over amount plus the entity's
// declarative unique-dimension counts, left-joined back onto every row
// sharing the grouping key. Row count is preserved; rows with a null
// grouping key keep null aggregates. The input table is not mutated.
func Enrich(t *dataset.Table, entity *metadata.Entity) *dataset.Table {
	groups := groupRows(t, entity.IDColumn)

	stats := make(map[string]map[string]any, len(groups))
	for key, rowIdx := range groups {
		stats[key] = groupAggregates(t, rowIdx, entity)
	}

	extra := enrichedColumns(t, entity)

	rows := make([]map[string]any, t.RowCount())
	for i, row := range t.Rows {
		out := make(map[string]any, len(row)+len(extra))
		for k, v := range row {
			out[k] = v
		}
		if key, ok := groupKey(t, i, entity.IDColumn); ok {
			for k, v := range stats[key] {
				out[k] = v
			}
		}
		rows[i] = out
	}

	return t.WithColumns(extra, rows)
}

// groupRows buckets row indices by the grouping column's value. Rows with
// a null grouping key are excluded.
func groupRows(t *dataset.Table, idCol string) map[string][]int {
	groups := make(map[string][]int)
	for i := range t.Rows {
		if key, ok := groupKey(t, i, idCol); ok {
			groups[key] = append(groups[key], i)
		}
	}
	return groups
}

func groupKey(t *dataset.Table, row int, idCol string) (string, bool) {
	v, ok := t.Value(row, idCol)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func groupAggregates(t *dataset.Table, rowIdx []int, entity *metadata.Entity) map[string]any {
	out := make(map[string]any, 8)

	// total_transactions counts group rows, so the totals across all groups
	// always sum to the table's row count.
	out[metadata.ColTotalTransactions] = float64(len(rowIdx))

	var amounts []float64
	for _, i := range rowIdx {
		if v, ok := t.Value(i, metadata.ColAmount); ok {
			if f, ok := v.(float64); ok && !math.IsNaN(f) {
				amounts = append(amounts, f)
			}
		}
	}
	if len(amounts) > 0 {
		sum, min, max := amounts[0], amounts[0], amounts[0]
		for _, f := range amounts[1:] {
			sum += f
			if f < min {
				min = f
			}
			if f > max {
				max = f
			}
		}
		mean := sum / float64(len(amounts))
		out[metadata.ColAvgAmount] = mean
		out[metadata.ColSumAmount] = sum
		out[metadata.ColMinAmount] = min
		out[metadata.ColMaxAmount] = max
		out[metadata.ColStdAmount] = sampleStddev(amounts, mean)
	}

	for _, uc := range entity.UniqueCounts {
		if uc.Source == entity.IDColumn || !t.HasColumn(uc.Source) {
			continue
		}
		seen := make(map[any]struct{})
		for _, i := range rowIdx {
			if v, ok := t.Value(i, uc.Source); ok {
				seen[v] = struct{}{}
			}
		}
		out[uc.Output] = float64(len(seen))
	}

	return out
}

// sampleStddev uses the N-1 denominator; a singleton group yields NaN,
// which the filter evaluator treats as null.
func sampleStddev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	var ss float64
	for _, f := range values {
		d := f - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

func enrichedColumns(t *dataset.Table, entity *metadata.Entity) []dataset.Column {
	var cols []dataset.Column
	for _, name := range entity.AggregateColumns() {
		if t.HasColumn(name) {
			continue
		}
		if isUniqueCountOutput(entity, name) && !uniqueCountApplies(t, entity, name) {
			continue
		}
		cols = append(cols, dataset.Column{Name: name, Kind: dataset.KindFloat})
	}
	return cols
}

func isUniqueCountOutput(entity *metadata.Entity, name string) bool {
	for _, uc := range entity.UniqueCounts {
		if uc.Output == name {
			return true
		}
	}
	return false
}

func uniqueCountApplies(t *dataset.Table, entity *metadata.Entity, output string) bool {
	for _, uc := range entity.UniqueCounts {
		if uc.Output == output {
			return uc.Source != entity.IDColumn && t.HasColumn(uc.Source)
		}
	}
	return false
}
