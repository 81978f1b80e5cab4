package engine

import (
	"fmt"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"paylens-backend/internal/dataset"
	"paylens-backend/internal/metadata"
)

// Segmenter buckets entities into high/mid/low value bands. The band
// predicates are boolean expressions over {total} compiled once at
// construction, so the thresholds live in configuration rather than code.
type Segmenter struct {
	high *vm.Program
	mid  *vm.Program
}

func NewSegmenter(highExpr, midExpr string) (*Segmenter, error) {
	high, err := expr.Compile(highExpr, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile high band %q: %w", highExpr, err)
	}
	mid, err := expr.Compile(midExpr, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile mid band %q: %w", midExpr, err)
	}
	return &Segmenter{high: high, mid: mid}, nil
}

// Segment sums amounts per idCol and assigns each entity to the first band
// whose predicate matches: high, then mid, then low.
func (s *Segmenter) Segment(t *dataset.Table, idCol, metricPrefix, suffix string) TableData {
	groups := groupRows(t, idCol)

	type entityTotal struct {
		id    string
		total float64
	}
	totals := make([]entityTotal, 0, len(groups))
	for id, rowIdx := range groups {
		var sum float64
		for _, i := range rowIdx {
			if v, ok := t.Value(i, metadata.ColAmount); ok {
				if f, ok := v.(float64); ok {
					sum += f
				}
			}
		}
		totals = append(totals, entityTotal{id: id, total: sum})
	}
	sort.Slice(totals, func(i, j int) bool {
		return totals[i].total > totals[j].total
	})

	high := make([]map[string]any, 0)
	mid := make([]map[string]any, 0)
	low := make([]map[string]any, 0)
	for _, et := range totals {
		row := map[string]any{idCol: et.id, "amount": round2(et.total)}
		env := map[string]any{"total": et.total}
		switch {
		case s.matches(s.high, env):
			high = append(high, row)
		case s.matches(s.mid, env):
			mid = append(mid, row)
		default:
			low = append(low, row)
		}
	}

	return TableData{
		Metric: metricPrefix + suffix,
		Data: map[string]any{
			"high_value": high,
			"mid_value":  mid,
			"low_value":  low,
		},
	}
}

func (s *Segmenter) matches(prog *vm.Program, env map[string]any) bool {
	out, err := expr.Run(prog, env)
	if err != nil {
		return false
	}
	b, _ := out.(bool)
	return b
}
