package engine

import (
	"paylens-backend/internal/dataset"
	"paylens-backend/internal/metadata"
)

// FilterEntities runs the structured-filter pipeline: enrich the table with
// the entity's computed attributes, evaluate the expression to a mask, then
// project the surviving rows onto the entity's attribute columns with one
// row per distinct entity id (first occurrence wins in table row order).
//
// Enrichment always runs, whether or not the expression references
// aggregate columns; the enriched snapshot is per-request and discarded
// with the response. An empty selection is a successful empty list.
func FilterEntities(t *dataset.Table, expr *Expr, entity *metadata.Entity) ([]map[string]any, error) {
	enriched := Enrich(t, entity)

	mask, err := Evaluate(enriched, expr)
	if err != nil {
		return nil, err
	}
	selected := enriched.Select(mask)

	// Unknown projection columns are silently dropped, matching the
	// documented contract.
	var available []string
	for _, col := range entity.ProjectionColumns {
		if selected.HasColumn(col) {
			available = append(available, col)
		}
	}

	results := make([]map[string]any, 0)
	seen := make(map[string]struct{})
	for i := range selected.Rows {
		key, ok := groupKey(selected, i, entity.IDColumn)
		if !ok {
			continue // no entity id to report
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		row := make(map[string]any, len(available))
		for _, col := range available {
			if v, ok := selected.Value(i, col); ok && !isNaN(v) {
				row[col] = v
			} else {
				row[col] = nil
			}
		}
		results = append(results, row)
	}

	return results, nil
}
