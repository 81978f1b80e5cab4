package dataset

// Kind is the logical type of a column's cells.
type Kind int

const (
	KindString Kind = iota
	KindFloat
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindTime:
		return "datetime"
	default:
		return "string"
	}
}

type Column struct {
	Name string
	Kind Kind
}

// Table is an in-memory tabular snapshot. Rows are maps keyed by column
// name; a missing key or nil value is a null cell. Cell values are string,
// float64 or time.Time according to the column kind.
//
// Engine code treats a Table as read-only: operations that add columns or
// drop rows return a new Table.
type Table struct {
	Columns []Column
	Rows    []map[string]any

	index map[string]int
}

func NewTable(cols []Column, rows []map[string]any) *Table {
	t := &Table{Columns: cols, Rows: rows}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		t.index[c.Name] = i
	}
}

func (t *Table) RowCount() int {
	return len(t.Rows)
}

func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the column descriptor for name.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.Columns[i], true
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Value returns the cell at (row, column) and whether it is non-null.
func (t *Table) Value(row int, col string) (any, bool) {
	v, ok := t.Rows[row][col]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Select returns a new table containing the rows where mask is true.
// Row maps are shared with the receiver, not copied.
func (t *Table) Select(mask []bool) *Table {
	var rows []map[string]any
	for i, keep := range mask {
		if keep {
			rows = append(rows, t.Rows[i])
		}
	}
	return NewTable(t.Columns, rows)
}

// WithColumns returns a new table with extra column descriptors appended.
// The caller supplies the rows (typically copies carrying the new cells).
func (t *Table) WithColumns(extra []Column, rows []map[string]any) *Table {
	cols := make([]Column, 0, len(t.Columns)+len(extra))
	cols = append(cols, t.Columns...)
	cols = append(cols, extra...)
	return NewTable(cols, rows)
}
