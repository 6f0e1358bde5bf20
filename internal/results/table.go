package results

import "fmt"

// Table is an ordered-column relation. Cells are heterogeneous; nil marks
// a value that does not apply to the row.
type Table struct {
	cols []string
	rows [][]any
}

func NewTable(cols ...string) *Table {
	c := make([]string, len(cols))
	copy(c, cols)
	return &Table{cols: c}
}

func (t *Table) Columns() []string {
	out := make([]string, len(t.cols))
	copy(out, t.cols)
	return out
}

func (t *Table) Len() int {
	return len(t.rows)
}

// AppendRow adds one row. The cell count must match the column count;
// anything else is caller misuse and panics.
func (t *Table) AppendRow(cells ...any) {
	if len(cells) != len(t.cols) {
		panic(fmt.Sprintf("results: row has %d cells, table has %d columns", len(cells), len(t.cols)))
	}
	row := make([]any, len(cells))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

func (t *Table) Row(i int) []any {
	row := make([]any, len(t.rows[i]))
	copy(row, t.rows[i])
	return row
}

// ColumnIndex finds a column by name.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.cols {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// Value reads one cell by row index and column name.
func (t *Table) Value(row int, col string) (any, bool) {
	i, ok := t.ColumnIndex(col)
	if !ok || row < 0 || row >= len(t.rows) {
		return nil, false
	}
	return t.rows[row][i], true
}
