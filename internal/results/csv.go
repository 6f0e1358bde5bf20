package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultNA is the sentinel written for cells that do not apply.
const DefaultNA = "NA"

// WriteCSV renders t as delimited text: a header row, then one line per
// row. nil cells become na; cells with a display name (cores, flows,
// groups, coordinates) render by that name.
func WriteCSV(w io.Writer, t *Table, na string) error {
	if na == "" {
		na = DefaultNA
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns()); err != nil {
		return err
	}
	record := make([]string, len(t.cols))
	for _, row := range t.rows {
		for i, cell := range row {
			record[i] = renderCell(cell, na)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVString is WriteCSV into a string, for logs and small tables.
func CSVString(t *Table, na string) string {
	var sb strings.Builder
	// strings.Builder never fails to write.
	_ = WriteCSV(&sb, t, na)
	return sb.String()
}

func renderCell(cell any, na string) string {
	switch v := cell.(type) {
	case nil:
		return na
	case fmt.Stringer:
		return v.String()
	case string:
		return v
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
