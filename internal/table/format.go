package table

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
)

// Fprint writes t as an aligned text grid with a leading row index column,
// the way a dataframe prints its head. Nulls render as <nil>.
func Fprint(w io.Writer, t *Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\t"+strings.Join(t.Names(), "\t")+"\t")
	cells := make([]string, t.NumCols())
	for r := 0; r < t.NumRows(); r++ {
		for c := range cells {
			s := t.ColumnAt(c)
			if s.IsNull(r) {
				cells[c] = "<nil>"
				continue
			}
			cells[c] = formatCell(s, r)
		}
		fmt.Fprintln(tw, strconv.Itoa(r)+"\t"+strings.Join(cells, "\t")+"\t")
	}
	return tw.Flush()
}
