// Command pipeline tags a small demo table with a month number, prints its
// head and writes it to a local Parquet file.
//
//	pipeline [-out file.parquet] <month>
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"taxietl/internal/parser/parquet"
	"taxietl/internal/table"
)

func main() {
	fs, out := newFlagSet()
	_ = fs.Parse(os.Args[1:])

	if err := run(fs.Args(), *out, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newFlagSet() (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet("pipeline", flag.ExitOnError)
	out := fs.String("out", "test.parquet", "parquet file to write")
	return fs, out
}

func run(args []string, outPath string, stdout io.Writer) error {
	fmt.Fprintf(stdout, "arguments: %v\n", args)
	if len(args) != 1 {
		return fmt.Errorf("usage: pipeline [-out file.parquet] <month>")
	}
	month, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("month %q is not an integer", args[0])
	}

	t, err := tagMonth(demoTable(), month)
	if err != nil {
		return err
	}
	if err := table.Fprint(stdout, t.Head(5)); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := parquet.WriteTable(f, t); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "hello pipeline, month: %d\n", month)
	return nil
}

func demoTable() *table.Table {
	a := table.NewSeries("A", table.KindInt64)
	b := table.NewSeries("B", table.KindInt64)
	for _, v := range [][2]int64{{1, 3}, {2, 4}} {
		a.AppendInt64(v[0])
		b.AppendInt64(v[1])
	}
	return table.MustNew(a, b)
}

// tagMonth adds a constant month column to every row of t.
func tagMonth(t *table.Table, month int) (*table.Table, error) {
	m := table.NewSeries("month", table.KindInt64)
	for i := 0; i < t.NumRows(); i++ {
		m.AppendInt64(int64(month))
	}
	return t.With(m)
}
