// Package dashboard serves frequency charts and a preview over a scraped CSV file.
package dashboard

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

var (
	ErrUnknownColumn = errors.New("unknown column")
	ErrEmptyDataset  = errors.New("dataset has no header")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Dataset is a CSV file held in memory. Every row has exactly len(Columns) cells.
type Dataset struct {
	Columns []string
	Rows    [][]string
}

// ValueCount is how often a value occurs in a column. Share is its fraction of the returned values' total.
type ValueCount struct {
	Value string  `json:"value"`
	Count int     `json:"count"`
	Share float64 `json:"share"`
}

func LoadCSV(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ds, err := ReadCSV(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ds, nil
}

// ReadCSV parses a header row followed by data rows. A leading byte order mark is ignored, short rows are
// padded and long rows truncated to the header width.
func ReadCSV(r io.Reader) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptyDataset
	}

	ds := &Dataset{Columns: records[0], Rows: make([][]string, 0, len(records)-1)}
	width := len(ds.Columns)
	for _, rec := range records[1:] {
		row := make([]string, width)
		copy(row, rec)
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

func (d *Dataset) columnIndex(column string) (int, error) {
	for i, c := range d.Columns {
		if c == column {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
}

// TopValues returns the n most frequent non-empty values of column, most frequent first. Ties keep the
// order in which the values first appear.
func (d *Dataset) TopValues(column string, n int) ([]ValueCount, error) {
	idx, err := d.columnIndex(column)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	var order []string
	for _, row := range d.Rows {
		v := strings.TrimSpace(row[idx])
		if v == "" {
			continue
		}
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}

	top := make([]ValueCount, 0, len(order))
	for _, v := range order {
		top = append(top, ValueCount{Value: v, Count: counts[v]})
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].Count > top[j].Count })
	if n > 0 && len(top) > n {
		top = top[:n]
	}

	total := 0
	for _, vc := range top {
		total += vc.Count
	}
	for i := range top {
		top[i].Share = float64(top[i].Count) / float64(total)
	}
	return top, nil
}

// Preview returns up to n leading rows.
func (d *Dataset) Preview(n int) [][]string {
	if n < 0 || n > len(d.Rows) {
		n = len(d.Rows)
	}
	return d.Rows[:n]
}
