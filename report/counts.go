// Package report summarises the metadata and the trained models: value
// counts, bar charts and a grid of sample images per class.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/dermnet/dataset"
	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// Columns that can be counted.
const (
	ColumnDx           = "dx"
	ColumnDxType       = "dx_type"
	ColumnSex          = "sex"
	ColumnLocalization = "localization"
)

// DistributionColumns are the columns charted by WriteDistributions.
var DistributionColumns = []string{ColumnDx, ColumnSex, ColumnLocalization}

// Count is the number of records sharing one column value.
type Count struct {
	Value string
	N     int
}

// ValueCounts counts the distinct values of column, most frequent first.
// Ties are ordered by value. Empty values are counted as "unknown".
func ValueCounts(records []dataset.Record, column string) ([]Count, error) {
	get, err := columnGetter(column)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]int)
	for _, r := range records {
		v := strings.TrimSpace(get(r))
		if v == "" {
			v = "unknown"
		}
		seen[v]++
	}
	out := make([]Count, 0, len(seen))
	for v, n := range seen {
		out = append(out, Count{Value: v, N: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}

func columnGetter(column string) (func(dataset.Record) string, error) {
	switch column {
	case ColumnDx:
		return func(r dataset.Record) string { return r.Dx }, nil
	case ColumnDxType:
		return func(r dataset.Record) string { return r.DxType }, nil
	case ColumnSex:
		return func(r dataset.Record) string { return r.Sex }, nil
	case ColumnLocalization:
		return func(r dataset.Record) string { return r.Localization }, nil
	}
	return nil, errors.NewValidationError("column", "cannot count column", column)
}

// FormatCounts renders counts one per line, like a printed value count.
func FormatCounts(column string, counts []Count) string {
	width := len(column)
	for _, c := range counts {
		width = max(width, len(c.Value))
	}
	var b strings.Builder
	for _, c := range counts {
		fmt.Fprintf(&b, "%-*s %6d\n", width, c.Value, c.N)
	}
	return b.String()
}

// AgeStats is the distribution of the parseable ages in the metadata.
type AgeStats struct {
	Count   int
	Missing int
	Mean    float64
	StdDev  float64
}

// Ages summarises the age column. Blank or non-numeric ages count as missing.
func Ages(records []dataset.Record) AgeStats {
	var (
		ages []float64
		s    AgeStats
	)
	for _, r := range records {
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Age), 64)
		if err != nil {
			s.Missing++
			continue
		}
		ages = append(ages, v)
	}
	s.Count = len(ages)
	switch len(ages) {
	case 0:
	case 1:
		s.Mean = ages[0]
	default:
		s.Mean, s.StdDev = stat.MeanStdDev(ages, nil)
	}
	return s
}
