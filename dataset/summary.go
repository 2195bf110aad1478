package dataset

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// ColumnSummary holds descriptive statistics for one numeric column.
type ColumnSummary struct {
	Column string   `json:"column"`
	Count  int      `json:"count"`
	Mean   float64  `json:"mean"`
	Std    *float64 `json:"std"` // nil below two values or on overflow
	Min    float64  `json:"min"`
	P25    float64  `json:"25%"`
	P50    float64  `json:"50%"`
	P75    float64  `json:"75%"`
	Max    float64  `json:"max"`
}

// Head returns the first n rows keyed by column. n <= 0 means 5, the preview default.
func (d *Dataset) Head(n int) []map[string]string {
	if n <= 0 {
		n = 5
	}
	if n > len(d.Rows) {
		n = len(d.Rows)
	}
	out := make([]map[string]string, n)
	for i := 0; i < n; i++ {
		record := make(map[string]string, len(d.Columns))
		for j, column := range d.Columns {
			record[column] = d.Rows[i][j]
		}
		out[i] = record
	}
	return out
}

// Describe summarizes every numeric column in header order. A column is numeric when
// each of its non-empty cells parses as a number; empty cells are skipped.
func (d *Dataset) Describe() []ColumnSummary {
	var out []ColumnSummary
	for _, column := range d.Columns {
		values, ok := d.numeric(column)
		if !ok {
			continue
		}
		out = append(out, summarize(column, values))
	}
	return out
}

func (d *Dataset) numeric(column string) ([]float64, bool) {
	idx := d.index[column]
	values := make([]float64, 0, len(d.Rows))
	for _, row := range d.Rows {
		cell := strings.TrimSpace(row[idx])
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		values = append(values, v)
	}
	return values, len(values) > 0
}

func summarize(column string, values []float64) ColumnSummary {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	return ColumnSummary{
		Column: column,
		Count:  len(values),
		Mean:   Mean(values),
		Std:    finiteStd(values),
		Min:    sorted[0],
		P25:    quantile(sorted, 0.25),
		P50:    quantile(sorted, 0.50),
		P75:    quantile(sorted, 0.75),
		Max:    sorted[len(sorted)-1],
	}
}

// Mean returns the arithmetic mean, or 0 for no values. Values are scaled by the
// largest magnitude first, so the sum cannot overflow for finite inputs.
func Mean(values []float64) float64 {
	scale := maxAbs(values)
	if scale == 0 {
		return 0
	}
	return scaledMean(values, scale) * scale
}

// StdDev returns the sample standard deviation (n-1). It is NaN below two values and
// +Inf when the deviation itself exceeds the float64 range.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	scale := maxAbs(values)
	if scale == 0 {
		return 0
	}
	mean := scaledMean(values, scale)
	sum := 0.0
	for _, v := range values {
		d := v/scale - mean
		sum += d * d
	}
	return math.Sqrt(sum/float64(len(values)-1)) * scale
}

func maxAbs(values []float64) float64 {
	m := 0.0
	for _, v := range values {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

func scaledMean(values []float64, scale float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v / scale
	}
	return sum / float64(len(values))
}

// finiteStd returns StdDev as a pointer, nil when it is undefined or out of range.
func finiteStd(values []float64) *float64 {
	s := StdDev(values)
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return nil
	}
	return &s
}

// quantile interpolates linearly between closest ranks of sorted values.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
