// Package dataset parses uploaded employee CSV files and computes the exploratory
// summaries shown on the dashboard.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Column names the charts depend on.
const (
	ColumnAttrition     = "Attrition"
	ColumnMonthlyIncome = "MonthlyIncome"
	ColumnJobRole       = "JobRole"
)

var (
	ErrEmpty               = errors.New("dataset: file is empty")
	ErrNoRows              = errors.New("dataset: file has a header but no rows")
	ErrUnsupportedEncoding = errors.New("dataset: unsupported text encoding")
)

// MissingColumnError is returned when a summary needs a column the upload lacks.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("dataset: column %q not found", e.Column)
}

// ColumnTypeError is returned when a column expected to be numeric holds text.
type ColumnTypeError struct {
	Column string
	Row    int
	Value  string
}

func (e *ColumnTypeError) Error() string {
	return fmt.Sprintf("dataset: column %q row %d: %q is not a number", e.Column, e.Row, e.Value)
}

// Dataset is an uploaded table. Cells are kept as text; summaries parse them on demand.
type Dataset struct {
	ID         string     `json:"id"`
	Filename   string     `json:"filename"`
	UploadedAt time.Time  `json:"uploaded_at"`
	Columns    []string   `json:"columns"`
	Rows       [][]string `json:"-"`

	index map[string]int
}

// New builds a dataset from a header and rows, mangling duplicate headers the way
// pandas does ("Age", "Age.1").
func New(columns []string, rows [][]string) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, ErrEmpty
	}
	ds := &Dataset{
		Columns: mangleDuplicates(columns),
		Rows:    rows,
	}
	ds.index = make(map[string]int, len(ds.Columns))
	for i, name := range ds.Columns {
		ds.index[name] = i
	}
	for i, row := range rows {
		if len(row) != len(ds.Columns) {
			return nil, fmt.Errorf("dataset: row %d has %d fields, want %d", i+1, len(row), len(ds.Columns))
		}
	}
	return ds, nil
}

// Parse reads a CSV with a header row. charset selects the text encoding; empty means
// UTF-8 with an optional byte order mark.
func Parse(r io.Reader, charset string) (*Dataset, error) {
	decoded, err := decode(r, charset)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(decoded)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("dataset: read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: %w", err)
		}
		rows = append(rows, record)
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return New(header, rows)
}

func decode(r io.Reader, charset string) (io.Reader, error) {
	var enc encoding.Encoding
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8":
		return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())), nil
	case "utf-16", "utf16":
		enc = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)
	case "gbk", "gb2312":
		enc = simplifiedchinese.GBK
	case "gb18030":
		enc = simplifiedchinese.GB18030
	case "latin1", "iso-8859-1":
		enc = charmap.ISO8859_1
	case "windows-1252", "cp1252":
		enc = charmap.Windows1252
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, charset)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

func mangleDuplicates(columns []string) []string {
	out := make([]string, len(columns))
	seen := make(map[string]int, len(columns))
	taken := make(map[string]bool, len(columns))
	for _, name := range columns {
		taken[name] = true
	}
	for i, name := range columns {
		count := seen[name]
		seen[name] = count + 1
		if count == 0 {
			out[i] = name
			continue
		}
		candidate := fmt.Sprintf("%s.%d", name, count)
		for taken[candidate] {
			count++
			candidate = fmt.Sprintf("%s.%d", name, count)
		}
		seen[name] = count + 1
		taken[candidate] = true
		out[i] = candidate
	}
	return out
}

// Len returns the number of data rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// HasColumn reports whether the header names column.
func (d *Dataset) HasColumn(column string) bool {
	_, ok := d.index[column]
	return ok
}

// Column returns every cell of a column.
func (d *Dataset) Column(column string) ([]string, error) {
	idx, ok := d.index[column]
	if !ok {
		return nil, &MissingColumnError{Column: column}
	}
	values := make([]string, len(d.Rows))
	for i, row := range d.Rows {
		values[i] = row[idx]
	}
	return values, nil
}
