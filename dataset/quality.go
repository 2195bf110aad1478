package dataset

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"attrition/ml"
)

// Issue severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

const maxReportedIssues = 100

// QualityIssue is one finding about an uploaded dataset. Row is the 1-based line in
// the file (the header is line 1); 0 means the issue concerns a whole column.
type QualityIssue struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Column   string `json:"column,omitempty"`
	Row      int    `json:"row,omitempty"`
	Message  string `json:"message"`
}

// QualityRule inspects a dataset and reports what it finds.
type QualityRule interface {
	Name() string
	Check(ds *Dataset) []QualityIssue
}

// QualityReport lists up to 100 issues; Counts covers all of them.
type QualityReport struct {
	Rows      int            `json:"rows"`
	Counts    map[string]int `json:"counts"`
	Issues    []QualityIssue `json:"issues"`
	Truncated bool           `json:"truncated"`
}

// QualityChecker runs a fixed set of rules.
type QualityChecker struct {
	rules []QualityRule
}

// NewQualityChecker returns a checker with the default rules: missing values, duplicate
// rows and values outside the prediction form's contract.
func NewQualityChecker(form ml.Form) *QualityChecker {
	checker := &QualityChecker{}
	checker.AddRule(MissingValueRule{})
	checker.AddRule(DuplicateRowRule{})
	checker.AddRule(FormContractRule{Form: form})
	return checker
}

func (c *QualityChecker) AddRule(rule QualityRule) {
	c.rules = append(c.rules, rule)
}

// Check applies every rule in order.
func (c *QualityChecker) Check(ds *Dataset) QualityReport {
	report := QualityReport{
		Rows:   ds.Len(),
		Counts: make(map[string]int, len(c.rules)),
		Issues: []QualityIssue{},
	}
	for _, rule := range c.rules {
		issues := rule.Check(ds)
		report.Counts[rule.Name()] += len(issues)
		for _, issue := range issues {
			if len(report.Issues) == maxReportedIssues {
				report.Truncated = true
				break
			}
			report.Issues = append(report.Issues, issue)
		}
	}
	return report
}

// MissingValueRule reports columns with empty cells.
type MissingValueRule struct{}

func (MissingValueRule) Name() string { return "missing_value" }

func (r MissingValueRule) Check(ds *Dataset) []QualityIssue {
	var issues []QualityIssue
	for j, column := range ds.Columns {
		missing := 0
		for _, row := range ds.Rows {
			if strings.TrimSpace(row[j]) == "" {
				missing++
			}
		}
		if missing > 0 {
			issues = append(issues, QualityIssue{
				Rule:     r.Name(),
				Severity: SeverityMedium,
				Column:   column,
				Message:  fmt.Sprintf("%d of %d values are empty", missing, ds.Len()),
			})
		}
	}
	return issues
}

// DuplicateRowRule reports rows identical to an earlier one.
type DuplicateRowRule struct{}

func (DuplicateRowRule) Name() string { return "duplicate_row" }

func (r DuplicateRowRule) Check(ds *Dataset) []QualityIssue {
	var issues []QualityIssue
	seen := make(map[string]int, ds.Len())
	for i, row := range ds.Rows {
		key := strings.Join(row, "\x1f")
		if first, ok := seen[key]; ok {
			issues = append(issues, QualityIssue{
				Rule:     r.Name(),
				Severity: SeverityLow,
				Row:      i + 2,
				Message:  fmt.Sprintf("duplicate of line %d", first+2),
			})
			continue
		}
		seen[key] = i
	}
	return issues
}

// FormContractRule checks columns named like form fields against the field's range,
// options or vocabulary. Categories outside the vocabulary are medium severity since
// the model still scores them as all-zero indicators.
type FormContractRule struct {
	Form ml.Form
}

func (FormContractRule) Name() string { return "form_contract" }

func (r FormContractRule) Check(ds *Dataset) []QualityIssue {
	var issues []QualityIssue
	for _, field := range r.Form.Fields {
		idx, ok := ds.index[field.Name]
		if !ok {
			continue
		}
		for i, row := range ds.Rows {
			cell := strings.TrimSpace(row[idx])
			if cell == "" {
				continue
			}
			severity, msg := checkCell(field, cell)
			if msg == "" {
				continue
			}
			issues = append(issues, QualityIssue{
				Rule:     r.Name(),
				Severity: severity,
				Column:   field.Name,
				Row:      i + 2,
				Message:  msg,
			})
		}
	}
	return issues
}

func checkCell(field ml.Field, cell string) (string, string) {
	if field.Kind == ml.FieldCategory {
		if !slices.Contains(field.Categories, cell) {
			return SeverityMedium, fmt.Sprintf("%q is not a known category", cell)
		}
		return "", ""
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return SeverityHigh, fmt.Sprintf("%q is not a number", cell)
	}
	switch field.Kind {
	case ml.FieldNumber:
		if v < *field.Min || v > *field.Max {
			return SeverityHigh, fmt.Sprintf("%g is outside %g..%g", v, *field.Min, *field.Max)
		}
	case ml.FieldOrdinal:
		if !slices.Contains(field.Options, v) {
			return SeverityHigh, fmt.Sprintf("%g is not one of %v", v, field.Options)
		}
	}
	return "", ""
}
