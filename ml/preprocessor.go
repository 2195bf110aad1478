package ml

import (
	"fmt"
	"strings"
)

// FieldKind distinguishes how a form field is collected.
type FieldKind string

const (
	FieldNumber   FieldKind = "number"
	FieldOrdinal  FieldKind = "ordinal"
	FieldCategory FieldKind = "category"
)

// Field is one input of the prediction form.
type Field struct {
	Name       string    `json:"name"`
	Label      string    `json:"label"`
	Kind       FieldKind `json:"kind"`
	Min        *float64  `json:"min,omitempty"`
	Max        *float64  `json:"max,omitempty"`
	Options    []float64 `json:"options,omitempty"`
	Categories []string  `json:"categories,omitempty"`
	Default    any       `json:"default"`
}

// Form is the ordered set of prediction inputs.
type Form struct {
	Fields []Field `json:"fields"`
}

func number(name, label string, min, max, def float64) Field {
	return Field{Name: name, Label: label, Kind: FieldNumber, Min: &min, Max: &max, Default: def}
}

func ordinal(name, label string, options ...float64) Field {
	return Field{Name: name, Label: label, Kind: FieldOrdinal, Options: options, Default: options[0]}
}

func category(name, label string) Field {
	values := Vocabulary(name)
	return Field{Name: name, Label: label, Kind: FieldCategory, Categories: values, Default: values[0]}
}

// DefaultForm returns the prediction form with its ranges and defaults. Selects default
// to their first option.
func DefaultForm() Form {
	return Form{Fields: []Field{
		number("Age", "Age", 18, 65, 30),
		number("DailyRate", "Daily Rate", 100, 1500, 500),
		number("DistanceFromHome", "Distance From Home (km)", 1, 50, 10),
		ordinal("Education", "Education Level", 1, 2, 3, 4, 5),
		number("TrainingTimesLastYear", "Training Times Last Year", 0, 6, 2),
		ordinal("EnvironmentSatisfaction", "Environment Satisfaction", 1, 2, 3, 4),
		number("YearsAtCompany", "Years at Company", 0, 40, 5),
		number("HourlyRate", "Hourly Rate", 10, 100, 30),
		number("MonthlyIncome", "Monthly Income", 1000, 20000, 5000),
		number("NumCompaniesWorked", "Companies Worked", 0, 10, 3),
		number("PercentSalaryHike", "Salary Hike (%)", 5, 25, 15),
		ordinal("StockOptionLevel", "Stock Option Level", 0, 1, 2, 3),
		ordinal("WorkLifeBalance", "Work-Life Balance (1 = Poor, 4 = Excellent)", 1, 2, 3, 4),
		number("YearsInCurrentRole", "Years in Current Role", 0, 20, 4),
		number("YearsSinceLastPromotion", "Years Since Promotion", 0, 20, 2),
		category("BusinessTravel", "Business Travel"),
		category("Department", "Department"),
		category("Gender", "Gender"),
		category("OverTime", "OverTime"),
	}}
}

// Field looks a field up by name.
func (f Form) Field(name string) (Field, bool) {
	for _, field := range f.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// Defaults returns a RawInput holding every field's default.
func (f Form) Defaults() RawInput {
	return f.Fill(nil)
}

// Fill returns a copy of raw with defaults for absent or null fields.
func (f Form) Fill(raw RawInput) RawInput {
	out := make(RawInput, len(f.Fields)+len(raw))
	for key, value := range raw {
		out[key] = value
	}
	for _, field := range f.Fields {
		if value, ok := out[field.Name]; !ok || value == nil {
			out[field.Name] = field.Default
		}
	}
	return out
}

// FieldProblem describes one invalid field.
type FieldProblem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field that falls outside the form contract.
type ValidationError struct {
	Problems []FieldProblem `json:"problems"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.Field + ": " + p.Message
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Validate checks present fields against their ranges and options. A category label
// outside the vocabulary is accepted; Encode degrades it to zero indicators.
func (f Form) Validate(raw RawInput) error {
	var problems []FieldProblem
	for _, field := range f.Fields {
		value, ok := raw[field.Name]
		if !ok || value == nil {
			continue
		}
		if msg := field.check(value); msg != "" {
			problems = append(problems, FieldProblem{Field: field.Name, Message: msg})
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func (field Field) check(value any) string {
	switch field.Kind {
	case FieldCategory:
		if _, ok := value.(string); !ok {
			return "must be a text label"
		}
	case FieldNumber:
		n, ok := toFloat(value)
		if !ok {
			return "must be a number"
		}
		if n < *field.Min || n > *field.Max {
			return fmt.Sprintf("must be between %g and %g", *field.Min, *field.Max)
		}
	case FieldOrdinal:
		n, ok := toFloat(value)
		if !ok {
			return "must be a number"
		}
		for _, option := range field.Options {
			if n == option {
				return ""
			}
		}
		return fmt.Sprintf("must be one of %v", field.Options)
	}
	return ""
}
