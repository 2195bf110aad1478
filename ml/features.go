package ml

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// RawInput maps form field names to scalar values (numbers or category labels).
type RawInput map[string]any

// Categorical fields and their closed vocabularies, in the order the model was
// trained with. Indicator features are named "<Field>_<Value>".
var categoricalFields = []struct {
	Name   string
	Values []string
}{
	{Name: "BusinessTravel", Values: []string{"Non-Travel", "Travel_Frequently", "Travel_Rarely"}},
	{Name: "Department", Values: []string{"Human Resources", "Research & Development", "Sales"}},
	{Name: "Gender", Values: []string{"Female", "Male"}},
	{Name: "OverTime", Values: []string{"No", "Yes"}},
}

// Numeric and ordinal fields that pass through under their own name.
var numericFields = []string{
	"Age",
	"DailyRate",
	"DistanceFromHome",
	"Education",
	"TrainingTimesLastYear",
	"EnvironmentSatisfaction",
	"YearsAtCompany",
	"HourlyRate",
	"MonthlyIncome",
	"NumCompaniesWorked",
	"PercentSalaryHike",
	"StockOptionLevel",
	"WorkLifeBalance",
	"YearsInCurrentRole",
	"YearsSinceLastPromotion",
}

type indicatorEncoding struct {
	names   []string
	vectors map[string][]float64
}

// indicatorTable maps field -> category -> one-hot vector over the field's indicators.
var indicatorTable = buildIndicatorTable()

func buildIndicatorTable() map[string]indicatorEncoding {
	table := make(map[string]indicatorEncoding, len(categoricalFields))
	for _, field := range categoricalFields {
		enc := indicatorEncoding{
			names:   make([]string, len(field.Values)),
			vectors: make(map[string][]float64, len(field.Values)),
		}
		for i, value := range field.Values {
			enc.names[i] = IndicatorName(field.Name, value)
			vector := make([]float64, len(field.Values))
			vector[i] = 1
			enc.vectors[value] = vector
		}
		table[field.Name] = enc
	}
	return table
}

// IndicatorName returns the one-hot feature name for a category value.
func IndicatorName(field, value string) string {
	return field + "_" + value
}

// CategoricalFields returns the categorical field names.
func CategoricalFields() []string {
	names := make([]string, len(categoricalFields))
	for i, field := range categoricalFields {
		names[i] = field.Name
	}
	return names
}

// Vocabulary returns the known categories of a categorical field.
func Vocabulary(field string) []string {
	for _, f := range categoricalFields {
		if f.Name == field {
			return append([]string(nil), f.Values...)
		}
	}
	return nil
}

// IndicatorNames returns the indicator features produced for a categorical field.
func IndicatorNames(field string) []string {
	enc, ok := indicatorTable[field]
	if !ok {
		return nil
	}
	return append([]string(nil), enc.names...)
}

// NumericFields returns the pass-through field names.
func NumericFields() []string {
	return append([]string(nil), numericFields...)
}

// EncodingReport records where the encoded row departed from the raw input.
type EncodingReport struct {
	// ZeroFilled lists schema features no input produced.
	ZeroFilled []string `json:"zero_filled,omitempty"`
	// Dropped lists produced features absent from the schema.
	Dropped []string `json:"dropped,omitempty"`
	// UnknownCategories maps a categorical field to a value outside its vocabulary.
	UnknownCategories map[string]string `json:"unknown_categories,omitempty"`
	// MissingFields lists application fields absent from the raw input.
	MissingFields []string `json:"missing_fields,omitempty"`
	// InvalidNumbers lists numeric fields whose value could not be read as a number.
	InvalidNumbers []string `json:"invalid_numbers,omitempty"`
	// Ignored lists raw input keys that are not application fields.
	Ignored []string `json:"ignored,omitempty"`
	// Aliased maps produced features to the underscore schema spelling they were
	// written under.
	Aliased map[string]string `json:"aliased,omitempty"`
}

// Degraded reports whether encoding silently substituted zeros for any input.
func (r EncodingReport) Degraded() bool {
	return len(r.ZeroFilled) > 0 || len(r.UnknownCategories) > 0 || len(r.InvalidNumbers) > 0
}

// EncodedInput is a feature row aligned to a schema.
type EncodedInput struct {
	schema FeatureSchema
	values []float64
	Report EncodingReport
}

// Schema returns the schema the row is aligned to.
func (e EncodedInput) Schema() FeatureSchema {
	return e.schema
}

// Vector returns a copy of the values in schema order.
func (e EncodedInput) Vector() []float64 {
	return append([]float64(nil), e.values...)
}

// Value looks up a feature by name.
func (e EncodedInput) Value(name string) (float64, bool) {
	for i, feature := range e.schema {
		if feature == name {
			return e.values[i], true
		}
	}
	return 0, false
}

// Map returns the row keyed by feature name.
func (e EncodedInput) Map() map[string]float64 {
	out := make(map[string]float64, len(e.schema))
	for i, feature := range e.schema {
		out[feature] = e.values[i]
	}
	return out
}

// Encode one-hot expands categorical fields, passes numeric fields through and aligns
// the result to schema order. Schema features nothing produced are set to 0; produced
// features the schema does not name are dropped. An indicator whose name contains
// whitespace also matches the schema spelling with underscores.
func Encode(raw RawInput, schema FeatureSchema) (EncodedInput, error) {
	if err := schema.Validate(); err != nil {
		return EncodedInput{}, err
	}
	index := make(map[string]int, len(schema))
	for i, name := range schema {
		index[name] = i
	}

	values := make([]float64, len(schema))
	produced := make([]bool, len(schema))
	var report EncodingReport

	put := func(name string, value float64) {
		pos, ok := index[name]
		if !ok {
			alias := strings.ReplaceAll(name, " ", "_")
			if pos, ok = index[alias]; ok {
				if report.Aliased == nil {
					report.Aliased = make(map[string]string)
				}
				report.Aliased[name] = alias
			}
		}
		if !ok {
			report.Dropped = append(report.Dropped, name)
			return
		}
		values[pos] = value
		produced[pos] = true
	}

	for _, field := range categoricalFields {
		enc := indicatorTable[field.Name]
		value, present := raw[field.Name]
		if !present || value == nil {
			report.MissingFields = append(report.MissingFields, field.Name)
		}
		label, isString := value.(string)
		vector, known := enc.vectors[label]
		if present && value != nil && (!isString || !known) {
			if report.UnknownCategories == nil {
				report.UnknownCategories = make(map[string]string)
			}
			report.UnknownCategories[field.Name] = stringify(value)
		}
		for i, name := range enc.names {
			indicator := 0.0
			if known && isString {
				indicator = vector[i]
			}
			put(name, indicator)
		}
	}

	for _, name := range numericFields {
		value, present := raw[name]
		if !present || value == nil {
			report.MissingFields = append(report.MissingFields, name)
			continue
		}
		number, ok := toFloat(value)
		if !ok {
			report.InvalidNumbers = append(report.InvalidNumbers, name)
			continue
		}
		put(name, number)
	}

	for key := range raw {
		if !isApplicationField(key) {
			report.Ignored = append(report.Ignored, key)
		}
	}
	sort.Strings(report.Ignored)

	for i, ok := range produced {
		if !ok {
			report.ZeroFilled = append(report.ZeroFilled, schema[i])
		}
	}

	return EncodedInput{schema: schema, values: values, Report: report}, nil
}

func isApplicationField(name string) bool {
	if _, ok := indicatorTable[name]; ok {
		return true
	}
	for _, field := range numericFields {
		if field == name {
			return true
		}
	}
	return false
}

func toFloat(value any) (float64, bool) {
	var number float64
	switch v := value.(type) {
	case float64:
		number = v
	case float32:
		number = float64(v)
	case int:
		number = float64(v)
	case int32:
		number = float64(v)
	case int64:
		number = float64(v)
	case uint:
		number = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		number = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		number = parsed
	default:
		return 0, false
	}
	if math.IsNaN(number) || math.IsInf(number, 0) {
		return 0, false
	}
	return number, true
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		payload, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(payload)
	}
}
