package dataset

import (
	"math"
	"strconv"
	"strings"
)

// CategoryCount is one bar of a count chart.
type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// IncomeGroup summarizes MonthlyIncome for one Attrition value.
type IncomeGroup struct {
	Attrition string   `json:"attrition"`
	Count     int      `json:"count"`
	Mean      float64  `json:"mean"`
	Std       *float64 `json:"std"`
	Min       float64  `json:"min"`
	Max       float64  `json:"max"`
}

// RoleCounts holds per-Attrition counts for one job role.
type RoleCounts struct {
	JobRole string          `json:"job_role"`
	Counts  []CategoryCount `json:"counts"`
}

// AttritionDistribution counts rows per Attrition value in first-appearance order.
func (d *Dataset) AttritionDistribution() ([]CategoryCount, error) {
	values, err := d.Column(ColumnAttrition)
	if err != nil {
		return nil, err
	}
	return countInOrder(values), nil
}

// IncomeByAttrition summarizes MonthlyIncome grouped by Attrition.
func (d *Dataset) IncomeByAttrition() ([]IncomeGroup, error) {
	attrition, err := d.Column(ColumnAttrition)
	if err != nil {
		return nil, err
	}
	income, err := d.Column(ColumnMonthlyIncome)
	if err != nil {
		return nil, err
	}

	var order []string
	groups := make(map[string][]float64)
	for i, cell := range income {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			// Row numbers count the header as row 1.
			return nil, &ColumnTypeError{Column: ColumnMonthlyIncome, Row: i + 2, Value: cell}
		}
		key := attrition[i]
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], v)
	}

	out := make([]IncomeGroup, 0, len(order))
	for _, key := range order {
		values := groups[key]
		group := IncomeGroup{
			Attrition: key,
			Count:     len(values),
			Mean:      Mean(values),
			Min:       values[0],
			Max:       values[0],
			Std:       finiteStd(values),
		}
		for _, v := range values[1:] {
			group.Min = math.Min(group.Min, v)
			group.Max = math.Max(group.Max, v)
		}
		out = append(out, group)
	}
	return out, nil
}

// JobRoleByAttrition counts rows per JobRole and Attrition. Roles and Attrition values
// both keep first-appearance order.
func (d *Dataset) JobRoleByAttrition() ([]RoleCounts, error) {
	roles, err := d.Column(ColumnJobRole)
	if err != nil {
		return nil, err
	}
	attrition, err := d.Column(ColumnAttrition)
	if err != nil {
		return nil, err
	}

	var roleOrder []string
	var valueOrder []string
	seenValue := make(map[string]bool)
	counts := make(map[string]map[string]int)
	for i, role := range roles {
		value := attrition[i]
		if !seenValue[value] {
			seenValue[value] = true
			valueOrder = append(valueOrder, value)
		}
		byValue, ok := counts[role]
		if !ok {
			byValue = make(map[string]int)
			counts[role] = byValue
			roleOrder = append(roleOrder, role)
		}
		byValue[value]++
	}

	out := make([]RoleCounts, 0, len(roleOrder))
	for _, role := range roleOrder {
		rc := RoleCounts{JobRole: role, Counts: make([]CategoryCount, 0, len(valueOrder))}
		for _, value := range valueOrder {
			rc.Counts = append(rc.Counts, CategoryCount{Value: value, Count: counts[role][value]})
		}
		out = append(out, rc)
	}
	return out, nil
}

func countInOrder(values []string) []CategoryCount {
	var out []CategoryCount
	position := make(map[string]int)
	for _, v := range values {
		i, ok := position[v]
		if !ok {
			position[v] = len(out)
			out = append(out, CategoryCount{Value: v, Count: 1})
			continue
		}
		out[i].Count++
	}
	return out
}
