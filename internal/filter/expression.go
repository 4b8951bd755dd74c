// Copyright 2025 Magnus Pierre
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package filter builds row filters for tabular data: composites, a small
// expression language and compiled Go scripts.
package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/magpierre/datacomm/datatable"
)

// CompOp is a comparison operator.
type CompOp int

const (
	OpEqual CompOp = iota
	OpNotEqual
	OpGreater
	OpLess
	OpGreaterEqual
	OpLessEqual
	OpContains
)

// operators in match order, longest symbols first so ">=" wins over "="
var operators = []struct {
	op     CompOp
	symbol string
}{
	{OpGreaterEqual, ">="},
	{OpLessEqual, "<="},
	{OpNotEqual, "!="},
	{OpEqual, "="},
	{OpGreater, ">"},
	{OpLess, "<"},
	{OpContains, "~"},
}

func (op CompOp) String() string {
	for _, o := range operators {
		if o.op == op {
			return o.symbol
		}
	}
	return fmt.Sprintf("CompOp(%d)", int(op))
}

// Comparison is a single "column op value" test. An empty Column searches
// every column for Value.
type Comparison struct {
	Column   string
	Operator CompOp
	Value    string
}

// Expression is a parsed filter expression: comparisons joined by AND/OR,
// evaluated strictly left to right.
type Expression struct {
	Comparisons []Comparison
	LogicOps    []LogicOp

	text string
}

// ParseExpression parses expressions like
//
//	country = Sweden AND age >= 30 OR name ~ ann
//
// Operators are = != > < >= <= and ~ (contains). Comparisons are case
// insensitive; ordering operators compare numerically when both sides are
// numbers. A term without an operator matches rows where any column
// contains it. Column names are validated against columns, ignoring case.
// An empty expression yields a nil filter.
func ParseExpression(text string, columns []string) (datatable.Filter, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[strings.ToLower(c)] = true
	}

	expr := &Expression{text: strings.TrimSpace(text)}
	var term []string
	flush := func() error {
		if len(term) == 0 {
			return fmt.Errorf("%w: missing comparison in %q", datatable.ErrInvalidFilter, text)
		}
		c, err := parseComparison(strings.Join(term, " "), known)
		if err != nil {
			return err
		}
		expr.Comparisons = append(expr.Comparisons, c)
		term = term[:0]
		return nil
	}

	for _, word := range strings.Fields(text) {
		switch strings.ToUpper(word) {
		case "AND":
			if err := flush(); err != nil {
				return nil, err
			}
			expr.LogicOps = append(expr.LogicOps, LogicAND)
		case "OR":
			if err := flush(); err != nil {
				return nil, err
			}
			expr.LogicOps = append(expr.LogicOps, LogicOR)
		default:
			term = append(term, word)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return expr, nil
}

func parseComparison(s string, known map[string]bool) (Comparison, error) {
	for _, o := range operators {
		idx := strings.Index(s, o.symbol)
		if idx <= 0 {
			continue
		}
		column := strings.TrimSpace(s[:idx])
		if !known[strings.ToLower(column)] {
			return Comparison{}, fmt.Errorf("%w: %s", datatable.ErrColumnNotFound, column)
		}
		return Comparison{
			Column:   column,
			Operator: o.op,
			Value:    strings.Trim(strings.TrimSpace(s[idx+len(o.symbol):]), `"'`),
		}, nil
	}
	return Comparison{Operator: OpContains, Value: strings.Trim(s, `"'`)}, nil
}

// Evaluate implements datatable.Filter.
func (e *Expression) Evaluate(row []datatable.Value, columnNames []string) (bool, error) {
	if len(e.Comparisons) == 0 {
		return true, nil
	}
	result := e.Comparisons[0].matches(row, columnNames)
	for i, op := range e.LogicOps {
		next := e.Comparisons[i+1].matches(row, columnNames)
		switch op {
		case LogicAND:
			result = result && next
		case LogicOR:
			result = result || next
		}
	}
	return result, nil
}

// Description implements datatable.Filter.
func (e *Expression) Description() string { return e.text }

func (c Comparison) matches(row []datatable.Value, columnNames []string) bool {
	if c.Column == "" {
		needle := strings.ToLower(c.Value)
		for _, v := range row {
			if strings.Contains(strings.ToLower(v.Formatted), needle) {
				return true
			}
		}
		return false
	}

	idx := -1
	for i, name := range columnNames {
		if strings.EqualFold(name, c.Column) {
			idx = i
			break
		}
	}
	if idx < 0 || idx >= len(row) {
		return false
	}
	cell := row[idx].Formatted

	switch c.Operator {
	case OpEqual:
		return strings.EqualFold(cell, c.Value)
	case OpNotEqual:
		return !strings.EqualFold(cell, c.Value)
	case OpContains:
		return strings.Contains(strings.ToLower(cell), strings.ToLower(c.Value))
	}
	return compareOrdered(cell, c.Value, c.Operator)
}

// compareOrdered compares numerically when both sides parse as numbers and
// lexicographically otherwise.
func compareOrdered(cell, value string, op CompOp) bool {
	var r int
	a, errA := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	b, errB := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if errA == nil && errB == nil {
		switch {
		case a < b:
			r = -1
		case a > b:
			r = 1
		}
	} else {
		r = strings.Compare(strings.ToLower(cell), strings.ToLower(value))
	}

	switch op {
	case OpGreater:
		return r > 0
	case OpLess:
		return r < 0
	case OpGreaterEqual:
		return r >= 0
	case OpLessEqual:
		return r <= 0
	}
	return false
}
