package collection

import (
	"fmt"
	"strconv"
	"strings"
)

// FilterOp is a comparison operator for a FilterExpression leaf.
type FilterOp string

const (
	OpEQ FilterOp = "="
	OpNE FilterOp = "!="
	OpGT FilterOp = ">"
	OpGE FilterOp = ">="
	OpLT FilterOp = "<"
	OpLE FilterOp = "<="
	OpIN FilterOp = "IN"
)

// BoolOp combines child FilterExpressions.
type BoolOp string

const (
	BoolAnd BoolOp = "AND"
	BoolOr  BoolOp = "OR"
	BoolNot BoolOp = "NOT"
)

// FilterExpression is a small predicate tree over a result's payload
// (spec.md §4.2 "Filter"). It supplements the bare "predicate" language
// of the core spec with the composable AND/OR/NOT/comparison shape the
// teacher's advanced filter offers, since a front-end needs some concrete
// way to build `filter` values to pass into Search.
type FilterExpression struct {
	Bool     BoolOp
	Children []*FilterExpression

	Field string
	Op    FilterOp
	Value any
}

// Compile turns the expression tree into a Filter predicate closure.
func (e *FilterExpression) Compile() Filter {
	return func(payload map[string]any) bool {
		return e.eval(payload)
	}
}

func (e *FilterExpression) eval(payload map[string]any) bool {
	if e == nil {
		return true
	}
	switch e.Bool {
	case BoolAnd:
		for _, c := range e.Children {
			if !c.eval(payload) {
				return false
			}
		}
		return true
	case BoolOr:
		for _, c := range e.Children {
			if c.eval(payload) {
				return true
			}
		}
		return len(e.Children) == 0
	case BoolNot:
		if len(e.Children) != 1 {
			return false
		}
		return !e.Children[0].eval(payload)
	}
	return evalLeaf(payload[e.Field], e.Op, e.Value)
}

func evalLeaf(actual any, op FilterOp, expected any) bool {
	switch op {
	case OpEQ:
		return coerceEqual(actual, expected)
	case OpNE:
		return !coerceEqual(actual, expected)
	case OpIN:
		values, ok := expected.([]any)
		if !ok {
			return false
		}
		for _, v := range values {
			if coerceEqual(actual, v) {
				return true
			}
		}
		return false
	case OpGT, OpGE, OpLT, OpLE:
		a, aok := coerceFloat(actual)
		b, bok := coerceFloat(expected)
		if !aok || !bok {
			return false
		}
		switch op {
		case OpGT:
			return a > b
		case OpGE:
			return a >= b
		case OpLT:
			return a < b
		default:
			return a <= b
		}
	default:
		return false
	}
}

// coerceEqual compares two schemaless payload values, coercing numeric
// and stringly-typed values onto a common representation so a filter
// value of float64(2024) matches a stored "2024" and vice versa — the
// payload's JSON-like values arrive with whatever Go type their decoder
// produced, which a hand-authored filter literal won't always match
// exactly.
func coerceEqual(a, b any) bool {
	if a == b {
		return true
	}
	if af, aok := coerceFloat(a); aok {
		if bf, bok := coerceFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func coerceFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
