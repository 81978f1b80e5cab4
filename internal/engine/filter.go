package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"paylens-backend/internal/dataset"
)

type Operator string

const (
	OpEquals            Operator = "equals"
	OpNotEquals         Operator = "not_equals"
	OpGreaterThan       Operator = "greater_than"
	OpGreaterThanEquals Operator = "greater_than_equals"
	OpLessThan          Operator = "less_than"
	OpLessThanEquals    Operator = "less_than_equals"
	OpBetween           Operator = "between"
	OpIn                Operator = "in"
	OpNotIn             Operator = "not_in"
)

func (op Operator) Valid() bool {
	switch op {
	case OpEquals, OpNotEquals, OpGreaterThan, OpGreaterThanEquals,
		OpLessThan, OpLessThanEquals, OpBetween, OpIn, OpNotIn:
		return true
	}
	return false
}

type exprKind int

const (
	kindAnd exprKind = iota
	kindOr
	kindNot
	kindCmp
)

// Expr is a node of the recursive filter tree: exactly one of and, or, not
// or a leaf comparison. The zero Expr is invalid; build nodes through the
// constructors or by unmarshalling the JSON wire shape.
type Expr struct {
	kind     exprKind
	children []*Expr // and, or
	child    *Expr   // not
	column   string
	op       Operator
	value    any
}

func And(children ...*Expr) *Expr {
	return &Expr{kind: kindAnd, children: children}
}

func Or(children ...*Expr) *Expr {
	return &Expr{kind: kindOr, children: children}
}

func Not(child *Expr) *Expr {
	return &Expr{kind: kindNot, child: child}
}

func Cmp(column string, op Operator, value any) *Expr {
	return &Expr{kind: kindCmp, column: column, op: op, value: value}
}

// UnmarshalJSON decodes the wire shape from the filter grammar:
//
//	{"and": [...]} | {"or": [...]} | {"not": {...}} |
//	{"column": "...", "operator": "...", "value": ...}
//
// A node matching none of the four shapes, or more than one, fails with a
// malformed-expression error naming the offending subtree.
func (e *Expr) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return MalformedFilterError(fmt.Sprintf("not an object: %s", compactJSON(data)))
	}

	tags := 0
	for _, key := range []string{"and", "or", "not"} {
		if _, ok := raw[key]; ok {
			tags++
		}
	}
	if _, ok := raw["column"]; ok {
		tags++
	}
	if tags != 1 {
		return MalformedFilterError(fmt.Sprintf("node must be exactly one of and/or/not/comparison: %s", compactJSON(data)))
	}

	if msg, ok := raw["and"]; ok {
		return e.decodeLogical(kindAnd, msg)
	}
	if msg, ok := raw["or"]; ok {
		return e.decodeLogical(kindOr, msg)
	}
	if msg, ok := raw["not"]; ok {
		var child Expr
		if err := json.Unmarshal(msg, &child); err != nil {
			return err
		}
		*e = Expr{kind: kindNot, child: &child}
		return nil
	}

	var leaf struct {
		Column   string `json:"column"`
		Operator string `json:"operator"`
		Value    any    `json:"value"`
	}
	if err := json.Unmarshal(data, &leaf); err != nil {
		return MalformedFilterError(fmt.Sprintf("bad comparison: %s", compactJSON(data)))
	}
	if leaf.Column == "" || leaf.Operator == "" {
		return MalformedFilterError(fmt.Sprintf("comparison needs column and operator: %s", compactJSON(data)))
	}
	*e = Expr{kind: kindCmp, column: leaf.Column, op: Operator(leaf.Operator), value: leaf.Value}
	return nil
}

func (e *Expr) decodeLogical(kind exprKind, msg json.RawMessage) error {
	var children []*Expr
	if err := json.Unmarshal(msg, &children); err != nil {
		return MalformedFilterError(fmt.Sprintf("logical operator needs a list: %s", compactJSON(msg)))
	}
	if children == nil {
		children = []*Expr{}
	}
	*e = Expr{kind: kind, children: children}
	return nil
}

// MarshalJSON emits the exact wire shape the node was built from.
func (e *Expr) MarshalJSON() ([]byte, error) {
	switch e.kind {
	case kindAnd:
		return json.Marshal(map[string][]*Expr{"and": e.children})
	case kindOr:
		return json.Marshal(map[string][]*Expr{"or": e.children})
	case kindNot:
		return json.Marshal(map[string]*Expr{"not": e.child})
	default:
		return json.Marshal(map[string]any{
			"column":   e.column,
			"operator": string(e.op),
			"value":    e.value,
		})
	}
}

func compactJSON(data []byte) string {
	s := string(data)
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}

// Evaluate interprets the filter tree against the table and returns a
// boolean mask aligned with row positions. Evaluation is pure: no state,
// no I/O, and the table is never mutated.
//
// Null policy: a comparison on a null cell (missing, nil, or NaN aggregate)
// is false for every operator, including not_equals and not_in.
func Evaluate(t *dataset.Table, e *Expr) ([]bool, error) {
	if e == nil {
		return nil, MalformedFilterError("empty expression")
	}

	switch e.kind {
	case kindAnd:
		mask := make([]bool, t.RowCount())
		for i := range mask {
			mask[i] = true // and([]) is vacuously true
		}
		for _, child := range e.children {
			childMask, err := Evaluate(t, child)
			if err != nil {
				return nil, err
			}
			for i := range mask {
				mask[i] = mask[i] && childMask[i]
			}
		}
		return mask, nil

	case kindOr:
		mask := make([]bool, t.RowCount()) // or([]) is vacuously false
		for _, child := range e.children {
			childMask, err := Evaluate(t, child)
			if err != nil {
				return nil, err
			}
			for i := range mask {
				mask[i] = mask[i] || childMask[i]
			}
		}
		return mask, nil

	case kindNot:
		mask, err := Evaluate(t, e.child)
		if err != nil {
			return nil, err
		}
		for i := range mask {
			mask[i] = !mask[i]
		}
		return mask, nil

	default:
		return evaluateLeaf(t, e)
	}
}

func evaluateLeaf(t *dataset.Table, e *Expr) ([]bool, error) {
	if !e.op.Valid() {
		return nil, MalformedFilterError(fmt.Sprintf("unsupported operator %q for column %q", e.op, e.column))
	}
	if !t.HasColumn(e.column) {
		return nil, UnknownColumnError(e.column)
	}

	test, err := compileLeaf(e)
	if err != nil {
		return nil, err
	}

	mask := make([]bool, t.RowCount())
	for i := range mask {
		cell, ok := t.Value(i, e.column)
		if !ok || isNaN(cell) {
			continue // null never matches
		}
		mask[i] = test(cell)
	}
	return mask, nil
}

// compileLeaf validates the operator/value pairing once and returns the
// per-cell predicate.
func compileLeaf(e *Expr) (func(any) bool, error) {
	switch e.op {
	case OpBetween:
		pair, ok := e.value.([]any)
		if !ok || len(pair) != 2 {
			return nil, MalformedFilterError(fmt.Sprintf("between on %q needs a [low, high] pair", e.column))
		}
		lo, hi := pair[0], pair[1]
		return func(cell any) bool {
			cl, ok := compareCell(cell, lo)
			if !ok || cl < 0 {
				return false
			}
			ch, ok := compareCell(cell, hi)
			return ok && ch <= 0
		}, nil

	case OpIn, OpNotIn:
		members, ok := e.value.([]any)
		if !ok {
			return nil, MalformedFilterError(fmt.Sprintf("%s on %q needs a list of values", e.op, e.column))
		}
		negate := e.op == OpNotIn
		return func(cell any) bool {
			for _, m := range members {
				if c, ok := compareCell(cell, m); ok && c == 0 {
					return !negate
				}
			}
			return negate
		}, nil

	default:
		val := e.value
		op := e.op
		return func(cell any) bool {
			c, ok := compareCell(cell, val)
			if !ok {
				return false
			}
			switch op {
			case OpEquals:
				return c == 0
			case OpNotEquals:
				return c != 0
			case OpGreaterThan:
				return c > 0
			case OpGreaterThanEquals:
				return c >= 0
			case OpLessThan:
				return c < 0
			default: // OpLessThanEquals
				return c <= 0
			}
		}, nil
	}
}

// compareCell orders a cell against a filter value. Returns ok=false when
// the two are not comparable (type mismatch, unparseable date, null value);
// incomparable pairs fail every operator.
func compareCell(cell, val any) (int, bool) {
	switch c := cell.(type) {
	case float64:
		f, ok := toFloat64(val)
		if !ok || math.IsNaN(f) {
			return 0, false
		}
		switch {
		case c < f:
			return -1, true
		case c > f:
			return 1, true
		default:
			return 0, true
		}
	case string:
		s, ok := val.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(c, s), true
	case time.Time:
		s, ok := val.(string)
		if !ok {
			return 0, false
		}
		ts, err := parseFilterDate(s)
		if err != nil {
			return 0, false
		}
		switch {
		case c.Before(ts):
			return -1, true
		case c.After(ts):
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

func parseFilterDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func isNaN(v any) bool {
	f, ok := v.(float64)
	return ok && math.IsNaN(f)
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
