package vm

import (
	"math"

	"github.com/tunelang/tune"
)

// Evaluate computes the value of an expression in the current scope. It never
// fails: unbound identifiers, nil and unsupported nodes are 0, and division by
// zero is 0.
func (i *Interpreter) Evaluate(expr tune.Expression) Value {
	switch e := expr.(type) {
	case *tune.Number:
		return Number(e.Value)
	case *tune.Identifier:
		if v, ok := i.frames.lookup(e.Name); ok {
			return v
		}
		return Number(0)
	case *tune.NoteLiteral:
		return Note(e.Value)
	case *tune.StringLiteral:
		return String(e.Value)
	case *tune.BinOp:
		return arithmetic(e.Op, i.Evaluate(e.Left), i.Evaluate(e.Right))
	case *tune.Comparison:
		return boolean(compare(e.Op, i.Evaluate(e.Left), i.Evaluate(e.Right)))
	case *tune.LogicalOp:
		l, r := i.Evaluate(e.Left).Truthy(), i.Evaluate(e.Right).Truthy()
		switch e.Op {
		case "and", "&&":
			return boolean(l && r)
		case "or", "||":
			return boolean(l || r)
		}
	case *tune.UnaryOp:
		v := i.Evaluate(e.Operand)
		switch e.Op {
		case "not", "!":
			return boolean(!v.Truthy())
		case "-":
			return Number(-v.Float())
		case "+":
			return Number(v.Float())
		}
	case nil:
	default:
		i.log.Printf("warning: cannot evaluate %q, using 0", expr.NodeType())
	}
	return Number(0)
}

// EvaluateCondition evaluates expr and reports whether it is truthy. A nil
// condition is false.
func (i *Interpreter) EvaluateCondition(expr tune.Expression) bool {
	return i.Evaluate(expr).Truthy()
}

func arithmetic(op string, l, r Value) Value {
	if op == "+" && l.Kind != NumberKind && r.Kind != NumberKind {
		return String(l.Str + r.Str)
	}
	a, b := l.Float(), r.Float()
	switch op {
	case "+":
		return Number(a + b)
	case "-":
		return Number(a - b)
	case "*":
		return Number(a * b)
	case "/":
		if b == 0 {
			return Number(0)
		}
		return Number(a / b)
	case "%":
		if b == 0 {
			return Number(0)
		}
		// the result takes the sign of the divisor
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return Number(m)
	}
	return Number(0)
}

// compare orders numbers numerically and strings and notes lexically. Mixed
// operands compare as numbers.
func compare(op string, l, r Value) bool {
	c := 0
	if l.Kind != NumberKind && r.Kind != NumberKind {
		switch {
		case l.Str < r.Str:
			c = -1
		case l.Str > r.Str:
			c = 1
		}
	} else {
		a, b := l.Float(), r.Float()
		if math.IsNaN(a) || math.IsNaN(b) {
			return op == "!="
		}
		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		}
	}
	switch op {
	case "==":
		return c == 0
	case "!=":
		return c != 0
	case "<":
		return c < 0
	case ">":
		return c > 0
	case "<=":
		return c <= 0
	case ">=":
		return c >= 0
	}
	return false
}
