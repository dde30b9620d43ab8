// Package algebra provides the algebraic expressions of the surface language:
// rate expressions, variables, and observables.  An expression evaluates
// against an Env, which resolves named variables and embedding counts of
// `|component|` sub-expressions; the owning system is the only Env the engine
// uses.  Booleans are represented numerically (0 is false, anything else
// true), matching the language's untyped arithmetic.
package algebra

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/turtacn/KappaForge/internal/domain/pattern"
	"github.com/turtacn/KappaForge/pkg/errors"
)

// Env supplies the two lookups evaluation may need.
type Env interface {
	// Variable resolves a named variable or observable.
	Variable(name string) (float64, error)

	// ComponentCount resolves a `|component|` sub-expression to the current
	// embedding count of the component.
	ComponentCount(c *pattern.Component) (float64, error)
}

// Expr is one node of an expression tree.
type Expr interface {
	// Evaluate computes the expression's value under env.
	Evaluate(env Env) (float64, error)

	// KappaString renders the expression in the surface syntax.
	KappaString() string

	// collectComponents appends the `|component|` references of the subtree.
	// References nested behind named variables are not followed.
	collectComponents(out *[]*pattern.Component)
}

// Components returns the `|component|` references of the expression tree, in
// rendering order.  The owning system tracks each of them at construction.
func Components(e Expr) []*pattern.Component {
	var out []*pattern.Component
	e.collectComponents(&out)
	return out
}

// truthy is the numeric-boolean bridge.
func truthy(v float64) bool { return v != 0 }

func boolVal(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// ─────────────────────────────────────────────────────────────────────────────
// Leaves
// ─────────────────────────────────────────────────────────────────────────────

type literal struct{ value float64 }

// Lit returns a numeric literal.
func Lit(v float64) Expr { return literal{value: v} }

func (l literal) Evaluate(Env) (float64, error) { return l.value, nil }
func (l literal) KappaString() string {
	return strconv.FormatFloat(l.value, 'g', -1, 64)
}
func (l literal) collectComponents(*[]*pattern.Component) {}

type boolean struct{ value bool }

// Bool returns a boolean literal.
func Bool(v bool) Expr { return boolean{value: v} }

func (b boolean) Evaluate(Env) (float64, error) { return boolVal(b.value), nil }
func (b boolean) KappaString() string {
	if b.value {
		return "[true]"
	}
	return "[false]"
}
func (b boolean) collectComponents(*[]*pattern.Component) {}

type variable struct{ name string }

// Var returns a reference to a named variable or observable.
func Var(name string) Expr { return variable{name: name} }

func (v variable) Evaluate(env Env) (float64, error) {
	if env == nil {
		return 0, errors.Newf(errors.CodeExprUndefinedName,
			"variable %q requires an environment to evaluate", v.name)
	}
	return env.Variable(v.name)
}
func (v variable) KappaString() string { return "'" + v.name + "'" }
func (v variable) collectComponents(*[]*pattern.Component) {}

type pi struct{}

// Pi returns the `[pi]` constant.
func Pi() Expr { return pi{} }

func (pi) Evaluate(Env) (float64, error) { return math.Pi, nil }
func (pi) KappaString() string { return "[pi]" }
func (pi) collectComponents(*[]*pattern.Component) {}

type count struct{ component *pattern.Component }

// Count returns a `|component|` expression whose value is the component's
// current embedding count in the environment's mixture.
func Count(c *pattern.Component) Expr { return count{component: c} }

func (c count) Evaluate(env Env) (float64, error) {
	if env == nil {
		return 0, errors.Newf(errors.CodeExprUndefinedName,
			"pattern count |%s| requires an environment to evaluate", c.component.KappaString())
	}
	return env.ComponentCount(c.component)
}
func (c count) KappaString() string { return "|" + c.component.KappaString() + "|" }
func (c count) collectComponents(out *[]*pattern.Component) {
	*out = append(*out, c.component)
}

// ─────────────────────────────────────────────────────────────────────────────
// Operators
// ─────────────────────────────────────────────────────────────────────────────

type unary struct {
	op    string
	child Expr
}

// Unary applies one of the `[log] [exp] [sin] [cos] [tan] [sqrt]` operators.
func Unary(op string, child Expr) Expr { return unary{op: op, child: child} }

// Log is `[log] e`.
func Log(e Expr) Expr { return Unary("[log]", e) }

// Exp is `[exp] e`.
func Exp(e Expr) Expr { return Unary("[exp]", e) }

// Sqrt is `[sqrt] e`.
func Sqrt(e Expr) Expr { return Unary("[sqrt]", e) }

func (u unary) Evaluate(env Env) (float64, error) {
	v, err := u.child.Evaluate(env)
	if err != nil {
		return 0, err
	}
	switch u.op {
	case "[log]":
		return math.Log(v), nil
	case "[exp]":
		return math.Exp(v), nil
	case "[sin]":
		return math.Sin(v), nil
	case "[cos]":
		return math.Cos(v), nil
	case "[tan]":
		return math.Tan(v), nil
	case "[sqrt]":
		return math.Sqrt(v), nil
	}
	return 0, errors.Newf(errors.CodeExprInvalid, "unknown unary operator %q", u.op)
}
func (u unary) KappaString() string {
	return fmt.Sprintf("%s (%s)", u.op, u.child.KappaString())
}
func (u unary) collectComponents(out *[]*pattern.Component) {
	u.child.collectComponents(out)
}

type binary struct {
	op          string
	left, right Expr
}

// Binary applies one of the `+ - * / ^ [mod]` arithmetic operators or the
// `= < >` comparisons.
func Binary(op string, left, right Expr) Expr { return binary{op: op, left: left, right: right} }

// Add is `l + r`.
func Add(l, r Expr) Expr { return Binary("+", l, r) }

// Sub is `l - r`.
func Sub(l, r Expr) Expr { return Binary("-", l, r) }

// Mul is `l * r`.
func Mul(l, r Expr) Expr { return Binary("*", l, r) }

// Div is `l / r`.
func Div(l, r Expr) Expr { return Binary("/", l, r) }

// Pow is `l ^ r`.
func Pow(l, r Expr) Expr { return Binary("^", l, r) }

// Mod is `l [mod] r`.
func Mod(l, r Expr) Expr { return Binary("[mod]", l, r) }

// Eq is the `=` comparison.
func Eq(l, r Expr) Expr { return Binary("=", l, r) }

// Lt is the `<` comparison.
func Lt(l, r Expr) Expr { return Binary("<", l, r) }

// Gt is the `>` comparison.
func Gt(l, r Expr) Expr { return Binary(">", l, r) }

func (b binary) Evaluate(env Env) (float64, error) {
	l, err := b.left.Evaluate(env)
	if err != nil {
		return 0, err
	}
	r, err := b.right.Evaluate(env)
	if err != nil {
		return 0, err
	}
	switch b.op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return 0, errors.Newf(errors.CodeExprInvalid, "division by zero in %s", b.KappaString())
		}
		return l / r, nil
	case "^":
		return math.Pow(l, r), nil
	case "[mod]":
		if r == 0 {
			return 0, errors.Newf(errors.CodeExprInvalid, "modulus by zero in %s", b.KappaString())
		}
		return math.Mod(l, r), nil
	case "=":
		return boolVal(l == r), nil
	case "<":
		return boolVal(l < r), nil
	case ">":
		return boolVal(l > r), nil
	}
	return 0, errors.Newf(errors.CodeExprInvalid, "unknown binary operator %q", b.op)
}
func (b binary) KappaString() string {
	return fmt.Sprintf("(%s) %s (%s)", b.left.KappaString(), b.op, b.right.KappaString())
}
func (b binary) collectComponents(out *[]*pattern.Component) {
	b.left.collectComponents(out)
	b.right.collectComponents(out)
}

type logical struct {
	op          string // "||" or "&&"
	left, right Expr
}

// Or is the `||` connective.
func Or(l, r Expr) Expr { return logical{op: "||", left: l, right: r} }

// And is the `&&` connective.
func And(l, r Expr) Expr { return logical{op: "&&", left: l, right: r} }

func (b logical) Evaluate(env Env) (float64, error) {
	l, err := b.left.Evaluate(env)
	if err != nil {
		return 0, err
	}
	switch b.op {
	case "||":
		if truthy(l) {
			return l, nil
		}
		return b.right.Evaluate(env)
	case "&&":
		if !truthy(l) {
			return l, nil
		}
		return b.right.Evaluate(env)
	}
	return 0, errors.Newf(errors.CodeExprInvalid, "unknown logical operator %q", b.op)
}
func (b logical) KappaString() string {
	return fmt.Sprintf("(%s) %s (%s)", b.left.KappaString(), b.op, b.right.KappaString())
}
func (b logical) collectComponents(out *[]*pattern.Component) {
	b.left.collectComponents(out)
	b.right.collectComponents(out)
}

type not struct{ child Expr }

// Not is the `[not]` connective.
func Not(e Expr) Expr { return not{child: e} }

func (n not) Evaluate(env Env) (float64, error) {
	v, err := n.child.Evaluate(env)
	if err != nil {
		return 0, err
	}
	return boolVal(!truthy(v)), nil
}
func (n not) KappaString() string { return fmt.Sprintf("[not] (%s)", n.child.KappaString()) }
func (n not) collectComponents(out *[]*pattern.Component) {
	n.child.collectComponents(out)
}

type ternary struct {
	condition, then, otherwise Expr
}

// Ternary is the `cond [?] then [:] otherwise` conditional.
func Ternary(condition, then, otherwise Expr) Expr {
	return ternary{condition: condition, then: then, otherwise: otherwise}
}

func (t ternary) Evaluate(env Env) (float64, error) {
	c, err := t.condition.Evaluate(env)
	if err != nil {
		return 0, err
	}
	if truthy(c) {
		return t.then.Evaluate(env)
	}
	return t.otherwise.Evaluate(env)
}
func (t ternary) KappaString() string {
	return fmt.Sprintf("(%s) [?] (%s) [:] (%s)",
		t.condition.KappaString(), t.then.KappaString(), t.otherwise.KappaString())
}
func (t ternary) collectComponents(out *[]*pattern.Component) {
	t.condition.collectComponents(out)
	t.then.collectComponents(out)
	t.otherwise.collectComponents(out)
}

type listOp struct {
	op       string // "[max]" or "[min]"
	children []Expr
}

// Max is the `[max](…)` reduction.
func Max(children ...Expr) Expr { return listOp{op: "[max]", children: children} }

// Min is the `[min](…)` reduction.
func Min(children ...Expr) Expr { return listOp{op: "[min]", children: children} }

func (l listOp) Evaluate(env Env) (float64, error) {
	if len(l.children) == 0 {
		return 0, errors.Newf(errors.CodeExprInvalid, "%s applied to an empty list", l.op)
	}
	best, err := l.children[0].Evaluate(env)
	if err != nil {
		return 0, err
	}
	for _, child := range l.children[1:] {
		v, err := child.Evaluate(env)
		if err != nil {
			return 0, err
		}
		switch l.op {
		case "[max]":
			if v > best {
				best = v
			}
		case "[min]":
			if v < best {
				best = v
			}
		default:
			return 0, errors.Newf(errors.CodeExprInvalid, "unknown list operator %q", l.op)
		}
	}
	return best, nil
}
func (l listOp) KappaString() string {
	parts := make([]string, len(l.children))
	for i, child := range l.children {
		parts[i] = child.KappaString()
	}
	return fmt.Sprintf("%s (%s)", l.op, strings.Join(parts, ", "))
}
func (l listOp) collectComponents(out *[]*pattern.Component) {
	for _, child := range l.children {
		child.collectComponents(out)
	}
}

// VariableNames returns the named variable references of the expression tree,
// deduplicated in first-appearance order.  Systems use it to reject
// expressions referencing undefined names at construction.
func VariableNames(e Expr) []string {
	var names []string
	seen := map[string]struct{}{}
	var walk func(Expr)
	walk = func(node Expr) {
		switch n := node.(type) {
		case variable:
			if _, dup := seen[n.name]; !dup {
				seen[n.name] = struct{}{}
				names = append(names, n.name)
			}
		case unary:
			walk(n.child)
		case binary:
			walk(n.left)
			walk(n.right)
		case logical:
			walk(n.left)
			walk(n.right)
		case not:
			walk(n.child)
		case ternary:
			walk(n.condition)
			walk(n.then)
			walk(n.otherwise)
		case listOp:
			for _, child := range n.children {
				walk(child)
			}
		}
	}
	walk(e)
	return names
}
