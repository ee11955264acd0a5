// Package query turns untrusted querystring text into parameterised SQL
// fragments for the product listing endpoints.  Column names only ever come
// from a fixed whitelist and every literal value is bound as a named
// parameter, so nothing a client sends is concatenated into the SQL text.
package query

import (
	"fmt"
	"strings"
)

// Op is a SQL comparison operator accepted by the builder.
type Op string

const (
	OpEq   Op = "="
	OpNeq  Op = "!="
	OpGt   Op = ">"
	OpGte  Op = ">="
	OpLt   Op = "<"
	OpLte  Op = "<="
	OpLike Op = "LIKE"
)

var comparisonOps = map[string]Op{
	"=":  OpEq,
	"!=": OpNeq,
	">":  OpGt,
	">=": OpGte,
	"<":  OpLt,
	"<=": OpLte,
}

// columns maps a (lower-cased) query field name to its products column.
var columns = map[string]string{
	"name":     "name",
	"mfr":      "mfr",
	"type":     "type",
	"calories": "calories",
	"protein":  "protein",
	"fat":      "fat",
	"sodium":   "sodium",
	"fiber":    "fiber",
	"carbo":    "carbo",
	"sugars":   "sugars",
	"potass":   "potass",
	"vitamins": "vitamins",
	"shelf":    "shelf",
	"weight":   "weight",
	"cups":     "cups",
	"rating":   "rating",
}

// Column resolves a client supplied field name against the whitelist.  The
// lookup is case-insensitive; ok is false for anything not in the list.
func Column(field string) (string, bool) {
	col, ok := columns[strings.ToLower(strings.TrimSpace(field))]
	return col, ok
}

// Predicate is one "column op :param" clause together with its bound value.
// Fold marks a case-insensitive comparison, rendered with UPPER() on both
// sides.
type Predicate struct {
	Column string
	Op     Op
	Param  string
	Value  any
	Fold   bool
}

func (p Predicate) sql() string {
	if p.Fold {
		return fmt.Sprintf("UPPER(%s) %s UPPER(:%s)", p.Column, p.Op, p.Param)
	}
	return fmt.Sprintf("%s %s :%s", p.Column, p.Op, p.Param)
}

// Builder accumulates predicates and the named arguments they reference.
// Parameter names come from a single counter (p0, p1, ...) so clauses added
// by different parsing passes can never collide.
type Builder struct {
	preds []Predicate
	args  map[string]any
	next  int
}

func NewBuilder() *Builder {
	return &Builder{args: map[string]any{}}
}

func (b *Builder) param(v any) string {
	name := fmt.Sprintf("p%d", b.next)
	b.next++
	b.args[name] = v
	return name
}

// Add appends "column op :pN".  The column must already be a trusted
// identifier; callers resolve client input through Column first.
func (b *Builder) Add(column string, op Op, value any) {
	b.preds = append(b.preds, Predicate{Column: column, Op: op, Param: b.param(value), Value: value})
}

// EqualFold appends a case-insensitive equality on a string column.
func (b *Builder) EqualFold(column, value string) {
	b.preds = append(b.preds, Predicate{Column: column, Op: OpEq, Param: b.param(value), Value: value, Fold: true})
}

// Contains appends a case-insensitive substring match on a string column.
func (b *Builder) Contains(column, value string) {
	pattern := "%" + value + "%"
	b.preds = append(b.preds, Predicate{Column: column, Op: OpLike, Param: b.param(pattern), Value: pattern, Fold: true})
}

// Predicates returns the clauses in the order they were added.
func (b *Builder) Predicates() []Predicate {
	out := make([]Predicate, len(b.preds))
	copy(out, b.preds)
	return out
}

// Args returns the named parameter bundle for sqlx.Named.
func (b *Builder) Args() map[string]any {
	out := make(map[string]any, len(b.args))
	for k, v := range b.args {
		out[k] = v
	}
	return out
}

// Empty reports whether no filtering should be applied.
func (b *Builder) Empty() bool { return len(b.preds) == 0 }

// Where renders the WHERE clause.  With no predicates it is "WHERE 1=1".
func (b *Builder) Where() string {
	var sb strings.Builder
	sb.WriteString("WHERE 1=1")
	for _, p := range b.preds {
		sb.WriteString(" AND ")
		sb.WriteString(p.sql())
	}
	return sb.String()
}
