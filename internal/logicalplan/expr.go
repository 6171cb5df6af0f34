/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package logicalplan implements the un-resolved/resolved logical
// expression tree and logical plan variants the SQL parser produces and
// the analyzer/optimizer rewrite (§3, §4.2–§4.3).
package logicalplan

import (
	"fmt"

	"github.com/flowetl/flowetl/internal/schema"
	"github.com/flowetl/flowetl/internal/value"
)

// Expr is the common contract for every logical expression node. Nodes are
// tagged variants (a closed set of concrete struct types implementing this
// interface) rather than a class hierarchy, per §9.
type Expr interface {
	// DataType is only meaningful after analysis; unresolved nodes return
	// the zero DataType.
	DataType() schema.DataType
	Nullable() bool
	Children() []Expr
	// WithChildren returns a copy of the node with its children replaced,
	// in the same order Children() reported them. Used by the optimizer's
	// generic bottom-up rewrite.
	WithChildren(children []Expr) Expr
	String() string
}

// BinaryOp enumerates the binary operators §3 lists.
type BinaryOp int

const (
	OpPlus BinaryOp = iota
	OpMinus
	OpMultiply
	OpDivide
	OpModulo
	OpEq
	OpNotEq
	OpLt
	OpLtEq
	OpGt
	OpGtEq
	OpAnd
	OpOr
)

func (op BinaryOp) String() string {
	switch op {
	case OpPlus:
		return "+"
	case OpMinus:
		return "-"
	case OpMultiply:
		return "*"
	case OpDivide:
		return "/"
	case OpModulo:
		return "%"
	case OpEq:
		return "="
	case OpNotEq:
		return "!="
	case OpLt:
		return "<"
	case OpLtEq:
		return "<="
	case OpGt:
		return ">"
	case OpGtEq:
		return ">="
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	default:
		return "?"
	}
}

// IsComparison reports whether op produces a Boolean result type.
func (op BinaryOp) IsComparison() bool {
	switch op {
	case OpEq, OpNotEq, OpLt, OpLtEq, OpGt, OpGtEq:
		return true
	default:
		return false
	}
}

func (op BinaryOp) IsArithmetic() bool {
	switch op {
	case OpPlus, OpMinus, OpMultiply, OpDivide, OpModulo:
		return true
	default:
		return false
	}
}

func (op BinaryOp) IsLogical() bool { return op == OpAnd || op == OpOr }

// ---- Literal ----

type Literal struct {
	Value interface{} // int32 | int64 | float32 | float64 | string | bool | []byte | int64(timestamp) | nil
	Type  schema.DataType
	Null  bool
}

func NewLiteral(v interface{}, t schema.DataType) *Literal { return &Literal{Value: v, Type: t} }
func NewNullLiteral(t schema.DataType) *Literal            { return &Literal{Type: t, Null: true} }

func (l *Literal) DataType() schema.DataType { return l.Type }
func (l *Literal) Nullable() bool            { return l.Null }
func (l *Literal) Children() []Expr          { return nil }
func (l *Literal) WithChildren(c []Expr) Expr {
	if len(c) != 0 {
		panic("Literal: WithChildren expects no children")
	}
	return l
}
func (l *Literal) String() string {
	if l.Null {
		return "NULL"
	}
	return fmt.Sprintf("%v", l.Value)
}

// ToValue converts the logical Literal to the runtime Value it represents,
// bridging the analyzer/optimizer's constant-tracking representation to
// the one the physical expression tree evaluates (internal/value).
func (l *Literal) ToValue() value.Value {
	if l.Null || l.Value == nil {
		return value.Null
	}
	switch v := l.Value.(type) {
	case int32:
		return value.NewInt(v)
	case int64:
		if l.Type.Equal(schema.Timestamp) {
			return value.NewTimestamp(v)
		}
		return value.NewLong(v)
	case float32:
		return value.NewFloat(v)
	case float64:
		return value.NewDouble(v)
	case string:
		return value.NewString(v)
	case bool:
		return value.NewBoolean(v)
	case []byte:
		return value.NewBinary(v)
	default:
		return value.Null
	}
}

// LiteralFromValue builds the logical Literal representing v at type t,
// the inverse of ToValue — used by constant-folding rewrites that produce
// a fresh runtime Value and need to re-embed it in the logical tree.
func LiteralFromValue(v value.Value, t schema.DataType) *Literal {
	if v.IsNull() {
		return NewNullLiteral(t)
	}
	switch v.Kind() {
	case value.KindInt:
		return NewLiteral(v.GetInt(), t)
	case value.KindLong:
		return NewLiteral(v.GetLong(), t)
	case value.KindFloat:
		return NewLiteral(v.GetFloat(), t)
	case value.KindDouble:
		return NewLiteral(v.GetDouble(), t)
	case value.KindString:
		return NewLiteral(v.GetString(), t)
	case value.KindBoolean:
		return NewLiteral(v.GetBoolean(), t)
	case value.KindBinary:
		return NewLiteral(v.GetBinary(), t)
	case value.KindTimestamp:
		return NewLiteral(v.GetTimestamp(), t)
	default:
		return NewNullLiteral(t)
	}
}

// ---- UnresolvedAttribute ----

type UnresolvedAttribute struct {
	Name string
}

func (u *UnresolvedAttribute) DataType() schema.DataType { return schema.DataType{} }
func (u *UnresolvedAttribute) Nullable() bool            { return true }
func (u *UnresolvedAttribute) Children() []Expr           { return nil }
func (u *UnresolvedAttribute) WithChildren(c []Expr) Expr  { return u }
func (u *UnresolvedAttribute) String() string              { return "'" + u.Name }

// ---- ResolvedAttribute ----

type ResolvedAttribute struct {
	Ref schema.AttributeReference
}

func (r *ResolvedAttribute) DataType() schema.DataType { return r.Ref.DataType }
func (r *ResolvedAttribute) Nullable() bool            { return r.Ref.Nullable }
func (r *ResolvedAttribute) Children() []Expr           { return nil }
func (r *ResolvedAttribute) WithChildren(c []Expr) Expr  { return r }
func (r *ResolvedAttribute) String() string              { return r.Ref.Name }

// ---- BoundReference ----
// Appears only after physical planning ordinarily, but the logical tree
// allows it too since the optimizer may run on already-bound subtrees of a
// cached plan.

type BoundReference struct {
	Ordinal int
	Type    schema.DataType
	Null    bool
}

func (b *BoundReference) DataType() schema.DataType { return b.Type }
func (b *BoundReference) Nullable() bool            { return b.Null }
func (b *BoundReference) Children() []Expr           { return nil }
func (b *BoundReference) WithChildren(c []Expr) Expr  { return b }
func (b *BoundReference) String() string              { return fmt.Sprintf("#%d", b.Ordinal) }

// ---- Alias ----

type Alias struct {
	Child  Expr
	Name   string
	ExprID int64
}

func NewAlias(child Expr, name string) *Alias {
	return &Alias{Child: child, Name: name, ExprID: schema.NextExprID()}
}

func (a *Alias) DataType() schema.DataType { return a.Child.DataType() }
func (a *Alias) Nullable() bool            { return a.Child.Nullable() }
func (a *Alias) Children() []Expr           { return []Expr{a.Child} }
func (a *Alias) WithChildren(c []Expr) Expr {
	cp := *a
	cp.Child = c[0]
	return &cp
}
func (a *Alias) String() string { return fmt.Sprintf("%s AS %s", a.Child, a.Name) }

// ToAttribute materializes the Alias as the ResolvedAttribute it projects.
func (a *Alias) ToAttribute() schema.AttributeReference {
	return schema.AttributeReference{Name: a.Name, DataType: a.DataType(), Nullable: a.Nullable(), ExprID: a.ExprID}
}

// ---- BinaryOperator ----

type BinaryOperator struct {
	Left, Right Expr
	Op          BinaryOp
	Type        schema.DataType // resolved post-analysis
}

func NewBinaryOperator(left Expr, op BinaryOp, right Expr) *BinaryOperator {
	return &BinaryOperator{Left: left, Right: right, Op: op}
}

func (b *BinaryOperator) DataType() schema.DataType {
	if b.Op.IsComparison() || b.Op.IsLogical() {
		return schema.Boolean
	}
	return b.Type
}
func (b *BinaryOperator) Nullable() bool { return b.Left.Nullable() || b.Right.Nullable() }
func (b *BinaryOperator) Children() []Expr { return []Expr{b.Left, b.Right} }
func (b *BinaryOperator) WithChildren(c []Expr) Expr {
	cp := *b
	cp.Left, cp.Right = c[0], c[1]
	return &cp
}
func (b *BinaryOperator) String() string { return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right) }

// ---- Cast ----

type Cast struct {
	Child Expr
	To    schema.DataType
}

func NewCast(child Expr, to schema.DataType) *Cast { return &Cast{Child: child, To: to} }

func (c *Cast) DataType() schema.DataType { return c.To }
func (c *Cast) Nullable() bool            { return true } // a cast may fail to parse -> Null
func (c *Cast) Children() []Expr           { return []Expr{c.Child} }
func (c *Cast) WithChildren(ch []Expr) Expr {
	cp := *c
	cp.Child = ch[0]
	return &cp
}
func (c *Cast) String() string { return fmt.Sprintf("CAST(%s AS %s)", c.Child, c.To) }

// ---- Like / RLike ----

type Like struct {
	Child      Expr
	Pattern    Expr
	IgnoreCase bool
	Negate     bool
}

func (l *Like) DataType() schema.DataType { return schema.Boolean }
func (l *Like) Nullable() bool            { return true }
func (l *Like) Children() []Expr           { return []Expr{l.Child, l.Pattern} }
func (l *Like) WithChildren(c []Expr) Expr {
	cp := *l
	cp.Child, cp.Pattern = c[0], c[1]
	return &cp
}
func (l *Like) String() string {
	op := "LIKE"
	if l.Negate {
		op = "NOT LIKE"
	}
	return fmt.Sprintf("(%s %s %s)", l.Child, op, l.Pattern)
}

type RLike struct {
	Child   Expr
	Pattern Expr
}

func (r *RLike) DataType() schema.DataType { return schema.Boolean }
func (r *RLike) Nullable() bool            { return true }
func (r *RLike) Children() []Expr           { return []Expr{r.Child, r.Pattern} }
func (r *RLike) WithChildren(c []Expr) Expr {
	cp := *r
	cp.Child, cp.Pattern = c[0], c[1]
	return &cp
}
func (r *RLike) String() string { return fmt.Sprintf("(%s RLIKE %s)", r.Child, r.Pattern) }

// ---- FunctionCall ----

type FunctionCall struct {
	Name string
	Args []Expr
	Type schema.DataType // resolved by function-resolution rule
	Null bool
}

func (f *FunctionCall) DataType() schema.DataType { return f.Type }
func (f *FunctionCall) Nullable() bool            { return f.Null }
func (f *FunctionCall) Children() []Expr           { return f.Args }
func (f *FunctionCall) WithChildren(c []Expr) Expr {
	cp := *f
	cp.Args = c
	return &cp
}
func (f *FunctionCall) String() string { return fmt.Sprintf("%s(...)", f.Name) }

// ---- AggregateFunction ----

type AggregateFunction struct {
	Name    string
	Args    []Expr
	Type    schema.DataType
	StateID int
}

func (a *AggregateFunction) DataType() schema.DataType { return a.Type }
func (a *AggregateFunction) Nullable() bool            { return true }
func (a *AggregateFunction) Children() []Expr           { return a.Args }
func (a *AggregateFunction) WithChildren(c []Expr) Expr {
	cp := *a
	cp.Args = c
	return &cp
}
func (a *AggregateFunction) String() string { return fmt.Sprintf("%s(...)#%d", a.Name, a.StateID) }

// ---- Star ----

type Star struct{}

func (Star) DataType() schema.DataType { return schema.DataType{} }
func (Star) Nullable() bool            { return false }
func (Star) Children() []Expr           { return nil }
func (s Star) WithChildren(c []Expr) Expr { return s }
func (Star) String() string              { return "*" }

// ---- In ----

type In struct {
	Child Expr
	List  []Expr
}

func (i *In) DataType() schema.DataType { return schema.Boolean }
func (i *In) Nullable() bool            { return true }
func (i *In) Children() []Expr {
	out := make([]Expr, 0, len(i.List)+1)
	out = append(out, i.Child)
	out = append(out, i.List...)
	return out
}
func (i *In) WithChildren(c []Expr) Expr {
	cp := *i
	cp.Child = c[0]
	cp.List = c[1:]
	return &cp
}
func (i *In) String() string { return fmt.Sprintf("(%s IN (...))", i.Child) }

// ToOrChain lowers `x IN (a, b, c)` to `x = a OR x = b OR x = c`, per §4.2.
func (i *In) ToOrChain() Expr {
	if len(i.List) == 0 {
		return NewLiteral(false, schema.Boolean)
	}
	var chain Expr = NewBinaryOperator(i.Child, OpEq, i.List[0])
	for _, item := range i.List[1:] {
		chain = NewBinaryOperator(chain, OpOr, NewBinaryOperator(i.Child, OpEq, item))
	}
	return chain
}
