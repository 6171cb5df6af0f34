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

package physicalexpr

import (
	"github.com/flowetl/flowetl/internal/row"
	"github.com/flowetl/flowetl/internal/schema"
	"github.com/flowetl/flowetl/internal/value"
)

// Expr is the bound, row-evaluable counterpart of logicalplan.Expr. Each
// concrete type below is chosen once, at plan time, from the resolved
// logical node. The arithmetic and cast kernels those types call still
// switch on value kind and result type on every Eval; only LIKE patterns
// are compiled to a specialized matcher at plan time.
type Expr interface {
	Eval(r row.Row) value.Value
	DataType() schema.DataType
}

// BoundReference reads column Ordinal out of the row handed to Eval.
type BoundReference struct {
	Ordinal int
	Type    schema.DataType
}

func (b *BoundReference) Eval(r row.Row) value.Value   { return r.Get(b.Ordinal) }
func (b *BoundReference) DataType() schema.DataType     { return b.Type }

// Literal returns a fixed Value regardless of the row.
type Literal struct {
	V value.Value
	T schema.DataType
}

func (l *Literal) Eval(row.Row) value.Value     { return l.V }
func (l *Literal) DataType() schema.DataType     { return l.T }

// And/Or implement tri-valued logical conjunction/disjunction with
// short-circuiting (§4.1).
type And struct{ Left, Right Expr }

func (a *And) Eval(r row.Row) value.Value {
	return EvalAnd(a.Left.Eval(r), func() value.Value { return a.Right.Eval(r) })
}
func (a *And) DataType() schema.DataType { return schema.Boolean }

type Or struct{ Left, Right Expr }

func (o *Or) Eval(r row.Row) value.Value {
	return EvalOr(o.Left.Eval(r), func() value.Value { return o.Right.Eval(r) })
}
func (o *Or) DataType() schema.DataType { return schema.Boolean }

// Not negates a Boolean child, propagating Null.
type Not struct{ Child Expr }

func (n *Not) Eval(r row.Row) value.Value {
	v := n.Child.Eval(r)
	if v.IsNull() {
		return value.Null
	}
	return value.NewBoolean(!v.GetBoolean())
}
func (n *Not) DataType() schema.DataType { return schema.Boolean }
