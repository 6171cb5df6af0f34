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
	"github.com/flowetl/flowetl/internal/logicalplan"
	"github.com/flowetl/flowetl/internal/row"
	"github.com/flowetl/flowetl/internal/schema"
	"github.com/flowetl/flowetl/internal/value"
)

// BinaryArithmetic evaluates one of +, -, *, /, % over already-coerced
// operands, producing resultType (or Null on Null input or division by
// zero, §4.1/§8).
type BinaryArithmetic struct {
	Left, Right Expr
	Op          logicalplan.BinaryOp
	Type        schema.DataType
}

func (b *BinaryArithmetic) Eval(r row.Row) value.Value {
	return EvalArithmetic(b.Op, b.Left.Eval(r), b.Right.Eval(r), b.Type)
}
func (b *BinaryArithmetic) DataType() schema.DataType { return b.Type }

// BinaryComparison evaluates one of =, !=, <, <=, >, >=.
type BinaryComparison struct {
	Left, Right Expr
	Op          logicalplan.BinaryOp
}

func (b *BinaryComparison) Eval(r row.Row) value.Value {
	return EvalComparison(b.Op, b.Left.Eval(r), b.Right.Eval(r))
}
func (b *BinaryComparison) DataType() schema.DataType { return schema.Boolean }
