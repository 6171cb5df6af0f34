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

// Cast evaluates Child and converts it to To, per the never-fails contract
// in EvalCast (a bad parse is Null, not an error).
type Cast struct {
	Child Expr
	To    schema.DataType
}

func (c *Cast) Eval(r row.Row) value.Value { return EvalCast(c.Child.Eval(r), c.To) }
func (c *Cast) DataType() schema.DataType   { return c.To }
