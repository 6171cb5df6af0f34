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

// Collection builds an Array value directly from its element expressions.
// The physical planner lowers the `array(...)` call to this node instead
// of routing it through the generic FunctionCall dispatch, since the
// element count (and therefore the output slice capacity) is known at
// plan time.
type Collection struct {
	Elems []Expr
	Type  schema.DataType // Array(elem)
}

func (c *Collection) Eval(r row.Row) value.Value {
	out := make([]value.Value, len(c.Elems))
	for i, e := range c.Elems {
		out[i] = e.Eval(r)
	}
	return value.NewArray(out)
}
func (c *Collection) DataType() schema.DataType { return c.Type }
