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

package planner

import (
	"github.com/flowetl/flowetl/internal/analyzer"
	"github.com/flowetl/flowetl/internal/optimizer"
	"github.com/flowetl/flowetl/internal/schema"
	"github.com/flowetl/flowetl/internal/sqlparse"
)

// CompileSQL runs the full parse -> analyze -> optimize -> compile pipeline
// (§4.2-§4.4) for one transform instance. relations maps each FROM-clause
// table name available to this statement to its input schema (a single
// entry keyed "tbl" for a transform's one input edge, per §6; two entries
// for a "simple join" FROM clause).
func CompileSQL(sql string, relations map[string]schema.Schema) ([]*Plan, error) {
	parsed, err := sqlparse.Parse(sql)
	if err != nil {
		return nil, err
	}
	result, err := analyzer.Analyze(parsed, relations)
	if err != nil {
		return nil, err
	}
	optimized := optimizer.Optimize(result.Plan)
	return Compile(optimized, result.Distinct)
}
